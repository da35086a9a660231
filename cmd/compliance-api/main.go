package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/rfqcompliance/internal/api"
	"github.com/Lllllllleong/rfqcompliance/internal/config"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/services"
)

var (
	router  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	gin.SetMode(gin.ReleaseMode)

	// "ComplianceAPI" is the entry point name deployed in GCP.
	functions.HTTP("ComplianceAPI", handleRequest)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(cfg.Log.Logging())

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET must be set", config.ErrInvalid)
	}

	rt, err := services.NewRuntime(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return api.NewRouter(api.Services{
		Auditor:       rt.Auditor,
		Reports:       rt.Reports,
		Standings:     rt.Standings,
		Subscriptions: rt.Subscriptions,
	}, cfg.Auth.JWTSecret), nil
}

func handleRequest(w http.ResponseWriter, r *http.Request) {
	// Clients live for the lifetime of the instance.
	once.Do(func() {
		router, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/rfqcompliance/internal/config"
	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/services"
)

var (
	subscriptions *services.Subscriptions
	once          sync.Once
	initErr       error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	functions.CloudEvent("HandlePaymentEvent", handlePaymentEvent)
}

// main is required by the Go Functions Framework.
func main() {}

func setup(ctx context.Context) (*services.Subscriptions, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Init(cfg.Log.Logging())

	backend, _, err := services.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return services.NewSubscriptions(backend), nil
}

// handlePaymentEvent marks a user subscribed once their payment completes.
func handlePaymentEvent(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		subscriptions, initErr = setup(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var payment models.PaymentEvent
	if err := e.DataAs(&payment); err != nil {
		slog.Error("Failed to decode event data", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return fmt.Errorf("decode payment event %s: %w", e.ID(), err)
	}
	if err := subscriptions.HandlePayment(ctx, payment); err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			// Redelivery cannot fix a malformed event.
			slog.Warn("Dropping invalid payment event", "eventId", e.ID(), "error", err)
			return nil
		}
		return err
	}
	return nil
}

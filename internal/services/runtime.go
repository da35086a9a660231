package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/rfqcompliance/internal/config"
	"github.com/Lllllllleong/rfqcompliance/internal/gcp"
	"github.com/Lllllllleong/rfqcompliance/internal/invoker"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
	"github.com/Lllllllleong/rfqcompliance/internal/usage"
)

// Store is what the services need from a backend.
type Store interface {
	store.ReportStore
	store.UsageStore
}

// Runtime holds the services of one process and the clients behind them.
type Runtime struct {
	Auditor       *Auditor
	Reports       *Reports
	Standings     *Standings
	Subscriptions *Subscriptions

	closers []func() error
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		slog.Warn("Using the in-memory store; data is lost on restart.")
		return store.NewMemoryStore(), func() error { return nil }, nil
	case config.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.Store.DatabaseID)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewFirestoreStore(client, store.FirestoreConfig{
			UsersCollection:   cfg.Store.UsersCollection,
			ReportsCollection: cfg.Store.ReportsCollection,
			UsageCollection:   cfg.Store.UsageCollection,
		})
		return s, client.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Store.Backend)
}

// NewGenerator builds the model client for the configured provider.
func NewGenerator(ctx context.Context, cfg *config.Config) (invoker.Generator, func() error, error) {
	switch cfg.Model.Provider {
	case config.ProviderVertex:
		client, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Model.Region, cfg.Model.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		return client, client.Close, nil
	case config.ProviderGemini:
		client := invoker.NewGeminiClient(invoker.GeminiConfig{
			Endpoint: cfg.Model.GeminiEndpoint,
			Model:    cfg.Model.Name,
			APIKey:   cfg.Model.GeminiAPIKey,
			Timeout:  cfg.Invoker.AttemptTimeout,
		})
		return client, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown model provider %q", config.ErrInvalid, cfg.Model.Provider)
}

// NewRuntime wires every service from configuration. A Cloud Storage
// client is only created for GCP deployments or when archiving is on.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	backend, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	generator, closeGenerator, err := NewGenerator(ctx, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeGenerator)

	policy, err := usage.PolicyByName(cfg.Usage.SubscriptionPolicy)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	deps := AuditorDeps{
		Invoker: invoker.New(generator, cfg.InvokerSettings()),
		Reports: backend,
		Counter: usage.NewCounter(backend, policy),
	}

	if cfg.Store.Backend == config.BackendFirestore || cfg.Model.Provider == config.ProviderVertex || cfg.Archive.Bucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		rt.closers = append(rt.closers, storageClient.Close)
		deps.Documents = gcp.NewGCSDocumentSource(storageClient)
		if cfg.Archive.Bucket != "" {
			deps.Archiver = gcp.NewBucketArchiver(storageClient, cfg.Archive.Bucket)
		}
	}

	rt.Auditor = NewAuditor(deps)
	rt.Reports = NewReports(backend, nil)
	rt.Standings = NewStandings(backend)
	rt.Subscriptions = NewSubscriptions(backend)

	slog.Info("Services initialized.",
		"storeBackend", cfg.Store.Backend,
		"modelProvider", cfg.Model.Provider,
		"model", cfg.Model.Name,
		"archiveBucket", cfg.Archive.Bucket,
		"subscriptionPolicy", policy.Name(),
	)
	return rt, nil
}

// Close releases every client, most recent first.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

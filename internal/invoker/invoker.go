// Package invoker obtains structured compliance reports from a generative
// model, retrying transient failures with exponential backoff.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Lllllllleong/rfqcompliance/internal/compliance"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultAttemptTimeout = 2 * time.Minute
)

// Request carries the two documents being compared.
type Request struct {
	RFQText string
	BidText string
}

// Generator performs one round trip to the model and returns the raw text
// payload. Implementations attach the instruction prompt and ReportSchema.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config tunes the retry loop. Zero fields take the defaults.
type Config struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	// OnRetry is called before each backoff sleep with the 1-based number of
	// the attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// RetryingInvoker wraps a Generator with bounded retries.
type RetryingInvoker struct {
	generator Generator
	config    Config
}

// New creates a RetryingInvoker.
func New(generator Generator, cfg Config) *RetryingInvoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &RetryingInvoker{generator: generator, config: cfg}
}

// Invoke returns the report for req. The context is honoured between
// attempts only; an attempt already in flight runs until it completes or
// its own timeout expires.
func (i *RetryingInvoker) Invoke(ctx context.Context, req Request) (models.Report, error) {
	if i.generator == nil {
		return models.Report{}, fmt.Errorf("%w: no generator configured", ErrConfiguration)
	}

	var (
		report  models.Report
		attempt int
		lastErr error
	)

	err := retry.Do(ctx, i.backoff(&attempt, &lastErr), func(ctx context.Context) error {
		attempt++
		text, err := i.generate(ctx, req)
		if err != nil {
			if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrMalformedResponse) {
				return err
			}
			lastErr = err
			return retry.RetryableError(err)
		}

		parsed, err := compliance.ParseReport(text)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		report = parsed
		return nil
	})

	switch {
	case err == nil:
		if attempt > 1 {
			slog.Info("Report generated after retries.", "attempts", attempt)
		}
		return report, nil
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrMalformedResponse):
		slog.Error("Report generation failed without retry.", "attempt", attempt, "error", err)
		return models.Report{}, err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		slog.Warn("Report generation abandoned by caller.", "attempts", attempt, "lastError", lastErr)
		return models.Report{}, err
	default:
		slog.Error("Report generation failed after all retries.", "attempts", attempt, "error", err)
		return models.Report{}, fmt.Errorf("%w after %d attempts: %w", ErrUpstreamUnavailable, attempt, err)
	}
}

func (i *RetryingInvoker) generate(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.config.AttemptTimeout)
	defer cancel()
	return i.generator.Generate(attemptCtx, req)
}

// backoff doubles from BaseDelay and stops after MaxAttempts-1 retries.
func (i *RetryingInvoker) backoff(attempt *int, lastErr *error) retry.Backoff {
	b := retry.NewExponential(i.config.BaseDelay)
	b = retry.WithMaxRetries(uint64(i.config.MaxAttempts-1), b)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := b.Next()
		if stop {
			return 0, true
		}
		slog.Warn(
			"Report generation failed, will retry.",
			"attempt", *attempt,
			"maxAttempts", i.config.MaxAttempts,
			"backoff", delay.String(),
			"error", *lastErr,
		)
		if i.config.OnRetry != nil {
			i.config.OnRetry(*attempt, delay, *lastErr)
		}
		return delay, false
	})
}

// Package usage tracks how many audits each user has run, per role.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

// Store is the transactional primitive the counter relies on.
type Store interface {
	UpdateUsage(ctx context.Context, userID string, fn func(*models.UsageRecord) error) (models.UsageRecord, error)
}

// Policy decides what happens to the subscription flag when a counter is
// written.
type Policy interface {
	Apply(rec *models.UsageRecord)
	Name() string
}

// ForceSubscribed marks the user subscribed on every increment.
type ForceSubscribed struct{}

func (ForceSubscribed) Apply(rec *models.UsageRecord) { rec.Subscribed = true }
func (ForceSubscribed) Name() string                  { return "force" }

// PreserveSubscription leaves the flag to the payment webhook.
type PreserveSubscription struct{}

func (PreserveSubscription) Apply(*models.UsageRecord) {}
func (PreserveSubscription) Name() string              { return "preserve" }

// PolicyByName resolves a configured policy name. Empty selects force.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "force":
		return ForceSubscribed{}, nil
	case "preserve":
		return PreserveSubscription{}, nil
	}
	return nil, fmt.Errorf("unknown subscription policy %q", name)
}

// Counter increments per-user, per-role usage counters.
type Counter struct {
	store  Store
	policy Policy
}

// NewCounter returns a Counter. A nil policy means ForceSubscribed.
func NewCounter(store Store, policy Policy) *Counter {
	if policy == nil {
		policy = ForceSubscribed{}
	}
	return &Counter{store: store, policy: policy}
}

// Increment bumps the role's counter in one transaction and returns the new
// value.
func (c *Counter) Increment(ctx context.Context, userID string, role models.Role) (int, error) {
	if _, err := role.CounterKey(); err != nil {
		return 0, err
	}

	var count int
	_, err := c.store.UpdateUsage(ctx, userID, func(rec *models.UsageRecord) error {
		n, err := rec.Increment(role)
		if err != nil {
			return err
		}
		c.policy.Apply(rec)
		count = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s for %s: %w", role, userID, err)
	}
	return count, nil
}

// Record is Increment for callers that must not fail on usage tracking.
// Errors are logged and 0 is returned.
func (c *Counter) Record(ctx context.Context, userID string, role models.Role) int {
	count, err := c.Increment(ctx, userID, role)
	if err != nil {
		slog.Warn("Usage counter update failed; continuing.", "userId", userID, "role", role, "error", err)
		return 0
	}
	slog.Debug("Usage counter updated.", "userId", userID, "role", role, "count", count, "policy", c.policy.Name())
	return count
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
)

// PaymentStatusPaid is the only status that subscribes a user.
const PaymentStatusPaid = "paid"

// Subscriptions applies payment confirmations to usage records and reads
// them back.
type Subscriptions struct {
	store store.UsageStore
}

func NewSubscriptions(s store.UsageStore) *Subscriptions {
	return &Subscriptions{store: s}
}

// HandlePayment marks the referenced user subscribed when the payment
// completed. Other statuses are logged and ignored.
func (s *Subscriptions) HandlePayment(ctx context.Context, ev models.PaymentEvent) error {
	logCtx := slog.With("userId", ev.ClientReferenceID, "paymentStatus", ev.PaymentStatus)
	if strings.TrimSpace(ev.ClientReferenceID) == "" {
		return fmt.Errorf("%w: payment event without client_reference_id", ErrInvalidRequest)
	}
	if !strings.EqualFold(ev.PaymentStatus, PaymentStatusPaid) {
		logCtx.Info("Ignoring payment event that is not paid.")
		return nil
	}
	if err := s.store.SetSubscribed(ctx, ev.ClientReferenceID, true); err != nil {
		logCtx.Error("Failed to mark user subscribed", "error", err)
		return err
	}
	logCtx.Info("User subscribed.")
	return nil
}

// Usage returns the caller's usage record. Absent records read as zero.
func (s *Subscriptions) Usage(ctx context.Context, actor models.Actor) (models.UsageRecord, error) {
	if actor.ID() == "" {
		return models.UsageRecord{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return s.store.GetUsage(ctx, actor.ID())
}

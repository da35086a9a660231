// Package store persists audit reports and per-user usage records.
//
// Two backends implement the same contracts: Firestore for deployments and an
// in-memory store for local runs and tests. Reports are owned by a tenant;
// an Administrator actor reads across tenants. Subscriptions deliver full
// snapshots of the visible set, never deltas.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

// Sentinel errors for store operations.
var (
	ErrNotFound = errors.New("report not found")
	ErrStore    = errors.New("store failure")
)

// Snapshot is the full set of reports visible to an actor at ReadTime.
type Snapshot struct {
	Reports  []models.StoredReport
	ReadTime time.Time
}

// ReportStore is the report persistence contract.
type ReportStore interface {
	Save(ctx context.Context, userID string, report models.StoredReport) (string, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, actor models.Actor) ([]models.StoredReport, error)
	// Subscribe calls fn with a snapshot now and after every change until
	// ctx is done. It returns nil when ctx ends the subscription.
	Subscribe(ctx context.Context, actor models.Actor, fn func(Snapshot)) error
}

// UsageStore is the usage record persistence contract.
type UsageStore interface {
	// UpdateUsage runs fn inside a read-modify-write transaction on the
	// user's record. fn may run more than once under contention and must
	// only mutate the record it is given.
	UpdateUsage(ctx context.Context, userID string, fn func(*models.UsageRecord) error) (models.UsageRecord, error)
	GetUsage(ctx context.Context, userID string) (models.UsageRecord, error)
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
}

// SortNewestFirst orders reports by timestamp descending, then by id, so
// listings are stable regardless of backend iteration order.
func SortNewestFirst(reports []models.StoredReport) {
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].Timestamp != reports[j].Timestamp {
			return reports[i].Timestamp > reports[j].Timestamp
		}
		return reports[i].ID < reports[j].ID
	})
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

const (
	DefaultUsersCollection   = "users"
	DefaultReportsCollection = "reports"
	DefaultUsageCollection   = "usage"
)

// FirestoreConfig names the collections used by FirestoreStore. Reports live
// at {Users}/{uid}/{Reports}/{id}; usage records at {Usage}/{uid}.
type FirestoreConfig struct {
	UsersCollection   string
	ReportsCollection string
	UsageCollection   string
}

// FirestoreStore implements ReportStore and UsageStore on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
	config FirestoreConfig
}

var (
	_ ReportStore = (*FirestoreStore)(nil)
	_ UsageStore  = (*FirestoreStore)(nil)
)

// NewFirestoreStore wraps an existing client.
func NewFirestoreStore(client *firestore.Client, cfg FirestoreConfig) *FirestoreStore {
	if cfg.UsersCollection == "" {
		cfg.UsersCollection = DefaultUsersCollection
	}
	if cfg.ReportsCollection == "" {
		cfg.ReportsCollection = DefaultReportsCollection
	}
	if cfg.UsageCollection == "" {
		cfg.UsageCollection = DefaultUsageCollection
	}
	return &FirestoreStore{client: client, config: cfg}
}

func (s *FirestoreStore) reports(userID string) *firestore.CollectionRef {
	return s.client.Collection(s.config.UsersCollection).Doc(userID).Collection(s.config.ReportsCollection)
}

func (s *FirestoreStore) usageDoc(userID string) *firestore.DocumentRef {
	return s.client.Collection(s.config.UsageCollection).Doc(userID)
}

// query dispatches on the actor variant.
func (s *FirestoreStore) query(actor models.Actor) (firestore.Query, error) {
	switch a := actor.(type) {
	case models.Tenant:
		if a.UserID == "" {
			return firestore.Query{}, fmt.Errorf("%w: tenant without user id", ErrStore)
		}
		return s.reports(a.UserID).Query, nil
	case models.Administrator:
		return s.client.CollectionGroup(s.config.ReportsCollection).Query, nil
	}
	return firestore.Query{}, fmt.Errorf("%w: unsupported actor %T", ErrStore, actor)
}

func (s *FirestoreStore) Save(ctx context.Context, userID string, report models.StoredReport) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: save requires a user id", ErrStore)
	}
	report.UserID = userID
	docRef, _, err := s.reports(userID).Add(ctx, report)
	if err != nil {
		return "", fmt.Errorf("%w: failed to save report: %w", ErrStore, err)
	}
	return docRef.ID, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
	}
	_, err := s.reports(userID).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to delete report: %w", ErrStore, err)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, actor models.Actor) ([]models.StoredReport, error) {
	q, err := s.query(actor)
	if err != nil {
		return nil, err
	}
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list reports: %w", ErrStore, err)
	}
	return decodeReports(docs)
}

// Subscribe streams query snapshots. Each snapshot is decoded in full; the
// per-document change list is ignored.
func (s *FirestoreStore) Subscribe(ctx context.Context, actor models.Actor, fn func(Snapshot)) error {
	q, err := s.query(actor)
	if err != nil {
		return err
	}
	logCtx := slog.With("actor", actor.ID())

	it := q.Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			logCtx.Error("Report snapshot listener failed", "error", err)
			return fmt.Errorf("%w: snapshot listener: %w", ErrStore, err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("%w: read snapshot: %w", ErrStore, err)
		}
		reports, err := decodeReports(docs)
		if err != nil {
			return err
		}
		fn(Snapshot{Reports: reports, ReadTime: snap.ReadTime})
	}
}

func decodeReports(docs []*firestore.DocumentSnapshot) ([]models.StoredReport, error) {
	out := make([]models.StoredReport, 0, len(docs))
	for _, doc := range docs {
		var r models.StoredReport
		if err := doc.DataTo(&r); err != nil {
			return nil, fmt.Errorf("%w: decode report %s: %w", ErrStore, doc.Ref.Path, err)
		}
		r.ID = doc.Ref.ID
		if r.UserID == "" && doc.Ref.Parent != nil && doc.Ref.Parent.Parent != nil {
			r.UserID = doc.Ref.Parent.Parent.ID
		}
		out = append(out, r)
	}
	SortNewestFirst(out)
	return out, nil
}

// UpdateUsage uses a Firestore transaction; the client retries it on
// contention.
func (s *FirestoreStore) UpdateUsage(ctx context.Context, userID string, fn func(*models.UsageRecord) error) (models.UsageRecord, error) {
	if userID == "" {
		return models.UsageRecord{}, fmt.Errorf("%w: usage update requires a user id", ErrStore)
	}
	ref := s.usageDoc(userID)

	var result models.UsageRecord
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var rec models.UsageRecord
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// First access: start from the zero record.
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&rec); err != nil {
				return err
			}
		}

		if err := fn(&rec); err != nil {
			return err
		}
		if err := tx.Set(ref, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return models.UsageRecord{}, fmt.Errorf("%w: usage transaction for %s: %w", ErrStore, userID, err)
	}
	return result, nil
}

func (s *FirestoreStore) GetUsage(ctx context.Context, userID string) (models.UsageRecord, error) {
	var rec models.UsageRecord
	snap, err := s.usageDoc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("%w: read usage for %s: %w", ErrStore, userID, err)
	}
	if err := snap.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("%w: decode usage for %s: %w", ErrStore, userID, err)
	}
	return rec, nil
}

// SetSubscribed merges the flag without touching the counters.
func (s *FirestoreStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	if userID == "" {
		return fmt.Errorf("%w: subscription update requires a user id", ErrStore)
	}
	_, err := s.usageDoc(userID).Set(ctx, map[string]interface{}{"subscribed": subscribed}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("%w: set subscribed for %s: %w", ErrStore, userID, err)
	}
	return nil
}

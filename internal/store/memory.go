package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

type versionedUsage struct {
	record  models.UsageRecord
	version uint64
}

type subscriber struct {
	actor  models.Actor
	notify chan struct{}
}

// MemoryStore is an in-memory ReportStore and UsageStore.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]map[string]models.StoredReport // userID -> id -> report
	usage   map[string]versionedUsage

	subMu       sync.Mutex
	subscribers map[*subscriber]struct{}
}

var (
	_ ReportStore = (*MemoryStore)(nil)
	_ UsageStore  = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:     make(map[string]map[string]models.StoredReport),
		usage:       make(map[string]versionedUsage),
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (s *MemoryStore) Save(ctx context.Context, userID string, report models.StoredReport) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: save requires a user id", ErrStore)
	}
	report.ID = uuid.New().String()
	report.UserID = userID

	s.mu.Lock()
	if s.reports[userID] == nil {
		s.reports[userID] = make(map[string]models.StoredReport)
	}
	s.reports[userID][report.ID] = report
	s.mu.Unlock()

	s.broadcast()
	return report.ID, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	if _, ok := s.reports[userID][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotFound, userID, id)
	}
	delete(s.reports[userID], id)
	s.mu.Unlock()

	s.broadcast()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, actor models.Actor) ([]models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoredReport
	switch a := actor.(type) {
	case models.Tenant:
		for _, r := range s.reports[a.UserID] {
			out = append(out, r)
		}
	case models.Administrator:
		for _, byID := range s.reports {
			for _, r := range byID {
				out = append(out, r)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported actor %T", ErrStore, actor)
	}
	SortNewestFirst(out)
	return out, nil
}

// Subscribe delivers the current snapshot, then a fresh snapshot after each
// change. Notifications that arrive while fn is running are coalesced.
func (s *MemoryStore) Subscribe(ctx context.Context, actor models.Actor, fn func(Snapshot)) error {
	sub := &subscriber{actor: actor, notify: make(chan struct{}, 1)}
	s.subMu.Lock()
	s.subscribers[sub] = struct{}{}
	s.subMu.Unlock()
	defer func() {
		s.subMu.Lock()
		delete(s.subscribers, sub)
		s.subMu.Unlock()
	}()

	sub.notify <- struct{}{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.notify:
			reports, err := s.List(ctx, actor)
			if err != nil {
				return err
			}
			fn(Snapshot{Reports: reports, ReadTime: time.Now()})
		}
	}
}

func (s *MemoryStore) broadcast() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for sub := range s.subscribers {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}

// UpdateUsage applies fn with optimistic concurrency: fn runs on a copy
// outside the lock and the write only lands if nobody else wrote in
// between. Every conflict means another writer succeeded, so the loop makes
// progress.
func (s *MemoryStore) UpdateUsage(ctx context.Context, userID string, fn func(*models.UsageRecord) error) (models.UsageRecord, error) {
	if userID == "" {
		return models.UsageRecord{}, fmt.Errorf("%w: usage update requires a user id", ErrStore)
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.UsageRecord{}, fmt.Errorf("%w: %w", ErrStore, err)
		}

		s.mu.RLock()
		current := s.usage[userID]
		s.mu.RUnlock()

		next := current.record
		if err := fn(&next); err != nil {
			return models.UsageRecord{}, err
		}

		s.mu.Lock()
		if s.usage[userID].version == current.version {
			s.usage[userID] = versionedUsage{record: next, version: current.version + 1}
			s.mu.Unlock()
			return next, nil
		}
		s.mu.Unlock()
		slog.Debug("Usage write conflict, retrying.", "userId", userID, "attempt", attempt)
	}
}

func (s *MemoryStore) GetUsage(ctx context.Context, userID string) (models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage[userID].record, nil
}

func (s *MemoryStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	_, err := s.UpdateUsage(ctx, userID, func(rec *models.UsageRecord) error {
		rec.Subscribed = subscribed
		return nil
	})
	return err
}

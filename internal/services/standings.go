package services

import (
	"context"

	"github.com/Lllllllleong/rfqcompliance/internal/models"
	"github.com/Lllllllleong/rfqcompliance/internal/ranking"
	"github.com/Lllllllleong/rfqcompliance/internal/store"
)

// Standings ranks the reports an actor can see.
type Standings struct {
	store store.ReportStore
}

func NewStandings(s store.ReportStore) *Standings {
	return &Standings{store: s}
}

// Current ranks the actor's visible reports once. A non-empty rfqName
// restricts the result to that group.
func (s *Standings) Current(ctx context.Context, actor models.Actor, rfqName string) ([]ranking.Group, error) {
	reports, err := s.store.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	return ranking.Filter(ranking.Rank(reports), rfqName), nil
}

// Watch calls fn with fresh standings for every snapshot the store
// delivers, until ctx is done or the subscription fails. Each snapshot is
// ranked from scratch.
func (s *Standings) Watch(ctx context.Context, actor models.Actor, rfqName string, fn func([]ranking.Group)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []models.StoredReport)
	out := ranking.Stream(ctx, in)

	errc := make(chan error, 1)
	go func() {
		defer close(in)
		errc <- s.store.Subscribe(ctx, actor, func(snap store.Snapshot) {
			select {
			case in <- snap.Reports:
			case <-ctx.Done():
			}
		})
	}()

	for groups := range out {
		fn(ranking.Filter(groups, rfqName))
	}
	cancel()
	return <-errc
}

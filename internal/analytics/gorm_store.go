package analytics

import (
	"context"

	"github.com/rotisserie/eris"

	"pagegen/app/internal/pages"
)

// RepositoryStore keeps counters in the page table columns.
type RepositoryStore struct {
	repo pages.Repository
}

// NewRepositoryStore wraps the page repository as a counter store.
func NewRepositoryStore(repo pages.Repository) (*RepositoryStore, error) {
	if repo == nil {
		return nil, eris.New("page repository is required")
	}
	return &RepositoryStore{repo: repo}, nil
}

func (s *RepositoryStore) Increment(ctx context.Context, pageID string, metric pages.Metric) (int64, error) {
	return s.repo.IncrementCounter(ctx, pageID, metric)
}

func (s *RepositoryStore) Totals(ctx context.Context, pageIDs []string) (map[string]pages.Totals, error) {
	return s.repo.CounterTotals(ctx, pageIDs)
}

package factsource

import (
	"context"
	"fmt"
	"sync"

	apperrors "pitalign/internal/errors"
	"pitalign/pkg/contracts/domain"
)

// MemorySource serves records held in memory, keyed by feed.
type MemorySource struct {
	mu    sync.RWMutex
	feeds map[string][]domain.FactRecord
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{feeds: make(map[string][]domain.FactRecord)}
}

// Add appends records to feed
func (s *MemorySource) Add(feed string, records ...domain.FactRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[feed] = append(s.feeds[feed], records...)
}

// Feeds lists the feeds holding records
func (s *MemorySource) Feeds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.feeds))
	for name := range s.feeds {
		names = append(names, name)
	}
	return names
}

// Len returns the number of records held for feed
func (s *MemorySource) Len(feed string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds[feed])
}

// Fetch implements Source. Records keep their insertion order.
func (s *MemorySource) Fetch(ctx context.Context, q Query) ([]domain.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := s.feeds[q.Feed]
	s.mu.RUnlock()

	entities := q.entitySet()
	var out []domain.FactRecord
	for _, rec := range records {
		if q.Match(rec, entities) {
			out = append(out, q.Project(rec))
		}
	}
	if len(out) == 0 {
		return nil, apperrors.NewNoFactDataError(fmt.Sprintf("no %s data match the query parameters", q.Feed)).
			WithContext("feed", q.Feed)
	}
	return out, nil
}

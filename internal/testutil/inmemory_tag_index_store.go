package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/crashwatch/crashwatch/internal/domain/tagindex"
	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
)

// InMemoryTagIndexStore implements tagindex.Repository for tests. Strings are
// assigned sequential indices on registration.
type InMemoryTagIndexStore struct {
	mu      sync.Mutex
	next    int64
	forward map[string]int64
	reverse map[int64]string
}

// NewInMemoryTagIndexStore creates a new in-memory tag index store
func NewInMemoryTagIndexStore() *InMemoryTagIndexStore {
	return &InMemoryTagIndexStore{
		next:    1,
		forward: map[string]int64{},
		reverse: map[int64]string{},
	}
}

// Register assigns (or returns) the index for an org-scoped string.
func (s *InMemoryTagIndexStore) Register(orgID int64, value string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d:%s", orgID, value)
	if idx, ok := s.forward[key]; ok {
		return idx
	}
	idx := s.next
	s.next++
	s.forward[key] = idx
	s.reverse[idx] = value
	return idx
}

// Forget drops the reverse mapping for an index, simulating a stale or
// foreign index arriving in result rows.
func (s *InMemoryTagIndexStore) Forget(index int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reverse, index)
}

func (s *InMemoryTagIndexStore) ResolveTagKey(ctx context.Context, orgID int64, name string) (int64, error) {
	return s.Register(orgID, name), nil
}

func (s *InMemoryTagIndexStore) ResolveTagValue(ctx context.Context, orgID int64, value string) (int64, error) {
	return s.Register(orgID, value), nil
}

func (s *InMemoryTagIndexStore) ResolveTagValues(ctx context.Context, orgID int64, values []string) ([]int64, error) {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = s.Register(orgID, v)
	}
	return out, nil
}

func (s *InMemoryTagIndexStore) ReverseResolveTagValue(ctx context.Context, index int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.reverse[index]
	if !ok {
		return "", ierr.NewErrorf("no tag value indexed at %d", index).
			Mark(ierr.ErrNotFound)
	}
	return value, nil
}

func (s *InMemoryTagIndexStore) ResolveMetric(ctx context.Context, orgID int64, metricKey types.MRI) (int64, error) {
	return s.Register(orgID, string(metricKey)), nil
}

var _ tagindex.Repository = (*InMemoryTagIndexStore)(nil)

// Package memory provides in-memory store implementations for tests
// and single-process runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// FilingStore is an in-memory implementation of storage.FilingStore.
type FilingStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Filing // keyed by filing_id
}

// NewFilingStore creates a new in-memory filing store.
func NewFilingStore() *FilingStore {
	return &FilingStore{
		data: make(map[string]*domain.Filing),
	}
}

// Insert adds a new filing. Returns ErrDuplicateKey if filing_id exists.
func (s *FilingStore) Insert(_ context.Context, f *domain.Filing) error {
	if f == nil || f.FilingID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FilingID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	filingCopy := *f
	s.data[f.FilingID] = &filingCopy
	return nil
}

// GetByID retrieves a filing by content hash. Returns ErrNotFound if not exists.
func (s *FilingStore) GetByID(_ context.Context, filingID string) (*domain.Filing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[filingID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	filingCopy := *f
	return &filingCopy, nil
}

// GetByCIK retrieves all filings for a company, ordered by fetched_at ASC.
func (s *FilingStore) GetByCIK(_ context.Context, cik string) ([]*domain.Filing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Filing
	for _, f := range s.data {
		if f.CIK == cik {
			filingCopy := *f
			result = append(result, &filingCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FetchedAt != result[j].FetchedAt {
			return result[i].FetchedAt < result[j].FetchedAt
		}
		return result[i].FilingID < result[j].FilingID
	})

	return result, nil
}

// Exists reports whether a filing with this content hash is already stored.
func (s *FilingStore) Exists(_ context.Context, filingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[filingID]
	return exists, nil
}

// Verify interface compliance at compile time.
var _ storage.FilingStore = (*FilingStore)(nil)

package memory

import (
	"context"
	"sort"
	"sync"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalRecord // keyed by signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.SignalRecord),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.SignalRecord) error {
	if sig == nil || sig.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	signalCopy := *sig
	s.data[sig.SignalID] = &signalCopy
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	signalCopy := *sig
	return &signalCopy, nil
}

// GetRecent retrieves up to limit signals, newest first.
func (s *SignalStore) GetRecent(_ context.Context, limit int) ([]*domain.SignalRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for _, sig := range s.data {
		signalCopy := *sig
		result = append(result, &signalCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].DetectedAt.After(result[j].DetectedAt)
		}
		return result[i].SignalID > result[j].SignalID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByFilingHash retrieves all signals derived from a filing.
func (s *SignalStore) GetByFilingHash(_ context.Context, filingHash string) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for _, sig := range s.data {
		if sig.FilingHash == filingHash {
			signalCopy := *sig
			result = append(result, &signalCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].DetectedAt.Before(result[j].DetectedAt)
		}
		return result[i].SignalID < result[j].SignalID
	})

	return result, nil
}

// Count returns the total number of stored signals.
func (s *SignalStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)

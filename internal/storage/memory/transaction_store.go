package memory

import (
	"context"
	"sort"
	"sync"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TransactionRecord // keyed by filing_id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string][]*domain.TransactionRecord),
	}
}

// InsertBulk adds all transactions of one filing atomically.
func (s *TransactionStore) InsertBulk(_ context.Context, records []*domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.FilingID == "" || r.InsiderName == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		recordCopy := *r
		s.data[r.FilingID] = append(s.data[r.FilingID], &recordCopy)
	}
	return nil
}

// GetByFilingID retrieves all transactions of a filing, ordered by
// transaction date ASC.
func (s *TransactionStore) GetByFilingID(_ context.Context, filingID string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TransactionRecord
	for _, r := range s.data[filingID] {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TransactionDate.Before(result[j].TransactionDate)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TransactionStore = (*TransactionStore)(nil)

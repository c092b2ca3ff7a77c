package memory

import (
	"context"
	"sort"
	"sync"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// SignalMetricsStore is an in-memory implementation of storage.SignalMetricsStore.
type SignalMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalMetric // keyed by signal_id
}

// NewSignalMetricsStore creates a new in-memory signal metrics store.
func NewSignalMetricsStore() *SignalMetricsStore {
	return &SignalMetricsStore{
		data: make(map[string]*domain.SignalMetric),
	}
}

// InsertBulk adds multiple metric rows. Fails entire batch on duplicate signal_id.
func (s *SignalMetricsStore) InsertBulk(_ context.Context, metrics []*domain.SignalMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate whole batch before writing anything
	seen := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if m == nil || m.SignalID == "" {
			return storage.ErrInvalidInput
		}
		if seen[m.SignalID] {
			return storage.ErrDuplicateKey
		}
		seen[m.SignalID] = true
		if _, exists := s.data[m.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for _, m := range metrics {
		metricCopy := *m
		s.data[m.SignalID] = &metricCopy
	}
	return nil
}

// GetBySymbol retrieves all metric rows for a company, ordered by detected_at ASC.
func (s *SignalMetricsStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.SignalMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalMetric
	for _, m := range s.data {
		if m.CompanySymbol == symbol {
			metricCopy := *m
			result = append(result, &metricCopy)
		}
	}

	sortMetrics(result)
	return result, nil
}

// GetByTimeRange retrieves metric rows with detected_at in [start, end],
// ordered by detected_at ASC.
func (s *SignalMetricsStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SignalMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalMetric
	for _, m := range s.data {
		if m.DetectedAtMs >= start && m.DetectedAtMs <= end {
			metricCopy := *m
			result = append(result, &metricCopy)
		}
	}

	sortMetrics(result)
	return result, nil
}

func sortMetrics(metrics []*domain.SignalMetric) {
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].DetectedAtMs != metrics[j].DetectedAtMs {
			return metrics[i].DetectedAtMs < metrics[j].DetectedAtMs
		}
		return metrics[i].SignalID < metrics[j].SignalID
	})
}

// Verify interface compliance at compile time.
var _ storage.SignalMetricsStore = (*SignalMetricsStore)(nil)

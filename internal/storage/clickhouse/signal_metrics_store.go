package clickhouse

import (
	"context"
	"fmt"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// SignalMetricsStore implements storage.SignalMetricsStore using ClickHouse.
type SignalMetricsStore struct {
	conn *Conn
}

// NewSignalMetricsStore creates a new SignalMetricsStore.
func NewSignalMetricsStore(conn *Conn) *SignalMetricsStore {
	return &SignalMetricsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalMetricsStore = (*SignalMetricsStore)(nil)

// InsertBulk adds multiple metric rows. Fails entire batch on duplicate signal_id.
func (s *SignalMetricsStore) InsertBulk(ctx context.Context, metrics []*domain.SignalMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, m := range metrics {
		if m == nil || m.SignalID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[m.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[m.SignalID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check against existing rows
	for _, m := range metrics {
		exists, err := s.exists(ctx, m.SignalID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO signal_metrics (
			signal_id, company_symbol, filing_type, confidence, threshold_value,
			percentage_sold, effective_percentage, num_transactions,
			num_unique_insiders, role_multiplier, time_clustered, detected_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range metrics {
		err = batch.Append(
			m.SignalID, m.CompanySymbol, m.FilingType, m.Confidence, m.ThresholdValue,
			m.PercentageSold, m.EffectivePercentage, uint32(m.NumTransactions),
			uint32(m.NumUniqueInsiders), m.RoleMultiplier, m.TimeClustered, uint64(m.DetectedAtMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all metric rows for a company, ordered by detected_at ASC.
func (s *SignalMetricsStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.SignalMetric, error) {
	query := signalMetricSelect + `
		WHERE company_symbol = ?
		ORDER BY detected_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanSignalMetrics(rows)
}

// GetByTimeRange retrieves rows detected within [start, end] ms (inclusive).
func (s *SignalMetricsStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SignalMetric, error) {
	query := signalMetricSelect + `
		WHERE detected_at_ms >= ? AND detected_at_ms <= ?
		ORDER BY detected_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSignalMetrics(rows)
}

// exists checks if a metric row with the given signal_id exists.
func (s *SignalMetricsStore) exists(ctx context.Context, signalID string) (bool, error) {
	query := `SELECT count(*) FROM signal_metrics WHERE signal_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, signalID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

const signalMetricSelect = `
	SELECT signal_id, company_symbol, filing_type, confidence, threshold_value,
	       percentage_sold, effective_percentage, num_transactions,
	       num_unique_insiders, role_multiplier, time_clustered, detected_at_ms
	FROM signal_metrics
`

// chRows is the row iterator subset shared by driver.Rows.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSignalMetrics scans multiple rows.
func scanSignalMetrics(rows chRows) ([]*domain.SignalMetric, error) {
	var metrics []*domain.SignalMetric

	for rows.Next() {
		var m domain.SignalMetric
		var numTx, numInsiders uint32
		var detectedAtMs uint64

		err := rows.Scan(
			&m.SignalID, &m.CompanySymbol, &m.FilingType, &m.Confidence, &m.ThresholdValue,
			&m.PercentageSold, &m.EffectivePercentage, &numTx,
			&numInsiders, &m.RoleMultiplier, &m.TimeClustered, &detectedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal metric row: %w", err)
		}

		m.NumTransactions = int(numTx)
		m.NumUniqueInsiders = int(numInsiders)
		m.DetectedAtMs = int64(detectedAtMs)
		metrics = append(metrics, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal metric rows: %w", err)
	}

	return metrics, nil
}

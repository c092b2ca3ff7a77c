package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
// SignalDetails is stored as JSONB so the detection metrics survive
// schema evolution without column churn.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.SignalRecord) error {
	if sig == nil || sig.SignalID == "" {
		return storage.ErrInvalidInput
	}

	details, err := json.Marshal(sig.Details)
	if err != nil {
		return fmt.Errorf("marshal signal details: %w", err)
	}

	query := `
		INSERT INTO signals (
			signal_id, signal_type, company_symbol, filing_type,
			confidence, threshold_exceeded, threshold_value, details,
			filing_url, filing_hash, cid, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		sig.SignalID,
		sig.SignalType,
		sig.CompanySymbol,
		sig.FilingType,
		sig.Confidence,
		sig.ThresholdExceeded,
		sig.ThresholdValue,
		details,
		sig.FilingURL,
		sig.FilingHash,
		sig.CID,
		sig.DetectedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error) {
	query := signalSelect + ` WHERE signal_id = $1`

	row := s.pool.QueryRow(ctx, query, signalID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetRecent retrieves up to limit signals, newest first.
func (s *SignalStore) GetRecent(ctx context.Context, limit int) ([]*domain.SignalRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := signalSelect + ` ORDER BY detected_at DESC, signal_id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByFilingHash retrieves all signals derived from a filing.
func (s *SignalStore) GetByFilingHash(ctx context.Context, filingHash string) ([]*domain.SignalRecord, error) {
	query := signalSelect + ` WHERE filing_hash = $1 ORDER BY detected_at ASC, signal_id ASC`

	rows, err := s.pool.Query(ctx, query, filingHash)
	if err != nil {
		return nil, fmt.Errorf("get signals by filing hash: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// Count returns the total number of stored signals.
func (s *SignalStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM signals`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return count, nil
}

const signalSelect = `
	SELECT signal_id, signal_type, company_symbol, filing_type,
	       confidence, threshold_exceeded, threshold_value, details,
	       filing_url, filing_hash, cid, detected_at, created_at
	FROM signals
`

// scanSignal scans a single row into a SignalRecord.
func scanSignal(row pgx.Row) (*domain.SignalRecord, error) {
	var sig domain.SignalRecord
	var details []byte

	err := row.Scan(
		&sig.SignalID,
		&sig.SignalType,
		&sig.CompanySymbol,
		&sig.FilingType,
		&sig.Confidence,
		&sig.ThresholdExceeded,
		&sig.ThresholdValue,
		&details,
		&sig.FilingURL,
		&sig.FilingHash,
		&sig.CID,
		&sig.DetectedAt,
		&sig.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(details, &sig.Details); err != nil {
		return nil, fmt.Errorf("unmarshal signal details: %w", err)
	}
	return &sig, nil
}

// scanSignals scans multiple rows into a slice of SignalRecord.
func scanSignals(rows pgx.Rows) ([]*domain.SignalRecord, error) {
	var signals []*domain.SignalRecord

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}

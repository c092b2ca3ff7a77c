package storage

import (
	"context"

	"insider-signal-lab/internal/domain"
)

// FilingStore provides access to filings storage. Filings are keyed by
// content hash, so re-fetching an unchanged document is a duplicate.
type FilingStore interface {
	// Insert adds a new filing. Returns ErrDuplicateKey if filing_id exists.
	Insert(ctx context.Context, f *domain.Filing) error

	// GetByID retrieves a filing by content hash. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, filingID string) (*domain.Filing, error)

	// GetByCIK retrieves all filings for a company, ordered by fetched_at ASC.
	GetByCIK(ctx context.Context, cik string) ([]*domain.Filing, error)

	// Exists reports whether a filing with this content hash is already stored.
	Exists(ctx context.Context, filingID string) (bool, error)
}

// TransactionStore provides access to insider_transactions storage.
type TransactionStore interface {
	// InsertBulk adds all transactions of one filing atomically.
	InsertBulk(ctx context.Context, records []*domain.TransactionRecord) error

	// GetByFilingID retrieves all transactions of a filing, ordered by
	// transaction date ASC.
	GetByFilingID(ctx context.Context, filingID string) ([]*domain.TransactionRecord, error)
}

// SignalStore provides access to signals storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.SignalRecord) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error)

	// GetRecent retrieves up to limit signals, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.SignalRecord, error)

	// GetByFilingHash retrieves all signals derived from a filing.
	GetByFilingHash(ctx context.Context, filingHash string) ([]*domain.SignalRecord, error)

	// Count returns the total number of stored signals.
	Count(ctx context.Context) (int64, error)
}

// SignalMetricsStore provides access to the signal_metrics analytics table.
type SignalMetricsStore interface {
	// InsertBulk adds multiple metric rows. Fails entire batch on duplicate signal_id.
	InsertBulk(ctx context.Context, metrics []*domain.SignalMetric) error

	// GetBySymbol retrieves all metric rows for a company, ordered by detected_at ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.SignalMetric, error)

	// GetByTimeRange retrieves rows detected within [start, end] ms (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SignalMetric, error)
}

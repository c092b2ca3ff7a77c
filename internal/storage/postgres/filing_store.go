package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// FilingStore implements storage.FilingStore using PostgreSQL.
type FilingStore struct {
	pool *Pool
}

// NewFilingStore creates a new FilingStore.
func NewFilingStore(pool *Pool) *FilingStore {
	return &FilingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FilingStore = (*FilingStore)(nil)

// Insert adds a new filing. Returns ErrDuplicateKey if filing_id exists.
func (s *FilingStore) Insert(ctx context.Context, f *domain.Filing) error {
	query := `
		INSERT INTO filings (
			filing_id, cik, accession_no, filing_type, filing_url, cid, raw_content, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FilingID,
		f.CIK,
		f.AccessionNo,
		f.FilingType,
		f.FilingURL,
		f.CID,
		f.RawContent,
		f.FetchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert filing: %w", err)
	}
	return nil
}

// GetByID retrieves a filing by content hash. Returns ErrNotFound if not exists.
func (s *FilingStore) GetByID(ctx context.Context, filingID string) (*domain.Filing, error) {
	query := `
		SELECT filing_id, cik, accession_no, filing_type, filing_url, cid, raw_content, fetched_at, created_at
		FROM filings
		WHERE filing_id = $1
	`

	row := s.pool.QueryRow(ctx, query, filingID)
	f, err := scanFiling(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get filing by id: %w", err)
	}
	return f, nil
}

// GetByCIK retrieves all filings for a company, ordered by fetched_at ASC.
func (s *FilingStore) GetByCIK(ctx context.Context, cik string) ([]*domain.Filing, error) {
	query := `
		SELECT filing_id, cik, accession_no, filing_type, filing_url, cid, raw_content, fetched_at, created_at
		FROM filings
		WHERE cik = $1
		ORDER BY fetched_at ASC, filing_id ASC
	`

	rows, err := s.pool.Query(ctx, query, cik)
	if err != nil {
		return nil, fmt.Errorf("get filings by cik: %w", err)
	}
	defer rows.Close()

	return scanFilings(rows)
}

// Exists reports whether a filing with this content hash is already stored.
func (s *FilingStore) Exists(ctx context.Context, filingID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM filings WHERE filing_id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, filingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check filing exists: %w", err)
	}
	return exists, nil
}

// scanFiling scans a single row into a Filing.
func scanFiling(row pgx.Row) (*domain.Filing, error) {
	var f domain.Filing
	err := row.Scan(
		&f.FilingID,
		&f.CIK,
		&f.AccessionNo,
		&f.FilingType,
		&f.FilingURL,
		&f.CID,
		&f.RawContent,
		&f.FetchedAt,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// scanFilings scans multiple rows into a slice of Filing.
func scanFilings(rows pgx.Rows) ([]*domain.Filing, error) {
	var filings []*domain.Filing

	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filing row: %w", err)
		}
		filings = append(filings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filing rows: %w", err)
	}

	return filings, nil
}

package postgres

import (
	"context"
	"fmt"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// InsertBulk adds all transactions of one filing atomically.
func (s *TransactionStore) InsertBulk(ctx context.Context, records []*domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO insider_transactions (
			filing_id, insider_name, role_title, transaction_date,
			shares_sold, shares_bought, shares_owned_after, kind
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, r := range records {
		if r == nil || r.FilingID == "" || r.InsiderName == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			r.FilingID,
			r.InsiderName,
			r.RoleTitle,
			r.TransactionDate,
			r.SharesSold,
			r.SharesBought,
			r.SharesOwnedAfter,
			string(r.Kind),
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}
	return nil
}

// GetByFilingID retrieves all transactions of a filing, ordered by
// transaction date ASC.
func (s *TransactionStore) GetByFilingID(ctx context.Context, filingID string) ([]*domain.TransactionRecord, error) {
	query := `
		SELECT filing_id, insider_name, role_title, transaction_date,
		       shares_sold, shares_bought, shares_owned_after, kind, created_at
		FROM insider_transactions
		WHERE filing_id = $1
		ORDER BY transaction_date ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, filingID)
	if err != nil {
		return nil, fmt.Errorf("get transactions by filing id: %w", err)
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		var r domain.TransactionRecord
		var kindStr string

		err := rows.Scan(
			&r.FilingID,
			&r.InsiderName,
			&r.RoleTitle,
			&r.TransactionDate,
			&r.SharesSold,
			&r.SharesBought,
			&r.SharesOwnedAfter,
			&kindStr,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		r.Kind = domain.TransactionKind(kindStr)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return records, nil
}

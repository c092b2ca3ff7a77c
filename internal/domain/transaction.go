package domain

import "time"

// TransactionKind classifies a disclosed insider transaction.
type TransactionKind string

const (
	TransactionSale     TransactionKind = "Sale"
	TransactionPurchase TransactionKind = "Purchase"
)

// Form 4 transaction codes that classify as a sale.
// S = open-market sale, F = shares withheld to cover exercise price/tax.
var saleCodes = map[string]bool{
	"S": true,
	"F": true,
}

// KindForCode maps a Form 4 transaction code to a TransactionKind.
// Codes outside the sale set classify as Purchase.
func KindForCode(code string) TransactionKind {
	if saleCodes[code] {
		return TransactionSale
	}
	return TransactionPurchase
}

// TransactionRecord represents one disclosed insider transaction.
// Corresponds to insider_transactions table in PostgreSQL.
// Exactly one of SharesSold/SharesBought is non-zero, enforced by the
// classification rule at the parsing boundary.
type TransactionRecord struct {
	FilingID         string          // owning filing content hash
	InsiderName      string          // reporting owner name, non-empty
	RoleTitle        string          // free-text role/title, may be empty
	TransactionDate  time.Time       // calendar date, no time-of-day semantics
	SharesSold       int64           // non-negative
	SharesBought     int64           // non-negative
	SharesOwnedAfter int64           // holdings immediately after this transaction
	Kind             TransactionKind // Sale | Purchase, derived from transaction code
	CreatedAt        int64           // record creation timestamp (ms)
}

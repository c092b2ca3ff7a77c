package domain

// Filing represents one fetched ownership filing.
// Corresponds to filings table in PostgreSQL.
type Filing struct {
	FilingID    string // PRIMARY KEY, SHA-256 content hash (hex)
	CIK         string // company CIK number
	AccessionNo string // EDGAR accession number (may be empty for uploads)
	FilingType  string // "4", "10-K", ...
	FilingURL   string // source document URL (empty for uploads)
	CID         string // base58 CIDv0 content address
	RawContent  string // original document body
	FetchedAt   int64  // Unix timestamp in milliseconds
	CreatedAt   int64  // record creation timestamp (ms)
}

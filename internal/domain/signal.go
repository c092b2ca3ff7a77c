package domain

import "time"

// SignalTypeInsiderSelling is the signal tag emitted by the selling detector.
const SignalTypeInsiderSelling = "INSIDER_SELLING"

// SignalDetails carries the detection metrics behind a fired signal.
// Percentages and multipliers are rounded to 2 decimal places for reporting.
type SignalDetails struct {
	TotalSharesSold     int64    `json:"total_shares_sold"`
	TotalSharesBought   int64    `json:"total_shares_bought"`
	WeightedSharesSold  float64  `json:"weighted_shares_sold"`
	PercentageSold      float64  `json:"percentage_sold"`
	EffectivePercentage float64  `json:"effective_percentage"`
	Threshold           float64  `json:"threshold"`
	NumTransactions     int      `json:"num_transactions"`
	NumUniqueInsiders   int      `json:"num_unique_insiders"`
	Insiders            []string `json:"insiders"`
	Roles               []string `json:"roles"`
	RoleMultiplier      float64  `json:"role_multiplier"`
	TimeClustered       *bool    `json:"time_clustered"` // nil when fewer than 2 transactions
	DateRangeDays       int      `json:"date_range_days"`
}

// SignalRecord represents a detected insider signal.
// Corresponds to signals table in PostgreSQL. The detector fills the
// detection fields; filing linkage (SignalID, FilingHash, CID, FilingURL,
// CompanySymbol, FilingType) is attached by the ingestion/publishing side.
// Immutable once constructed.
type SignalRecord struct {
	SignalID          string        `json:"signal_id,omitempty"`
	SignalType        string        `json:"signal_type"`
	CompanySymbol     string        `json:"company_symbol"`
	FilingType        string        `json:"filing_type"`
	Confidence        float64       `json:"confidence"`
	ThresholdExceeded bool          `json:"threshold_exceeded"`
	ThresholdValue    float64       `json:"threshold_value"`
	Details           SignalDetails `json:"details"`
	FilingURL         string        `json:"filing_url"`
	FilingHash        string        `json:"filing_hash,omitempty"`
	CID               string        `json:"cid,omitempty"`
	DetectedAt        time.Time     `json:"detected_at"`
	CreatedAt         int64         `json:"-"` // record creation timestamp (ms)
}

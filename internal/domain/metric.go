package domain

// SignalMetric is the flattened analytics projection of a fired signal,
// stored in ClickHouse for cross-company queries.
type SignalMetric struct {
	SignalID            string
	CompanySymbol       string
	FilingType          string
	Confidence          float64
	ThresholdValue      float64
	PercentageSold      float64
	EffectivePercentage float64
	NumTransactions     int
	NumUniqueInsiders   int
	RoleMultiplier      float64
	TimeClustered       bool
	DetectedAtMs        int64
}

// MetricFromSignal projects a signal record into its analytics row.
func MetricFromSignal(s *SignalRecord) *SignalMetric {
	clustered := s.Details.TimeClustered != nil && *s.Details.TimeClustered
	return &SignalMetric{
		SignalID:            s.SignalID,
		CompanySymbol:       s.CompanySymbol,
		FilingType:          s.FilingType,
		Confidence:          s.Confidence,
		ThresholdValue:      s.ThresholdValue,
		PercentageSold:      s.Details.PercentageSold,
		EffectivePercentage: s.Details.EffectivePercentage,
		NumTransactions:     s.Details.NumTransactions,
		NumUniqueInsiders:   s.Details.NumUniqueInsiders,
		RoleMultiplier:      s.Details.RoleMultiplier,
		TimeClustered:       clustered,
		DetectedAtMs:        s.DetectedAt.UnixMilli(),
	}
}

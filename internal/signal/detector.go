// Package signal implements the insider-selling detection engine.
// It is a pure function of its transaction input plus the static role-weight
// table: no I/O, no shared mutable state, safe to call concurrently.
package signal

import (
	"math"
	"time"

	"insider-signal-lab/internal/domain"
	"insider-signal-lab/internal/roleweight"
)

// ClusterWindowDays is the window within which multiple transactions count
// as time-clustered (a suspicion amplifier).
const ClusterWindowDays = 30

// Detector flags abnormal insider-selling activity in a filing's transactions.
type Detector struct{}

// NewDetector creates a new selling detector.
func NewDetector() *Detector {
	return &Detector{}
}

// detectionMetrics holds intermediate aggregates for one detection call.
type detectionMetrics struct {
	totalSold           int64
	totalBought         int64
	weightedSold        float64 // reporting-only, not consumed by the firing rule
	roleMultiplier      float64 // max role weight across all records
	percentageSold      float64 // unweighted
	effectivePercentage float64 // percentageSold * roleMultiplier, drives firing
}

// Detect evaluates transactions against a percentage threshold and returns
// a SignalRecord when role-weighted selling exceeds it, nil otherwise.
//
// Records must be supplied in chronological order: the last record's
// SharesOwnedAfter is taken as current ownership. Detect does not sort and
// cannot detect misordering; the ingestion side owns that precondition.
// The threshold is compared against the role-weighted effective percentage,
// while ThresholdValue reports the unweighted one. Both are intentional:
// a CEO's sale can fire a signal the raw percentage alone would not.
func (d *Detector) Detect(records []domain.TransactionRecord, threshold float64) *domain.SignalRecord {
	if len(records) == 0 {
		return nil
	}

	m := aggregate(records)
	if m.effectivePercentage < threshold {
		return nil
	}

	insiders := distinctInsiders(records)
	roles := distinctRoles(records)

	// Clustering is undefined for a single transaction: DateRangeDays stays 0
	// and TimeClustered stays nil.
	clustered := false
	dateRangeDays := 0
	var timeClustered *bool
	if len(records) > 1 {
		minDate, maxDate := dateSpan(records)
		dateRangeDays = int(maxDate.Sub(minDate).Hours() / 24)
		clustered = dateRangeDays <= ClusterWindowDays
		timeClustered = &clustered
	}

	confidence := Confidence(m.percentageSold, threshold, len(insiders), clustered, m.roleMultiplier)

	return &domain.SignalRecord{
		SignalType:        domain.SignalTypeInsiderSelling,
		Confidence:        confidence,
		ThresholdExceeded: true,
		ThresholdValue:    m.percentageSold,
		Details: domain.SignalDetails{
			TotalSharesSold:     m.totalSold,
			TotalSharesBought:   m.totalBought,
			WeightedSharesSold:  round2(m.weightedSold),
			PercentageSold:      round2(m.percentageSold),
			EffectivePercentage: round2(m.effectivePercentage),
			Threshold:           threshold,
			NumTransactions:     len(records),
			NumUniqueInsiders:   len(insiders),
			Insiders:            insiders,
			Roles:               roles,
			RoleMultiplier:      round2(m.roleMultiplier),
			TimeClustered:       timeClustered,
			DateRangeDays:       dateRangeDays,
		},
		DetectedAt: time.Now().UTC(),
	}
}

// aggregate computes selling totals, role weighting and percentages.
func aggregate(records []domain.TransactionRecord) detectionMetrics {
	var m detectionMetrics

	for _, r := range records {
		w := roleweight.WeightFor(r.RoleTitle)
		m.totalSold += r.SharesSold
		m.totalBought += r.SharesBought
		m.weightedSold += float64(r.SharesSold) * w
		if w > m.roleMultiplier {
			m.roleMultiplier = w
		}
	}

	// Last record in input order is authoritative for current ownership.
	recentOwnership := records[len(records)-1].SharesOwnedAfter
	if recentOwnership > 0 {
		m.percentageSold = float64(m.totalSold) / float64(recentOwnership+m.totalSold) * 100
	}

	m.effectivePercentage = m.percentageSold * m.roleMultiplier
	return m
}

// distinctInsiders returns unique insider names in first-seen order.
func distinctInsiders(records []domain.TransactionRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var names []string
	for _, r := range records {
		if _, ok := seen[r.InsiderName]; ok {
			continue
		}
		seen[r.InsiderName] = struct{}{}
		names = append(names, r.InsiderName)
	}
	return names
}

// distinctRoles returns unique role titles in first-seen order.
func distinctRoles(records []domain.TransactionRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var roles []string
	for _, r := range records {
		if _, ok := seen[r.RoleTitle]; ok {
			continue
		}
		seen[r.RoleTitle] = struct{}{}
		roles = append(roles, r.RoleTitle)
	}
	return roles
}

// dateSpan returns the earliest and latest transaction dates.
func dateSpan(records []domain.TransactionRecord) (time.Time, time.Time) {
	minDate, maxDate := records[0].TransactionDate, records[0].TransactionDate
	for _, r := range records[1:] {
		if r.TransactionDate.Before(minDate) {
			minDate = r.TransactionDate
		}
		if r.TransactionDate.After(maxDate) {
			maxDate = r.TransactionDate
		}
	}
	return minDate, maxDate
}

// round2 rounds to 2 decimal places for reporting.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

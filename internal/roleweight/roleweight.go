// Package roleweight maps insider role titles to importance multipliers.
// CEO/CFO sales are more predictive of abnormal activity than director or
// large-shareholder sales, so their transactions carry more weight.
package roleweight

import "strings"

// DefaultWeight applies when a title matches no known role substring.
const DefaultWeight = 1.0

// weights is the fixed role table, keyed by lowercase substring.
// Process-wide immutable; read-only after init, safe for concurrent use.
var weights = map[string]float64{
	"ceo":                     1.5,
	"chief executive officer": 1.5,
	"cfo":                     1.4,
	"chief financial officer": 1.4,
	"coo":                     1.3,
	"chief operating officer": 1.3,
	"president":               1.3,
	"cto":                     1.2,
	"chief technology officer": 1.2,
	"director":                1.0,
	"officer":                 0.9,
	"insider":                 0.8,
	"10% owner":               0.7,
}

// WeightFor resolves the weight for a free-text role title.
// Matching is case-insensitive substring; when several keys match, the
// maximum weight wins. Titles matching nothing get DefaultWeight.
func WeightFor(roleTitle string) float64 {
	title := strings.ToLower(roleTitle)

	weight := 0.0
	matched := false
	for role, w := range weights {
		if strings.Contains(title, role) {
			matched = true
			if w > weight {
				weight = w
			}
		}
	}

	if !matched {
		return DefaultWeight
	}
	return weight
}

// Min and Max bound the table for normalization by the confidence scorer.
const (
	Min = 0.7
	Max = 1.5
)

package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence_Bounds(t *testing.T) {
	cases := []struct {
		name           string
		percentageSold float64
		threshold      float64
		insiders       int
		clustered      bool
		roleMultiplier float64
	}{
		{"at threshold", 40, 40, 1, false, 1.0},
		{"far above threshold", 99, 40, 1, false, 1.0},
		{"many insiders", 50, 40, 10, true, 1.5},
		{"low weight owner", 80, 40, 1, false, 0.7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Confidence(tc.percentageSold, tc.threshold, tc.insiders, tc.clustered, tc.roleMultiplier)
			assert.Greater(t, c, 0.0)
			assert.LessOrEqual(t, c, MaxConfidence)
		})
	}
}

func TestConfidence_AllFactorsSaturated(t *testing.T) {
	// Double the threshold, 3+ insiders, clustered, max role weight:
	// raw sum of weights is 1.0, capped to exactly MaxConfidence.
	c := Confidence(80, 40, 3, true, 1.5)
	assert.Equal(t, MaxConfidence, c)
}

func TestConfidence_ZeroThresholdGuard(t *testing.T) {
	// Degenerate thresholds must not divide by zero; the distance factor
	// saturates instead.
	forZero := Confidence(50, 0, 1, false, 1.0)
	forNegative := Confidence(50, -10, 1, false, 1.0)

	saturated := Confidence(200, 40, 1, false, 1.0) // distance factor = 1 via clamp
	assert.Equal(t, saturated, forZero)
	assert.Equal(t, saturated, forNegative)
}

func TestConfidence_ThresholdDistanceClamped(t *testing.T) {
	// Below threshold the distance factor clamps to 0, not negative.
	below := Confidence(20, 40, 1, false, 1.0)
	at := Confidence(40, 40, 1, false, 1.0)
	assert.Equal(t, at, below)
}

func TestConfidence_InsiderBreadth(t *testing.T) {
	one := Confidence(50, 40, 1, false, 1.0)
	two := Confidence(50, 40, 2, false, 1.0)
	three := Confidence(50, 40, 3, false, 1.0)
	five := Confidence(50, 40, 5, false, 1.0)

	assert.Less(t, one, two)
	assert.Less(t, two, three)
	// Saturates at 3 insiders.
	assert.Equal(t, three, five)
}

func TestConfidence_ClusteringAmplifies(t *testing.T) {
	clustered := Confidence(50, 40, 2, true, 1.0)
	spread := Confidence(50, 40, 2, false, 1.0)

	// Clustered factor 1.0 vs 0.5, weighted at 0.15.
	assert.InDelta(t, 0.075, clustered-spread, 1e-9)
}

func TestConfidence_RoleImportance(t *testing.T) {
	owner := Confidence(50, 40, 1, false, 0.7) // normalized factor 0
	ceo := Confidence(50, 40, 1, false, 1.5)   // normalized factor 1

	assert.InDelta(t, roleImportanceWeight, ceo-owner, 1e-9)
}

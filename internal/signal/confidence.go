package signal

import (
	"math"

	"insider-signal-lab/internal/roleweight"
)

// Confidence factor weights, summing to 1.0.
const (
	thresholdDistanceWeight = 0.40
	insiderBreadthWeight    = 0.30
	timeClusterWeight       = 0.15
	roleImportanceWeight    = 0.15

	// MaxConfidence caps the score: the engine never claims certainty.
	MaxConfidence = 0.99
)

// Confidence combines four normalized factors into a bounded score in
// (0, MaxConfidence]:
//
//	threshold distance: how far the unweighted percentage exceeds threshold
//	insider breadth:    1 insider = 1/3, 2 = 2/3, 3+ = saturated
//	time clustering:    full factor when clustered, half otherwise
//	role importance:    role multiplier normalized over the weight table range
//
// A zero or negative threshold would make the distance ratio meaningless
// (or divide by zero); policy is to saturate that factor rather than fail.
func Confidence(percentageSold, threshold float64, uniqueInsiders int, clustered bool, roleMultiplier float64) float64 {
	thresholdFactor := 1.0
	if threshold > 0 {
		thresholdFactor = clamp01(percentageSold/threshold - 1.0)
	}

	insiderFactor := clamp01(float64(uniqueInsiders) / 3.0)

	clusterFactor := 0.5
	if clustered {
		clusterFactor = 1.0
	}

	roleFactor := clamp01((roleMultiplier - roleweight.Min) / (roleweight.Max - roleweight.Min))

	confidence := thresholdFactor*thresholdDistanceWeight +
		insiderFactor*insiderBreadthWeight +
		clusterFactor*timeClusterWeight +
		roleFactor*roleImportanceWeight

	return math.Min(confidence, MaxConfidence)
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

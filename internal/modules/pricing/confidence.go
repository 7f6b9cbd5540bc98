// README: Confidence model for route clusters: variance normalization, score, suggested range.
package pricing

import "math"

const (
	minRangeSpread = 500
	minRangeLower  = 500
	// stored scores are rounded to 4 decimals, anything beyond that is drift.
	staleTolerance = 1e-4
)

// NormalizeVariance scales a price variance by the squared median, capped at 1.
// Non-finite or non-positive variance normalizes to 0 (no discount).
func NormalizeVariance(variance, medianPrice float64) float64 {
	if math.IsNaN(variance) || math.IsInf(variance, 0) || variance <= 0 {
		return 0
	}
	denom := math.Max(1, medianPrice)
	return math.Min(1, variance/(denom*denom))
}

// ComputeConfidenceScore combines a log-scaled sample count (saturating at 999
// samples) with a variance discount. Result is in [0,1], rounded to 4 decimals.
func ComputeConfidenceScore(sampleCount int, variance, medianPrice float64) float64 {
	if sampleCount <= 0 {
		return 0
	}
	countComponent := math.Min(1, math.Log10(float64(sampleCount)+1)/3)
	score := countComponent * (1 - NormalizeVariance(variance, medianPrice))
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*10000) / 10000
}

// ConfidenceFor is ComputeConfidenceScore for nullable variance; nil means no
// variance data and applies no discount.
func ConfidenceFor(sampleCount int, variance *float64, medianPrice int) float64 {
	v := 0.0
	if variance != nil {
		v = *variance
	}
	return ComputeConfidenceScore(sampleCount, v, float64(medianPrice))
}

// IsStaleConfidence reports whether a stored score no longer matches the one
// recomputed from the cluster's own statistics.
func IsStaleConfidence(stored float64, sampleCount int, variance *float64, medianPrice int) bool {
	return math.Abs(stored-ConfidenceFor(sampleCount, variance, medianPrice)) > staleTolerance
}

// SuggestedPriceRange returns [lower, upper] around median using half the IQR,
// never narrower than +-500 and never below 500.
func SuggestedPriceRange(median, iqr int) [2]int {
	spread := int(math.Round(float64(iqr) / 2))
	if spread < minRangeSpread {
		spread = minRangeSpread
	}
	lower := median - spread
	if lower < minRangeLower {
		lower = minRangeLower
	}
	return [2]int{lower, median + spread}
}

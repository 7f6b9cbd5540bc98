// README: Distance-based preset prices used when no cluster matches.
package pricing

import "math"

const (
	presetPerKm     = 1500
	presetStep      = 500
	presetFloor     = 4000
	presetLowFloor  = 1000
	presetBandWidth = 1000
)

// DerivePresetPrices returns (low, baseline, high) for a straight-line distance.
// baseline is a multiple of 500 and never below 4000; low <= baseline <= high.
func DerivePresetPrices(distanceMeters int) (low, baseline, high int) {
	km := float64(distanceMeters) / 1000
	baseline = int(math.Round(km*presetPerKm/presetStep)) * presetStep
	if baseline < presetFloor {
		baseline = presetFloor
	}
	low = baseline - presetBandWidth
	if low < presetLowFloor {
		low = presetLowFloor
	}
	high = baseline + presetBandWidth
	return low, baseline, high
}

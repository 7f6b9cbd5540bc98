// README: Pure mapping from a winning cluster, or from distance presets, to a suggestion payload.
package suggest

import (
	"taxifare/internal/modules/cluster"
	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/types"
)

func ClusterToResponse(c cluster.RouteCluster, start, end types.Point) Response {
	id := c.ClusterID
	return Response{
		SuggestedPrice: c.MedianPrice,
		PriceRange:     pricing.SuggestedPriceRange(c.MedianPrice, c.IQRPrice),
		Median:         c.MedianPrice,
		Count:          c.SampleCount,
		Confidence:     c.ConfidenceScore,
		ClusterID:      &id,
		LastUpdated:    c.LastUpdated,
		Start:          start,
		End:            end,
	}
}

func FallbackResponse(start, end types.Point) Response {
	low, baseline, high := pricing.DerivePresetPrices(geo.HaversineMeters(start, end))
	return Response{
		SuggestedPrice: baseline,
		PriceRange:     [2]int{low, high},
		Median:         baseline,
		Start:          start,
		End:            end,
	}
}

// README: Route cluster read model and the query/refresh contracts of the external cluster store.
package cluster

import (
	"context"
	"time"

	"taxifare/internal/types"
)

// DefaultQueryLimit caps rows returned by a single candidate query.
const DefaultQueryLimit = 100

// RouteCluster is a pre-aggregated price distribution for trips between two
// start/end buckets, optionally narrowed by hour, weekday and vehicle type.
type RouteCluster struct {
	ClusterID       types.ID   `json:"cluster_id"`
	StartBucket     string     `json:"start_bucket"`
	EndBucket       string     `json:"end_bucket"`
	TimeBucket      *int       `json:"time_bucket"`
	DayOfWeek       *int       `json:"day_of_week"`
	VehicleType     *string    `json:"vehicle_type"`
	StartLat        float64    `json:"start_lat"`
	StartLng        float64    `json:"start_lng"`
	EndLat          float64    `json:"end_lat"`
	EndLng          float64    `json:"end_lng"`
	MedianPrice     int        `json:"median_price"`
	IQRPrice        int        `json:"iqr_price"`
	PriceVariance   *float64   `json:"price_variance"`
	SampleCount     int        `json:"sample_count"`
	ConfidenceScore float64    `json:"confidence_score"`
	FirstSampleAt   *time.Time `json:"first_sample_at"`
	LastUpdated     *time.Time `json:"last_updated"`
}

// Query selects clusters whose start and end buckets fall in the given sets.
// A nil TimeBucket/DayOfWeek/VehicleType leaves that dimension unconstrained.
// Rows with sample_count < 1 are never returned; results are ordered by
// confidence_score DESC, sample_count DESC.
type Query struct {
	StartBuckets []string
	EndBuckets   []string
	TimeBucket   *int
	DayOfWeek    *int
	VehicleType  *string
	Limit        int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// Reader is the read side of the cluster store.
type Reader interface {
	Query(ctx context.Context, q Query) ([]RouteCluster, error)
}

// RefreshCounts is what a refresh run reports back.
type RefreshCounts struct {
	ClustersRefreshed   int `json:"clusters_refreshed"`
	FeatureRowsUpserted int `json:"feature_rows_upserted"`
}

// Refresher rebuilds clusters from raw submissions. The aggregation itself is
// opaque to callers.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshCounts, error)
}

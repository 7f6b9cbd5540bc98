// README: Suggestion request/response types and module errors.
package suggest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taxifare/internal/modules/geo"
	"taxifare/internal/types"
)

var (
	// ErrInvalidParams marks caller mistakes (bad coordinates, bucket out of range).
	ErrInvalidParams = errors.New("invalid suggestion params")
	// ErrUpstreamQuery wraps a cluster store failure during candidate search.
	ErrUpstreamQuery = errors.New("cluster query failed")
)

// Params is a suggestion query. Nil TimeBucket/DayOfWeek default to the
// current local hour and weekday; an empty VehicleType matches any vehicle.
type Params struct {
	Start       types.Point
	End         types.Point
	TimeBucket  *int
	DayOfWeek   *int
	VehicleType string
}

func (p Params) Validate() error {
	if !geo.ValidPoint(p.Start) || !geo.ValidPoint(p.End) {
		return fmt.Errorf("%w: start and end must be valid lat,lng", ErrInvalidParams)
	}
	if p.TimeBucket != nil && (*p.TimeBucket < 0 || *p.TimeBucket > 23) {
		return fmt.Errorf("%w: time_bucket must be an integer 0..23", ErrInvalidParams)
	}
	if p.DayOfWeek != nil && (*p.DayOfWeek < 0 || *p.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week must be an integer 0..6", ErrInvalidParams)
	}
	return nil
}

// NormalizeVehicleType trims and lower-cases a vehicle type.
func NormalizeVehicleType(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Response is the suggestion payload. ClusterID and LastUpdated are null for
// the distance-based fallback.
type Response struct {
	SuggestedPrice int         `json:"suggested_price"`
	PriceRange     [2]int      `json:"price_range"`
	Median         int         `json:"median"`
	Count          int         `json:"count"`
	Confidence     float64     `json:"confidence"`
	ClusterID      *types.ID   `json:"cluster_id"`
	LastUpdated    *time.Time  `json:"last_updated"`
	Start          types.Point `json:"start"`
	End            types.Point `json:"end"`
}

// IsFallback reports whether no cluster backed the suggestion.
func (r Response) IsFallback() bool {
	return r.ClusterID == nil
}

// PredictResponse is Response plus the prediction metadata fields.
type PredictResponse struct {
	Response
	ModelVersion *string `json:"model_version"`
	IsStub       bool    `json:"is_stub"`
}

// Prediction is one served prediction, appended to predictions_log.
type Prediction struct {
	ID             types.ID
	Start          types.Point
	End            types.Point
	TimeBucket     int
	DayOfWeek      int
	VehicleType    *string
	SuggestedPrice int
	Confidence     float64
	ClusterID      *types.ID
	CreatedAt      time.Time
}

// README: Submission domain model, commands and errors.
package submission

import (
	"errors"
	"time"

	"taxifare/internal/modules/pricing"
	"taxifare/internal/types"
)

var (
	ErrValidation   = errors.New("invalid submission")
	ErrAuthRequired = errors.New("authentication required")
	ErrStorage      = errors.New("submission storage failed")
	// ErrDuplicate is returned by stores when (driver_id, client_request_id) already exists.
	ErrDuplicate = errors.New("duplicate client_request_id")
	ErrNotFound  = errors.New("submission not found")
)

const (
	DefaultPriceMin = 1000
	DefaultPriceMax = 200000
	// DefaultBypassDriverID identifies every bypass-mode submission that does not name a driver.
	DefaultBypassDriverID = "11111111-1111-4111-8111-111111111111"

	StatusOK = "ok"
)

// Submission is one stored driver price report.
type Submission struct {
	ID              types.ID
	DriverID        types.ID
	ClientRequestID string
	Start           types.Point
	End             types.Point
	StartLabel      *string
	EndLabel        *string
	Price           int
	DistanceM       int
	ETASeconds      int
	TimeOfDay       pricing.TimeOfDay
	TrafficLevel    pricing.TrafficLevel
	TimeBucket      int
	DayOfWeek       int
	VehicleType     *string
	CreatedAt       time.Time
}

// SubmitCommand is the raw ingestion input. Optional fields are nil when absent.
type SubmitCommand struct {
	ClientRequestID string
	Start           types.Point
	End             types.Point
	StartLabel      *string
	EndLabel        *string
	TimeOfDay       string
	TrafficLevel    *int
	ETASeconds      *int
	Price           int
	VehicleType     string
	// DriverID is honoured only when the auth bypass is enabled.
	DriverID string
}

// Result is returned for both fresh and deduplicated writes.
type Result struct {
	Status       string   `json:"status"`
	SubmissionID types.ID `json:"submission_id"`
	Deduplicated bool     `json:"-"`
}

// Policy holds the tunable ingestion rules.
type Policy struct {
	PriceMin       int
	PriceMax       int
	BypassEnabled  bool
	BypassDriverID string
	StoreTimeout   time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.PriceMin <= 0 {
		p.PriceMin = DefaultPriceMin
	}
	if p.PriceMax <= 0 {
		p.PriceMax = DefaultPriceMax
	}
	if p.BypassDriverID == "" {
		p.BypassDriverID = DefaultBypassDriverID
	}
	if p.StoreTimeout <= 0 {
		p.StoreTimeout = 3 * time.Second
	}
	return p
}

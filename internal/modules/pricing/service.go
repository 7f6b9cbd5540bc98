// README: Pricing service estimates trip ETA, preferring a routing provider over the linear model.
package pricing

import (
	"context"
	"log"
	"math"
	"time"

	"taxifare/internal/types"
)

const (
	baseSpeedKmh  = 28.0
	nightFactor   = 0.85
	minETASeconds = 60
)

// RouteProvider returns a driving duration between two points (e.g. a directions API).
type RouteProvider interface {
	DrivingDuration(ctx context.Context, origin, destination types.Point) (time.Duration, error)
}

type Service struct {
	routes  RouteProvider
	timeout time.Duration
}

// NewService builds an ETA estimator. routes may be nil, in which case every
// estimate uses LinearETA.
func NewService(routes RouteProvider, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{routes: routes, timeout: timeout}
}

// EstimateETA returns an ETA in seconds for a trip. Provider failures fall back
// to LinearETA and are only logged.
func (s *Service) EstimateETA(ctx context.Context, start, end types.Point, distanceMeters int, tod TimeOfDay, traffic TrafficLevel) int {
	if s != nil && s.routes != nil {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		d, err := s.routes.DrivingDuration(ctx, start, end)
		if err == nil && d > 0 {
			secs := int(math.Round(d.Seconds()))
			if secs < minETASeconds {
				secs = minETASeconds
			}
			return secs
		}
		if err != nil {
			log.Printf("[pricing] route provider failed, using linear eta: %v", err)
		}
	}
	return LinearETA(distanceMeters, tod, traffic)
}

// LinearETA models a trip at 28 km/h, scaling the duration by 0.85 at night and
// by the traffic factor. Never below 60 seconds.
func LinearETA(distanceMeters int, tod TimeOfDay, traffic TrafficLevel) int {
	seconds := float64(distanceMeters) / (baseSpeedKmh * 1000 / 3600)
	if tod == TimeOfDayNight {
		seconds *= nightFactor
	}
	seconds *= trafficFactor(traffic)
	eta := int(math.Round(seconds))
	if eta < minETASeconds {
		return minETASeconds
	}
	return eta
}

func trafficFactor(l TrafficLevel) float64 {
	switch l {
	case TrafficLight:
		return 0.85
	case TrafficHeavy:
		return 1.25
	default:
		return 1
	}
}

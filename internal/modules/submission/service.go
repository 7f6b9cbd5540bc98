// README: Ingestion service: validate, derive features, identify the driver, write with dedup.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"taxifare/internal/metrics"
	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/timeutil"
	"taxifare/internal/types"
)

// Store persists submissions. Insert must return ErrDuplicate (and nothing
// else) when (driver_id, client_request_id) already exists.
type Store interface {
	Insert(ctx context.Context, s Submission) error
	FindByRequestID(ctx context.Context, driverID types.ID, clientRequestID string) (types.ID, error)
}

// ETAEstimator fills eta_s when the client did not report one.
type ETAEstimator interface {
	EstimateETA(ctx context.Context, start, end types.Point, distanceMeters int, tod pricing.TimeOfDay, traffic pricing.TrafficLevel) int
}

type Service struct {
	store  Store
	eta    ETAEstimator
	clock  timeutil.Clock
	loc    *time.Location
	policy Policy
}

func NewService(store Store, eta ETAEstimator, clock timeutil.Clock, loc *time.Location, policy Policy) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if loc == nil {
		loc, _ = timeutil.LoadZone(timeutil.DefaultZone)
	}
	return &Service{store: store, eta: eta, clock: clock, loc: loc, policy: policy.withDefaults()}
}

// Submit stores one report. Retrying with the same client_request_id for the
// same driver returns the original submission id without a second row.
// callerUID is the verified session identity, empty when unauthenticated.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand, callerUID string) (Result, error) {
	v, err := validate(cmd, s.policy)
	if err != nil {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	driverID, err := s.identify(callerUID, v.driverID)
	if err != nil {
		metrics.Submissions.WithLabelValues("unauthorized").Inc()
		return Result{}, err
	}

	sub := s.derive(ctx, v)
	sub.DriverID = driverID

	storeCtx, cancel := context.WithTimeout(ctx, s.policy.StoreTimeout)
	defer cancel()

	err = s.store.Insert(storeCtx, sub)
	if err == nil {
		metrics.Submissions.WithLabelValues("inserted").Inc()
		return Result{Status: StatusOK, SubmissionID: sub.ID}, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		metrics.Submissions.WithLabelValues("error").Inc()
		log.Printf("[submission] insert driver=%s request=%s: %v", driverID, sub.ClientRequestID, err)
		return Result{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	existing, err := s.store.FindByRequestID(storeCtx, driverID, sub.ClientRequestID)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		log.Printf("[submission] lookup duplicate driver=%s request=%s: %v", driverID, sub.ClientRequestID, err)
		return Result{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	metrics.Submissions.WithLabelValues("deduplicated").Inc()
	return Result{Status: StatusOK, SubmissionID: existing, Deduplicated: true}, nil
}

// identify prefers the verified session; otherwise the bypass identity when enabled.
func (s *Service) identify(callerUID, requested string) (types.ID, error) {
	if callerUID != "" {
		return types.ID(callerUID), nil
	}
	if !s.policy.BypassEnabled {
		return "", ErrAuthRequired
	}
	if requested != "" {
		return types.ID(requested), nil
	}
	return types.ID(s.policy.BypassDriverID), nil
}

func (s *Service) derive(ctx context.Context, v validated) Submission {
	now := s.clock.Now()
	hour, weekday := timeutil.Buckets(now, s.loc)
	if h, ok := v.timeOfDay.TimeBucket(); ok {
		hour = h
	}

	distance := geo.HaversineMeters(v.cmd.Start, v.cmd.End)
	var eta int
	switch {
	case v.cmd.ETASeconds != nil:
		eta = *v.cmd.ETASeconds
	case s.eta != nil:
		eta = s.eta.EstimateETA(ctx, v.cmd.Start, v.cmd.End, distance, v.timeOfDay, v.traffic)
	default:
		eta = pricing.LinearETA(distance, v.timeOfDay, v.traffic)
	}

	return Submission{
		ID:              types.ID(uuid.NewString()),
		ClientRequestID: v.clientRequestID,
		Start:           v.cmd.Start,
		End:             v.cmd.End,
		StartLabel:      v.startLabel,
		EndLabel:        v.endLabel,
		Price:           v.cmd.Price,
		DistanceM:       distance,
		ETASeconds:      eta,
		TimeOfDay:       v.timeOfDay,
		TrafficLevel:    v.traffic,
		TimeBucket:      hour,
		DayOfWeek:       weekday,
		VehicleType:     v.vehicleType,
		CreatedAt:       now.UTC(),
	}
}

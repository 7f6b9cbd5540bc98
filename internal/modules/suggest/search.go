// README: Candidate search: ordered relaxation passes over the cluster store.
package suggest

import (
	"context"
	"fmt"

	"taxifare/internal/modules/cluster"
	"taxifare/internal/modules/geo"
)

// pass is one step of the relaxation ladder.
type pass struct {
	name     string
	temporal bool
	vehicle  bool
}

// relaxationPasses are tried strictly in order; the first non-empty result wins.
var relaxationPasses = []pass{
	{name: "temporal_vehicle", temporal: true, vehicle: true},
	{name: "temporal", temporal: true},
	{name: "vehicle", vehicle: true},
	{name: "any"},
}

// resolved is Params after defaulting and normalization.
type resolved struct {
	Params
	timeBucket int
	dayOfWeek  int
}

func (s *Service) resolve(p Params) resolved {
	r := resolved{Params: p}
	hour, weekday := s.nowBuckets()
	r.timeBucket, r.dayOfWeek = hour, weekday
	if p.TimeBucket != nil {
		r.timeBucket = *p.TimeBucket
	}
	if p.DayOfWeek != nil {
		r.dayOfWeek = *p.DayOfWeek
	}
	r.VehicleType = NormalizeVehicleType(p.VehicleType)
	return r
}

func (r resolved) query(ps pass, gridSize float64) cluster.Query {
	q := cluster.Query{
		StartBuckets: geo.NeighboringBucketKeys(r.Start, gridSize),
		EndBuckets:   geo.NeighboringBucketKeys(r.End, gridSize),
		Limit:        cluster.DefaultQueryLimit,
	}
	if ps.temporal {
		tb, dow := r.timeBucket, r.dayOfWeek
		q.TimeBucket, q.DayOfWeek = &tb, &dow
	}
	if ps.vehicle && r.VehicleType != "" {
		vt := r.VehicleType
		q.VehicleType = &vt
	}
	return q
}

// search returns the highest ranked cluster of the first pass that matches
// anything, or nil when no pass does. Store failures are wrapped in
// ErrUpstreamQuery and stop the search.
func (s *Service) search(ctx context.Context, r resolved) (*cluster.RouteCluster, string, error) {
	var prev *cluster.Query
	for _, ps := range relaxationPasses {
		q := r.query(ps, s.gridSize)
		// without a vehicle type the vehicle predicate is a no-op, so skip repeats
		if prev != nil && sameFilters(*prev, q) {
			continue
		}
		prev = &q

		rows, err := s.queryWithTimeout(ctx, q)
		if err != nil {
			return nil, ps.name, fmt.Errorf("%w (pass %s): %w", ErrUpstreamQuery, ps.name, err)
		}
		if len(rows) > 0 {
			best := rows[0]
			return &best, ps.name, nil
		}
	}
	return nil, "", nil
}

func (s *Service) queryWithTimeout(ctx context.Context, q cluster.Query) ([]cluster.RouteCluster, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.clusters.Query(ctx, q)
}

func sameFilters(a, b cluster.Query) bool {
	return eqPtr(a.TimeBucket, b.TimeBucket) && eqPtr(a.DayOfWeek, b.DayOfWeek) && eqPtr(a.VehicleType, b.VehicleType)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// README: Suggestion service: candidate search with fallback, plus logged predictions.
package suggest

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"taxifare/internal/metrics"
	"taxifare/internal/modules/cluster"
	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/timeutil"
	"taxifare/internal/types"
)

// PredictionLog appends served predictions. Failures never reach the caller.
type PredictionLog interface {
	Record(ctx context.Context, p Prediction) error
}

type Service struct {
	clusters    cluster.Reader
	predictions PredictionLog
	clock       timeutil.Clock
	loc         *time.Location
	gridSize    float64
	timeout     time.Duration
}

// NewService wires the search. predictions may be nil; a nil loc uses the
// Baghdad zone.
func NewService(clusters cluster.Reader, predictions PredictionLog, clock timeutil.Clock, loc *time.Location, gridSize float64, queryTimeout time.Duration) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if loc == nil {
		loc, _ = timeutil.LoadZone(timeutil.DefaultZone)
	}
	if gridSize <= 0 {
		gridSize = geo.DefaultGridSize
	}
	return &Service{
		clusters:    clusters,
		predictions: predictions,
		clock:       clock,
		loc:         loc,
		gridSize:    gridSize,
		timeout:     queryTimeout,
	}
}

func (s *Service) nowBuckets() (int, int) {
	return timeutil.Buckets(s.clock.Now(), s.loc)
}

// Suggest always produces a payload: the best matching cluster, or the
// distance presets when nothing matches or the store fails.
func (s *Service) Suggest(ctx context.Context, p Params) Response {
	return s.suggest(ctx, s.resolve(p))
}

func (s *Service) suggest(ctx context.Context, r resolved) Response {
	best, passName, err := s.search(ctx, r)
	if err != nil {
		log.Printf("[suggest] %v; serving fallback", err)
		metrics.CandidateQueryErrors.Inc()
		metrics.Suggestions.WithLabelValues("fallback").Inc()
		return FallbackResponse(r.Start, r.End)
	}
	if best == nil {
		metrics.Suggestions.WithLabelValues("fallback").Inc()
		return FallbackResponse(r.Start, r.End)
	}
	if pricing.IsStaleConfidence(best.ConfidenceScore, best.SampleCount, best.PriceVariance, best.MedianPrice) {
		log.Printf("[suggest] cluster %s confidence %.4f is stale", best.ClusterID, best.ConfidenceScore)
		metrics.StaleClusters.Inc()
	}
	metrics.Suggestions.WithLabelValues("cluster").Inc()
	metrics.CandidatePassHits.WithLabelValues(passName).Inc()
	return ClusterToResponse(*best, r.Start, r.End)
}

// Predict is Suggest plus a best-effort predictions_log entry.
func (s *Service) Predict(ctx context.Context, p Params) PredictResponse {
	r := s.resolve(p)
	resp := s.suggest(ctx, r)

	if s.predictions != nil {
		entry := Prediction{
			ID:             types.ID(uuid.NewString()),
			Start:          r.Start,
			End:            r.End,
			TimeBucket:     r.timeBucket,
			DayOfWeek:      r.dayOfWeek,
			SuggestedPrice: resp.SuggestedPrice,
			Confidence:     resp.Confidence,
			ClusterID:      resp.ClusterID,
			CreatedAt:      s.clock.Now().UTC(),
		}
		if r.VehicleType != "" {
			vt := r.VehicleType
			entry.VehicleType = &vt
		}
		logCtx := ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			logCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		if err := s.predictions.Record(logCtx, entry); err != nil {
			log.Printf("[suggest] record prediction: %v", err)
		}
	}
	return PredictResponse{Response: resp, IsStub: true}
}

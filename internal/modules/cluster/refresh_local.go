// README: In-process refresher for SQLite deployments; rebuilds route_clusters and route_features from submissions.
package cluster

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/timeutil"
	"taxifare/internal/types"
)

var clusterNamespace = uuid.MustParse("6f1c1e0a-5b7e-4c39-9d7a-2f1b8f0c4a11")

// LocalRefresher aggregates submissions per (start bucket, end bucket, hour,
// weekday, vehicle) plus one unconstrained cluster per bucket pair. Cluster ids
// are stable across runs for the same grouping.
type LocalRefresher struct {
	db       *sql.DB
	gridSize float64
	clock    timeutil.Clock
}

func NewLocalRefresher(db *sql.DB, gridSize float64, clock timeutil.Clock) *LocalRefresher {
	if gridSize <= 0 {
		gridSize = geo.DefaultGridSize
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &LocalRefresher{db: db, gridSize: gridSize, clock: clock}
}

type sample struct {
	id          string
	start, end  types.Point
	price       int
	distanceM   int
	etaS        sql.NullInt64
	timeBucket  sql.NullInt64
	dayOfWeek   sql.NullInt64
	vehicleType sql.NullString
	traffic     sql.NullInt64
	createdAt   time.Time
}

type groupKey struct {
	startBucket, endBucket string
	timeBucket, dayOfWeek  string
	vehicleType            string
}

func (k groupKey) String() string {
	return k.startBucket + "|" + k.endBucket + "|" + k.timeBucket + "|" + k.dayOfWeek + "|" + k.vehicleType
}

func (r *LocalRefresher) Refresh(ctx context.Context) (RefreshCounts, error) {
	samples, err := r.loadSamples(ctx)
	if err != nil {
		return RefreshCounts{}, err
	}

	groups := map[groupKey][]sample{}
	var order []groupKey
	add := func(k groupKey, s sample) {
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}
	for _, s := range samples {
		sb, eb := geo.BucketKey(s.start, r.gridSize), geo.BucketKey(s.end, r.gridSize)
		exact := groupKey{
			startBucket: sb, endBucket: eb,
			timeBucket: nullIntKey(s.timeBucket), dayOfWeek: nullIntKey(s.dayOfWeek),
			vehicleType: s.vehicleType.String,
		}
		add(exact, s)
		if all := (groupKey{startBucket: sb, endBucket: eb}); all != exact {
			add(all, s)
		}
	}

	now := r.clock.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return RefreshCounts{}, fmt.Errorf("begin refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM route_clusters"); err != nil {
		return RefreshCounts{}, fmt.Errorf("clear route_clusters: %w", err)
	}
	var counts RefreshCounts
	for _, k := range order {
		c := summarize(k, groups[k], now)
		if _, err := tx.ExecContext(ctx, `INSERT INTO route_clusters (
			cluster_id, start_bucket, end_bucket, time_bucket, day_of_week, vehicle_type,
			start_lat, start_lng, end_lat, end_lng, median_price, iqr_price, price_variance,
			sample_count, confidence_score, first_sample_at, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(c.ClusterID), c.StartBucket, c.EndBucket, c.TimeBucket, c.DayOfWeek, c.VehicleType,
			c.StartLat, c.StartLng, c.EndLat, c.EndLng, c.MedianPrice, c.IQRPrice, c.PriceVariance,
			c.SampleCount, c.ConfidenceScore, formatTime(c.FirstSampleAt), formatTime(c.LastUpdated),
		); err != nil {
			return RefreshCounts{}, fmt.Errorf("insert route_cluster: %w", err)
		}
		counts.ClustersRefreshed++
	}

	for _, s := range samples {
		var perKm sql.NullFloat64
		if s.distanceM > 0 {
			perKm = sql.NullFloat64{Float64: float64(s.price) / (float64(s.distanceM) / 1000), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO route_features (
			submission_id, start_bucket, end_bucket, distance_m, eta_s, time_bucket, day_of_week,
			vehicle_type, traffic_level, price, price_per_km, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(submission_id) DO UPDATE SET
			start_bucket = excluded.start_bucket, end_bucket = excluded.end_bucket,
			price_per_km = excluded.price_per_km, updated_at = excluded.updated_at`,
			s.id, geo.BucketKey(s.start, r.gridSize), geo.BucketKey(s.end, r.gridSize), s.distanceM, s.etaS,
			s.timeBucket, s.dayOfWeek, s.vehicleType, s.traffic, s.price, perKm, now.Format(time.RFC3339Nano),
		); err != nil {
			return RefreshCounts{}, fmt.Errorf("upsert route_feature: %w", err)
		}
		counts.FeatureRowsUpserted++
	}

	if err := tx.Commit(); err != nil {
		return RefreshCounts{}, fmt.Errorf("commit refresh: %w", err)
	}
	return counts, nil
}

func (r *LocalRefresher) loadSamples(ctx context.Context) ([]sample, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, start_lat, start_lng, end_lat, end_lng, price,
		distance_m, eta_s, time_bucket, day_of_week, vehicle_type, traffic_level, created_at
		FROM submissions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	defer rows.Close()

	var out []sample
	for rows.Next() {
		var s sample
		var created string
		if err := rows.Scan(&s.id, &s.start.Lat, &s.start.Lng, &s.end.Lat, &s.end.Lng, &s.price,
			&s.distanceM, &s.etaS, &s.timeBucket, &s.dayOfWeek, &s.vehicleType, &s.traffic, &created); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			s.createdAt = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func summarize(k groupKey, samples []sample, now time.Time) RouteCluster {
	n := len(samples)
	prices := make([]float64, n)
	startLat, startLng := make([]float64, n), make([]float64, n)
	endLat, endLng := make([]float64, n), make([]float64, n)
	first := samples[0].createdAt
	for i, s := range samples {
		prices[i] = float64(s.price)
		startLat[i], startLng[i] = s.start.Lat, s.start.Lng
		endLat[i], endLng[i] = s.end.Lat, s.end.Lng
		if s.createdAt.Before(first) {
			first = s.createdAt
		}
	}
	sort.Float64s(prices)

	c := RouteCluster{
		ClusterID:   types.ID(uuid.NewSHA1(clusterNamespace, []byte(k.String())).String()),
		StartBucket: k.startBucket,
		EndBucket:   k.endBucket,
		TimeBucket:  parseIntKey(k.timeBucket),
		DayOfWeek:   parseIntKey(k.dayOfWeek),
		StartLat:    stat.Mean(startLat, nil),
		StartLng:    stat.Mean(startLng, nil),
		EndLat:      stat.Mean(endLat, nil),
		EndLng:      stat.Mean(endLng, nil),
		MedianPrice: int(math.Round(percentileCont(prices, 0.5))),
		IQRPrice:    int(math.Round(percentileCont(prices, 0.75) - percentileCont(prices, 0.25))),
		SampleCount: n,
		LastUpdated: &now,
	}
	if k.vehicleType != "" {
		vt := k.vehicleType
		c.VehicleType = &vt
	}
	if n > 1 {
		v := stat.Variance(prices, nil)
		c.PriceVariance = &v
	}
	if !first.IsZero() {
		c.FirstSampleAt = &first
	}
	c.ConfidenceScore = pricing.ConfidenceFor(c.SampleCount, c.PriceVariance, c.MedianPrice)
	return c
}

// percentileCont interpolates linearly between closest ranks, matching
// Postgres percentile_cont. sorted must be ascending and non-empty.
func percentileCont(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func nullIntKey(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func parseIntKey(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

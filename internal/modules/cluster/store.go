// README: Cluster reader backed by PostgreSQL (route_clusters table).
package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxifare/internal/types"
)

const clusterColumns = `cluster_id::text, start_bucket, end_bucket, time_bucket, day_of_week, vehicle_type,
	start_lat, start_lng, end_lat, end_lng, median_price, iqr_price, price_variance,
	sample_count, confidence_score, first_sample_at, last_updated`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Query(ctx context.Context, q Query) ([]RouteCluster, error) {
	sql, args := buildPGQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query route_clusters: %w", err)
	}
	defer rows.Close()

	var out []RouteCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func buildPGQuery(q Query) (string, []any) {
	var b strings.Builder
	args := []any{q.StartBuckets, q.EndBuckets}
	b.WriteString("SELECT " + clusterColumns + " FROM route_clusters")
	b.WriteString(" WHERE start_bucket = ANY($1) AND end_bucket = ANY($2) AND sample_count >= 1")
	if q.TimeBucket != nil {
		args = append(args, *q.TimeBucket)
		fmt.Fprintf(&b, " AND time_bucket = $%d", len(args))
	}
	if q.DayOfWeek != nil {
		args = append(args, *q.DayOfWeek)
		fmt.Fprintf(&b, " AND day_of_week = $%d", len(args))
	}
	if q.VehicleType != nil {
		args = append(args, *q.VehicleType)
		fmt.Fprintf(&b, " AND vehicle_type = $%d", len(args))
	}
	args = append(args, q.limit())
	fmt.Fprintf(&b, " ORDER BY confidence_score DESC, sample_count DESC LIMIT $%d", len(args))
	return b.String(), args
}

func scanCluster(row pgx.Row) (RouteCluster, error) {
	var c RouteCluster
	var id string
	err := row.Scan(
		&id, &c.StartBucket, &c.EndBucket, &c.TimeBucket, &c.DayOfWeek, &c.VehicleType,
		&c.StartLat, &c.StartLng, &c.EndLat, &c.EndLng, &c.MedianPrice, &c.IQRPrice, &c.PriceVariance,
		&c.SampleCount, &c.ConfidenceScore, &c.FirstSampleAt, &c.LastUpdated,
	)
	if err != nil {
		return RouteCluster{}, fmt.Errorf("scan route_cluster: %w", err)
	}
	c.ClusterID = types.ID(id)
	return c, nil
}

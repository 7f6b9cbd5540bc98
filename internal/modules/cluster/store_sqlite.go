// README: Cluster reader backed by SQLite (embedded dev/test deployments).
package cluster

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taxifare/internal/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]RouteCluster, error) {
	query, args := buildSQLiteQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query route_clusters: %w", err)
	}
	defer rows.Close()

	var out []RouteCluster
	for rows.Next() {
		var (
			c                 RouteCluster
			id                string
			timeBucket, dow   sql.NullInt64
			vehicle           sql.NullString
			variance          sql.NullFloat64
			firstAt, lastUpAt sql.NullString
		)
		if err := rows.Scan(
			&id, &c.StartBucket, &c.EndBucket, &timeBucket, &dow, &vehicle,
			&c.StartLat, &c.StartLng, &c.EndLat, &c.EndLng, &c.MedianPrice, &c.IQRPrice, &variance,
			&c.SampleCount, &c.ConfidenceScore, &firstAt, &lastUpAt,
		); err != nil {
			return nil, fmt.Errorf("scan route_cluster: %w", err)
		}
		c.ClusterID = types.ID(id)
		c.TimeBucket = nullInt(timeBucket)
		c.DayOfWeek = nullInt(dow)
		if vehicle.Valid {
			c.VehicleType = &vehicle.String
		}
		if variance.Valid {
			c.PriceVariance = &variance.Float64
		}
		c.FirstSampleAt = nullTime(firstAt)
		c.LastUpdated = nullTime(lastUpAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func buildSQLiteQuery(q Query) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(q.StartBuckets)+len(q.EndBuckets)+4)
	b.WriteString("SELECT cluster_id, start_bucket, end_bucket, time_bucket, day_of_week, vehicle_type,")
	b.WriteString(" start_lat, start_lng, end_lat, end_lng, median_price, iqr_price, price_variance,")
	b.WriteString(" sample_count, confidence_score, first_sample_at, last_updated FROM route_clusters")
	b.WriteString(" WHERE start_bucket IN (" + placeholders(len(q.StartBuckets)) + ")")
	for _, k := range q.StartBuckets {
		args = append(args, k)
	}
	b.WriteString(" AND end_bucket IN (" + placeholders(len(q.EndBuckets)) + ")")
	for _, k := range q.EndBuckets {
		args = append(args, k)
	}
	b.WriteString(" AND sample_count >= 1")
	if q.TimeBucket != nil {
		b.WriteString(" AND time_bucket = ?")
		args = append(args, *q.TimeBucket)
	}
	if q.DayOfWeek != nil {
		b.WriteString(" AND day_of_week = ?")
		args = append(args, *q.DayOfWeek)
	}
	if q.VehicleType != nil {
		b.WriteString(" AND vehicle_type = ?")
		args = append(args, *q.VehicleType)
	}
	b.WriteString(" ORDER BY confidence_score DESC, sample_count DESC LIMIT ?")
	args = append(args, q.limit())
	return b.String(), args
}

// placeholders returns "?, ?, ..." with n entries; an empty set yields NULL so
// "IN (NULL)" matches nothing.
func placeholders(n int) string {
	if n == 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

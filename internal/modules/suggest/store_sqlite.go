// README: predictions_log writer backed by SQLite.
package suggest

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Record(ctx context.Context, p Prediction) error {
	var clusterID *string
	if p.ClusterID != nil {
		id := string(*p.ClusterID)
		clusterID = &id
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO predictions_log (
		id, start_lat, start_lng, end_lat, end_lng, time_bucket, day_of_week, vehicle_type,
		suggested_price, confidence, cluster_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), p.Start.Lat, p.Start.Lng, p.End.Lat, p.End.Lng, p.TimeBucket, p.DayOfWeek, p.VehicleType,
		p.SuggestedPrice, p.Confidence, clusterID, p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

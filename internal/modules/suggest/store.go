// README: predictions_log writer backed by PostgreSQL.
package suggest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, p Prediction) error {
	var clusterID *string
	if p.ClusterID != nil {
		id := string(*p.ClusterID)
		clusterID = &id
	}
	_, err := s.db.Exec(ctx, `INSERT INTO predictions_log (
		id, start_lat, start_lng, end_lat, end_lng, time_bucket, day_of_week, vehicle_type,
		suggested_price, confidence, cluster_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::uuid, $12)`,
		string(p.ID), p.Start.Lat, p.Start.Lng, p.End.Lat, p.End.Lng, p.TimeBucket, p.DayOfWeek, p.VehicleType,
		p.SuggestedPrice, p.Confidence, clusterID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

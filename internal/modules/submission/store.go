// README: Submission store backed by PostgreSQL; unique violations map to ErrDuplicate.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taxifare/internal/types"
)

const (
	pgUniqueViolation   = "23505"
	driverRequestUnique = "submissions_driver_request_key"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, sub Submission) error {
	var tod *string
	if sub.TimeOfDay != "" {
		v := string(sub.TimeOfDay)
		tod = &v
	}
	_, err := s.db.Exec(ctx, `INSERT INTO submissions (
		id, driver_id, client_request_id, start_lat, start_lng, end_lat, end_lng,
		start_label, end_label, price, distance_m, eta_s, time_of_day, traffic_level,
		time_bucket, day_of_week, vehicle_type, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		string(sub.ID), string(sub.DriverID), sub.ClientRequestID,
		sub.Start.Lat, sub.Start.Lng, sub.End.Lat, sub.End.Lng,
		sub.StartLabel, sub.EndLabel, sub.Price, sub.DistanceM, sub.ETASeconds, tod, int(sub.TrafficLevel),
		sub.TimeBucket, sub.DayOfWeek, sub.VehicleType, sub.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == driverRequestUnique {
			return ErrDuplicate
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PGStore) FindByRequestID(ctx context.Context, driverID types.ID, clientRequestID string) (types.ID, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id::text FROM submissions WHERE driver_id = $1 AND client_request_id = $2`,
		string(driverID), clientRequestID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find submission: %w", err)
	}
	return types.ID(id), nil
}

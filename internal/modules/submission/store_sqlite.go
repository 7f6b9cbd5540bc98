// README: Submission store backed by SQLite; UNIQUE constraint failures map to ErrDuplicate.
package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"taxifare/internal/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, sub Submission) error {
	var tod *string
	if sub.TimeOfDay != "" {
		v := string(sub.TimeOfDay)
		tod = &v
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions (
		id, driver_id, client_request_id, start_lat, start_lng, end_lat, end_lng,
		start_label, end_label, price, distance_m, eta_s, time_of_day, traffic_level,
		time_bucket, day_of_week, vehicle_type, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sub.ID), string(sub.DriverID), sub.ClientRequestID,
		sub.Start.Lat, sub.Start.Lng, sub.End.Lat, sub.End.Lng,
		sub.StartLabel, sub.EndLabel, sub.Price, sub.DistanceM, sub.ETASeconds, tod, int(sub.TrafficLevel),
		sub.TimeBucket, sub.DayOfWeek, sub.VehicleType, sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return ErrDuplicate
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindByRequestID(ctx context.Context, driverID types.ID, clientRequestID string) (types.ID, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM submissions WHERE driver_id = ? AND client_request_id = ?`,
		string(driverID), clientRequestID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find submission: %w", err)
	}
	return types.ID(id), nil
}

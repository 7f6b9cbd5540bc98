// README: Postgres refresher; delegates aggregation to the database-side refresh functions.
package cluster

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRefresher calls refresh_route_clusters() and refresh_feature_store(), each
// returning the number of rows it wrote.
type PGRefresher struct {
	db *pgxpool.Pool
}

func NewPGRefresher(db *pgxpool.Pool) *PGRefresher {
	return &PGRefresher{db: db}
}

func (r *PGRefresher) Refresh(ctx context.Context) (RefreshCounts, error) {
	var counts RefreshCounts
	if err := r.db.QueryRow(ctx, "SELECT refresh_route_clusters()").Scan(&counts.ClustersRefreshed); err != nil {
		return RefreshCounts{}, fmt.Errorf("refresh_route_clusters: %w", err)
	}
	if err := r.db.QueryRow(ctx, "SELECT refresh_feature_store()").Scan(&counts.FeatureRowsUpserted); err != nil {
		return counts, fmt.Errorf("refresh_feature_store: %w", err)
	}
	return counts, nil
}

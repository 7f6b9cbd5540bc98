package cluster

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxifare/internal/infra"
	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/timeutil"
	"taxifare/internal/types"
)

func ptr[T any](v T) *T { return &v }

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := infra.NewSQLite(t.TempDir() + "/clusters.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, infra.MigrateSQLite(db))
	return db
}

func insertCluster(t *testing.T, db *sql.DB, c RouteCluster) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO route_clusters (
		cluster_id, start_bucket, end_bucket, time_bucket, day_of_week, vehicle_type,
		start_lat, start_lng, end_lat, end_lng, median_price, iqr_price, price_variance,
		sample_count, confidence_score, first_sample_at, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, 0, ?, ?, ?, ?, ?, NULL, ?)`,
		string(c.ClusterID), c.StartBucket, c.EndBucket, c.TimeBucket, c.DayOfWeek, c.VehicleType,
		c.MedianPrice, c.IQRPrice, c.PriceVariance, c.SampleCount, c.ConfidenceScore,
		formatTime(c.LastUpdated))
	require.NoError(t, err)
}

func ids(rows []RouteCluster) []types.ID {
	out := make([]types.ID, len(rows))
	for i, r := range rows {
		out[i] = r.ClusterID
	}
	return out
}

func TestSQLiteStore_QueryFiltersAndOrder(t *testing.T) {
	db := setupSQLite(t)
	updated := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	insertCluster(t, db, RouteCluster{ClusterID: "low-conf", StartBucket: "1:1", EndBucket: "2:2", MedianPrice: 5000, SampleCount: 40, ConfidenceScore: 0.4})
	insertCluster(t, db, RouteCluster{ClusterID: "high-conf", StartBucket: "1:2", EndBucket: "2:2", MedianPrice: 6000, SampleCount: 10, ConfidenceScore: 0.9, LastUpdated: &updated})
	insertCluster(t, db, RouteCluster{ClusterID: "tie-more", StartBucket: "1:1", EndBucket: "2:3", MedianPrice: 6000, SampleCount: 30, ConfidenceScore: 0.5})
	insertCluster(t, db, RouteCluster{ClusterID: "tie-less", StartBucket: "1:1", EndBucket: "2:3", MedianPrice: 6000, SampleCount: 20, ConfidenceScore: 0.5})
	insertCluster(t, db, RouteCluster{ClusterID: "empty", StartBucket: "1:1", EndBucket: "2:2", MedianPrice: 6000, SampleCount: 0, ConfidenceScore: 1})
	insertCluster(t, db, RouteCluster{ClusterID: "elsewhere", StartBucket: "9:9", EndBucket: "2:2", MedianPrice: 6000, SampleCount: 90, ConfidenceScore: 1})

	store := NewSQLiteStore(db)
	rows, err := store.Query(context.Background(), Query{
		StartBuckets: []string{"1:1", "1:2"},
		EndBuckets:   []string{"2:2", "2:3"},
	})
	require.NoError(t, err)
	if diff := cmp.Diff([]types.ID{"high-conf", "tie-more", "tie-less", "low-conf"}, ids(rows)); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	require.NotNil(t, rows[0].LastUpdated)
	assert.True(t, rows[0].LastUpdated.Equal(updated))
	assert.Nil(t, rows[1].LastUpdated)

	rows, err = store.Query(context.Background(), Query{
		StartBuckets: []string{"1:1", "1:2"},
		EndBuckets:   []string{"2:2", "2:3"},
		Limit:        1,
	})
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"high-conf"}, ids(rows))
}

func TestSQLiteStore_QueryTemporalAndVehicle(t *testing.T) {
	db := setupSQLite(t)
	insertCluster(t, db, RouteCluster{ClusterID: "exact", StartBucket: "1:1", EndBucket: "2:2", TimeBucket: ptr(12), DayOfWeek: ptr(2), VehicleType: ptr("sedan"), MedianPrice: 5000, SampleCount: 5, ConfidenceScore: 0.2})
	insertCluster(t, db, RouteCluster{ClusterID: "other-hour", StartBucket: "1:1", EndBucket: "2:2", TimeBucket: ptr(22), DayOfWeek: ptr(2), VehicleType: ptr("sedan"), MedianPrice: 5000, SampleCount: 5, ConfidenceScore: 0.3})
	insertCluster(t, db, RouteCluster{ClusterID: "any", StartBucket: "1:1", EndBucket: "2:2", MedianPrice: 5000, SampleCount: 50, ConfidenceScore: 0.6})

	store := NewSQLiteStore(db)
	ctx := context.Background()
	base := Query{StartBuckets: []string{"1:1"}, EndBuckets: []string{"2:2"}}

	q := base
	q.TimeBucket, q.DayOfWeek, q.VehicleType = ptr(12), ptr(2), ptr("sedan")
	rows, err := store.Query(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"exact"}, ids(rows))
	assert.Equal(t, 12, *rows[0].TimeBucket)
	assert.Equal(t, "sedan", *rows[0].VehicleType)

	q = base
	q.VehicleType = ptr("sedan")
	rows, err = store.Query(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"other-hour", "exact"}, ids(rows))

	q = base
	q.VehicleType = ptr("minibus")
	rows, err = store.Query(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = store.Query(ctx, Query{StartBuckets: nil, EndBuckets: []string{"2:2"}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBuildPGQuery(t *testing.T) {
	sql, args := buildPGQuery(Query{
		StartBuckets: []string{"a"},
		EndBuckets:   []string{"b"},
		TimeBucket:   ptr(7),
		DayOfWeek:    ptr(3),
		VehicleType:  ptr("sedan"),
	})
	assert.Contains(t, sql, "start_bucket = ANY($1) AND end_bucket = ANY($2) AND sample_count >= 1")
	assert.Contains(t, sql, "time_bucket = $3 AND day_of_week = $4 AND vehicle_type = $5")
	assert.Contains(t, sql, "ORDER BY confidence_score DESC, sample_count DESC LIMIT $6")
	assert.Equal(t, []any{[]string{"a"}, []string{"b"}, 7, 3, "sedan", DefaultQueryLimit}, args)

	sql, args = buildPGQuery(Query{StartBuckets: []string{"a"}, EndBuckets: []string{"b"}, Limit: 5})
	assert.NotContains(t, sql, "time_bucket =")
	assert.NotContains(t, sql, "vehicle_type =")
	assert.Equal(t, 5, args[len(args)-1])
}

func TestPercentileCont(t *testing.T) {
	assert.Equal(t, 7000.0, percentileCont([]float64{7000}, 0.5))
	assert.Equal(t, 7500.0, percentileCont([]float64{7000, 8000}, 0.5))
	prices := []float64{7000, 8000, 8400, 9000, 10000}
	assert.Equal(t, 8400.0, percentileCont(prices, 0.5))
	assert.Equal(t, 8000.0, percentileCont(prices, 0.25))
	assert.Equal(t, 9000.0, percentileCont(prices, 0.75))
}

func insertSubmission(t *testing.T, db *sql.DB, id string, start, end types.Point, price int, timeBucket, dow *int, vehicle *string, created time.Time) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO submissions (id, driver_id, client_request_id, start_lat, start_lng, end_lat, end_lng,
		price, distance_m, time_bucket, day_of_week, vehicle_type, created_at)
		VALUES (?, 'driver', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "req-"+id, start.Lat, start.Lng, end.Lat, end.Lng, price, geo.HaversineMeters(start, end),
		timeBucket, dow, vehicle, created.UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)
}

func TestLocalRefresher_BuildsClusters(t *testing.T) {
	db := setupSQLite(t)
	start := types.Point{Lat: 33.3152, Lng: 44.3661}
	end := types.Point{Lat: 33.2925, Lng: 44.3889}
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	prices := []int{7000, 8000, 8400, 9000, 10000}
	for i, p := range prices {
		insertSubmission(t, db, "s"+string(rune('a'+i)), start, end, p, ptr(12), ptr(2), ptr("sedan"), t0.Add(time.Duration(i)*time.Hour))
	}
	insertSubmission(t, db, "night", start, end, 12000, ptr(22), ptr(5), nil, t0.Add(-time.Hour))

	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	r := NewLocalRefresher(db, geo.DefaultGridSize, timeutil.NewFixedClock(now))
	counts, err := r.Refresh(context.Background())
	require.NoError(t, err)
	// exact day/sedan, exact night/no-vehicle, and the unconstrained pair cluster
	assert.Equal(t, RefreshCounts{ClustersRefreshed: 3, FeatureRowsUpserted: 6}, counts)

	store := NewSQLiteStore(db)
	rows, err := store.Query(context.Background(), Query{
		StartBuckets: geo.NeighboringBucketKeys(start, geo.DefaultGridSize),
		EndBuckets:   geo.NeighboringBucketKeys(end, geo.DefaultGridSize),
		TimeBucket:   ptr(12),
		DayOfWeek:    ptr(2),
		VehicleType:  ptr("sedan"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	c := rows[0]
	assert.Equal(t, 8400, c.MedianPrice)
	assert.Equal(t, 1000, c.IQRPrice)
	assert.Equal(t, 5, c.SampleCount)
	require.NotNil(t, c.PriceVariance)
	assert.InDelta(t, 1252000.0, *c.PriceVariance, 1e-6)
	assert.Equal(t, pricing.ConfidenceFor(5, c.PriceVariance, 8400), c.ConfidenceScore)
	assert.Equal(t, geo.BucketKey(start, geo.DefaultGridSize), c.StartBucket)
	require.NotNil(t, c.FirstSampleAt)
	assert.True(t, c.FirstSampleAt.Equal(t0))
	require.NotNil(t, c.LastUpdated)
	assert.True(t, c.LastUpdated.Equal(now))

	all, err := store.Query(context.Background(), Query{
		StartBuckets: []string{c.StartBucket},
		EndBuckets:   []string{c.EndBucket},
	})
	require.NoError(t, err)
	require.Len(t, all, 3)
	var pair *RouteCluster
	for i := range all {
		if all[i].TimeBucket == nil && all[i].VehicleType == nil {
			pair = &all[i]
		}
	}
	require.NotNil(t, pair)
	assert.Equal(t, 6, pair.SampleCount)

	night := all[0]
	for _, row := range all {
		if row.TimeBucket != nil && *row.TimeBucket == 22 {
			night = row
		}
	}
	assert.Equal(t, 1, night.SampleCount)
	assert.Nil(t, night.PriceVariance, "a single sample has no variance")

	// ids are stable across runs
	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	again, err := store.Query(context.Background(), Query{
		StartBuckets: []string{c.StartBucket},
		EndBuckets:   []string{c.EndBucket},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(all), ids(again))
}

type countingReader struct {
	calls int
	rows  []RouteCluster
	err   error
}

func (r *countingReader) Query(context.Context, Query) ([]RouteCluster, error) {
	r.calls++
	return r.rows, r.err
}

func TestCachedReader_RedisDownFallsThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	next := &countingReader{rows: []RouteCluster{{ClusterID: "c1", MedianPrice: 8000, SampleCount: 3}}}
	cached := NewCachedReader(next, rdb, time.Minute)
	rows, err := cached.Query(context.Background(), Query{StartBuckets: []string{"1:1"}, EndBuckets: []string{"2:2"}})
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"c1"}, ids(rows))
	assert.Equal(t, 1, next.calls)

	next.err = errors.New("db down")
	_, err = cached.Query(context.Background(), Query{StartBuckets: []string{"1:1"}, EndBuckets: []string{"2:2"}})
	assert.Error(t, err)
	assert.Error(t, cached.Invalidate(context.Background()))
}

func TestCacheKey_DistinguishesDimensions(t *testing.T) {
	base := Query{StartBuckets: []string{"1:1"}, EndBuckets: []string{"2:2"}}
	withHour := base
	withHour.TimeBucket = ptr(12)
	withDay := base
	withDay.DayOfWeek = ptr(12)
	withVehicle := base
	withVehicle.VehicleType = ptr("12")
	keys := map[string]bool{}
	for _, q := range []Query{base, withHour, withDay, withVehicle} {
		keys[cacheKey(q)] = true
	}
	assert.Len(t, keys, 4)
	assert.Equal(t, cacheKey(base), cacheKey(Query{StartBuckets: []string{"1:1"}, EndBuckets: []string{"2:2"}, Limit: DefaultQueryLimit}))
}

// README: Service graph assembly shared by the API server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"taxifare/internal/config"
	"taxifare/internal/infra"
	"taxifare/internal/maps"
	"taxifare/internal/modules/aggregation"
	"taxifare/internal/modules/cluster"
	"taxifare/internal/modules/pricing"
	"taxifare/internal/modules/submission"
	"taxifare/internal/modules/suggest"
	"taxifare/internal/timeutil"
)

// App holds the wired services and the resources they borrow.
type App struct {
	Config      config.Config
	Location    *time.Location
	Suggest     *suggest.Service
	Submission  *submission.Service
	Aggregation *aggregation.Service
	Verifier    infra.TokenVerifier

	pool   *pgxpool.Pool
	sqlite *sql.DB
	redis  *redis.Client
}

// Build opens the configured backend, applies migrations when enabled and
// wires every service. Close releases what Build opened.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	loc, err := timeutil.LoadZone(cfg.Geo.Timezone)
	if err != nil {
		log.Printf("[app] timezone %s: %v; using fixed offset", cfg.Geo.Timezone, err)
	}
	a := &App{Config: cfg, Location: loc}
	clock := timeutil.RealClock{}

	var (
		reader      cluster.Reader
		refresher   cluster.Refresher
		predictions suggest.PredictionLog
		store       submission.Store
	)
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		if cfg.DB.Migrate {
			if err := infra.MigratePostgres(cfg.DB.DSN); err != nil {
				return nil, err
			}
		}
		if a.pool, err = infra.NewDB(ctx, cfg.DB.DSN); err != nil {
			return nil, err
		}
		reader = cluster.NewStore(a.pool)
		refresher = cluster.NewPGRefresher(a.pool)
		predictions = suggest.NewStore(a.pool)
		store = submission.NewStore(a.pool)
	case config.DriverSQLite:
		if a.sqlite, err = infra.NewSQLite(cfg.DB.SQLitePath); err != nil {
			return nil, err
		}
		if cfg.DB.Migrate {
			if err := infra.MigrateSQLite(a.sqlite); err != nil {
				a.Close()
				return nil, err
			}
		}
		reader = cluster.NewSQLiteStore(a.sqlite)
		refresher = cluster.NewLocalRefresher(a.sqlite, cfg.Geo.GridSize, clock)
		predictions = suggest.NewSQLiteStore(a.sqlite)
		store = submission.NewSQLiteStore(a.sqlite)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}

	if a.redis, err = infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
		log.Printf("[app] redis unavailable, continuing without cache and shared lock: %v", err)
	}
	var (
		lock  aggregation.Locker
		cache aggregation.Invalidator
	)
	if a.redis != nil {
		cached := cluster.NewCachedReader(reader, a.redis, cfg.Redis.CacheTTL)
		reader, cache = cached, cached
		lock = aggregation.NewRedisLocker(a.redis)
	}

	var routes pricing.RouteProvider
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Printf("[app] maps disabled: %v", err)
		} else {
			routes = rs
		}
	}

	if a.Verifier, err = newVerifier(ctx, cfg.Auth); err != nil {
		a.Close()
		return nil, err
	}

	a.Suggest = suggest.NewService(reader, predictions, clock, loc, cfg.Geo.GridSize, cfg.DB.StoreTimeout)
	a.Submission = submission.NewService(store, pricing.NewService(routes, 0), clock, loc, submission.Policy{
		PriceMin:       cfg.Pricing.Min,
		PriceMax:       cfg.Pricing.Max,
		BypassEnabled:  cfg.Auth.TestBypass,
		BypassDriverID: cfg.Auth.TestBypassDriverID,
		StoreTimeout:   cfg.DB.StoreTimeout,
	})
	a.Aggregation = aggregation.NewService(refresher, lock, cache, clock, cfg.Aggregation.Interval)
	if cfg.Auth.TestBypass {
		log.Printf("[app] WARNING: test auth bypass is enabled")
	}
	return a, nil
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (infra.TokenVerifier, error) {
	switch cfg.Mode {
	case config.AuthFirebase:
		return infra.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
	case config.AuthHMAC:
		return infra.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	case config.AuthNone:
		return infra.DisabledVerifier{}, nil
	default:
		return nil, errors.New("unknown auth mode " + cfg.Mode)
	}
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
}

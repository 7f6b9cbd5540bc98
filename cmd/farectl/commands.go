// README: farectl command definitions.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"taxifare/internal/app"
	"taxifare/internal/config"
	"taxifare/internal/infra"
	"taxifare/internal/modules/geo"
	"taxifare/internal/modules/suggest"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "farectl",
		Usage: "Route fare aggregation operator tool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file (environment variables still win)",
				EnvVars: []string{"FARE_CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv("FARE_CONFIG_FILE", path)
			}
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			aggregateCommand(),
			suggestCommand(),
			bucketCommand(),
		},
	}
}

// loadConfig reads the service config; the CLI never verifies tokens.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg.Auth.Mode = config.AuthNone
	cfg.Auth.TestBypass = false
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// MIGRATE COMMAND
// =============================================================================

func migrateCommand() *cli.Command {
	run := func(step func(*infra.Migrator) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			m, closeFn, err := openMigrator()
			if err != nil {
				return err
			}
			defer closeFn()
			return step(m)
		}
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: run(func(m *infra.Migrator) error { return m.Up() }),
			},
			{
				Name:   "down",
				Usage:  "Roll back the latest migration",
				Action: run(func(m *infra.Migrator) error { return m.Down() }),
			},
			{
				Name:  "version",
				Usage: "Print the applied schema version",
				Action: func(c *cli.Context) error {
					m, closeFn, err := openMigrator()
					if err != nil {
						return err
					}
					defer closeFn()
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version=%d dirty=%t\n", v, dirty)
					return nil
				},
			},
		},
	}
}

func openMigrator() (*infra.Migrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DB.Driver == config.DriverPostgres {
		m, err := infra.NewPostgresMigrator(cfg.DB.DSN)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	}
	db, err := infra.NewSQLite(cfg.DB.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	m, err := infra.NewSQLiteMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, func() { _ = db.Close() }, nil
}

// =============================================================================
// AGGREGATE COMMAND
// =============================================================================

func aggregateCommand() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "Refresh route clusters and the feature store once",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Build(c.Context, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.Aggregation.RunNow(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, res)
		},
	}
}

// =============================================================================
// SUGGEST COMMAND
// =============================================================================

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Look up a price suggestion for a route",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "Start point as lat,lng", Required: true},
			&cli.StringFlag{Name: "end", Usage: "End point as lat,lng", Required: true},
			&cli.IntFlag{Name: "time-bucket", Usage: "Hour 0..23 (default: current local hour)"},
			&cli.IntFlag{Name: "day-of-week", Usage: "Weekday 0..6, Sunday = 0 (default: today)"},
			&cli.StringFlag{Name: "vehicle-type", Usage: "Vehicle type filter"},
		},
		Action: func(c *cli.Context) error {
			p, err := suggestParams(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Build(c.Context, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			resp := a.Suggest.Suggest(c.Context, p)
			if resp.IsFallback() {
				fmt.Fprintln(c.App.ErrWriter, "no cluster matched; showing distance presets")
			}
			return printJSON(c.App.Writer, resp)
		},
	}
}

func suggestParams(c *cli.Context) (suggest.Params, error) {
	start, err := geo.ParseLatLng(c.String("start"))
	if err != nil {
		return suggest.Params{}, fmt.Errorf("--start: %w", err)
	}
	end, err := geo.ParseLatLng(c.String("end"))
	if err != nil {
		return suggest.Params{}, fmt.Errorf("--end: %w", err)
	}
	p := suggest.Params{Start: start, End: end, VehicleType: c.String("vehicle-type")}
	if c.IsSet("time-bucket") {
		v := c.Int("time-bucket")
		p.TimeBucket = &v
	}
	if c.IsSet("day-of-week") {
		v := c.Int("day-of-week")
		p.DayOfWeek = &v
	}
	return p, p.Validate()
}

// =============================================================================
// BUCKET COMMAND
// =============================================================================

func bucketCommand() *cli.Command {
	return &cli.Command{
		Name:      "bucket",
		Usage:     "Print the grid bucket and its neighbours for a point",
		ArgsUsage: "<lat,lng>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "grid", Value: geo.DefaultGridSize, Usage: "Grid size in degrees"},
		},
		Action: func(c *cli.Context) error {
			p, err := geo.ParseLatLng(c.Args().First())
			if err != nil {
				return err
			}
			grid := c.Float64("grid")
			key := geo.BucketKey(p, grid)
			latCell, lngCell, err := geo.ParseBucketKey(key)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]any{
				"bucket":    key,
				"lat_cell":  latCell,
				"lng_cell":  lngCell,
				"neighbors": geo.NeighboringBucketKeys(p, grid),
			})
		},
	}
}

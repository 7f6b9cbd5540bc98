package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxifare/internal/config"
	"taxifare/internal/infra"
	"taxifare/internal/modules/submission"
	"taxifare/internal/modules/suggest"
	"taxifare/internal/types"
)

func sqliteConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DB.Driver = config.DriverSQLite
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "app.db")
	cfg.Auth.Mode = config.AuthNone
	cfg.Auth.TestBypass = true
	return cfg
}

func TestBuild_SQLite(t *testing.T) {
	a, err := Build(context.Background(), sqliteConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, infra.DisabledVerifier{}, a.Verifier)

	res, err := a.Submission.Submit(context.Background(), submission.SubmitCommand{
		ClientRequestID: "app-build-0001",
		Start:           types.Point{Lat: 33.3152, Lng: 44.3661},
		End:             types.Point{Lat: 33.2925, Lng: 44.3889},
		Price:           7000,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, submission.StatusOK, res.Status)

	run, err := a.Aggregation.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.ClustersRefreshed)
	assert.Equal(t, 1, run.FeatureRowsUpserted)

	resp := a.Suggest.Suggest(context.Background(), suggest.Params{
		Start: types.Point{Lat: 33.3152, Lng: 44.3661},
		End:   types.Point{Lat: 33.2925, Lng: 44.3889},
	})
	assert.Equal(t, 7000, resp.SuggestedPrice)
	assert.Equal(t, 1, resp.Count)
}

func TestBuild_HMACNeedsSecret(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Auth.Mode = config.AuthHMAC
	cfg.Auth.JWTSecret = "short"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.DB.Driver = "oracle"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

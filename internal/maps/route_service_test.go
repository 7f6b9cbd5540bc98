package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"taxifare/internal/types"
)

func newTestRouteService(t *testing.T, handler http.HandlerFunc) *RouteService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := NewRouteService("test-key", maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return svc
}

func TestDrivingDuration(t *testing.T) {
	var gotOrigin, gotDest, gotRegion string
	svc := newTestRouteService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotOrigin, gotDest, gotRegion = q.Get("origin"), q.Get("destination"), q.Get("region")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"summary":"","legs":[
			{"duration":{"value":540,"text":"9 mins"},"distance":{"value":3300,"text":"3.3 km"}}]}]}`))
	})

	d, err := svc.DrivingDuration(context.Background(),
		types.Point{Lat: 33.3152, Lng: 44.3661}, types.Point{Lat: 33.2925, Lng: 44.3889})
	require.NoError(t, err)
	assert.Equal(t, 9*time.Minute, d)
	assert.Equal(t, "33.3152,44.3661", gotOrigin)
	assert.Equal(t, "33.2925,44.3889", gotDest)
	assert.Equal(t, "iq", gotRegion)
}

func TestDrivingDuration_NoRoute(t *testing.T) {
	svc := newTestRouteService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[]}`))
	})
	_, err := svc.DrivingDuration(context.Background(), types.Point{}, types.Point{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestDrivingDuration_APIError(t *testing.T) {
	svc := newTestRouteService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	})
	_, err := svc.DrivingDuration(context.Background(), types.Point{}, types.Point{Lat: 1, Lng: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maps api error")
}

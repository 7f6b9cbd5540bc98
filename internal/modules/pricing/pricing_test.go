package pricing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxifare/internal/types"
)

func TestDerivePresetPrices(t *testing.T) {
	tests := []struct {
		name                        string
		distanceM                   int
		wantLow, wantBase, wantHigh int
	}{
		{"zero distance hits floor", 0, 3000, 4000, 5000},
		{"short trip hits floor", 1200, 3000, 4000, 5000},
		{"5.2km rounds to 8000", 5200, 7000, 8000, 9000},
		{"5.5km rounds to 8500", 5500, 7500, 8500, 9500},
		{"10km", 10000, 14000, 15000, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, base, high := DerivePresetPrices(tt.distanceM)
			assert.Equal(t, tt.wantLow, low)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantHigh, high)
		})
	}
}

func TestDerivePresetPrices_Invariants(t *testing.T) {
	for d := 0; d <= 60000; d += 137 {
		low, base, high := DerivePresetPrices(d)
		if base%500 != 0 || base < 4000 || low > base || base > high || low < 1000 {
			t.Fatalf("distance %d: got (%d, %d, %d)", d, low, base, high)
		}
	}
}

func TestNormalizeVariance(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeVariance(0, 5000))
	assert.Equal(t, 0.0, NormalizeVariance(-5, 5000))
	assert.Equal(t, 0.0, NormalizeVariance(math.NaN(), 5000))
	assert.Equal(t, 0.0, NormalizeVariance(math.Inf(1), 5000))
	assert.Equal(t, 1.0, NormalizeVariance(999999999, 1))
	assert.InDelta(t, 0.04, NormalizeVariance(1000000, 5000), 1e-12)
	// median below 1 is clamped to 1
	assert.Equal(t, 0.5, NormalizeVariance(0.5, 0))
}

func TestComputeConfidenceScore(t *testing.T) {
	assert.Equal(t, 0.0, ComputeConfidenceScore(0, 0, 5000))
	assert.Equal(t, 1.0, ComputeConfidenceScore(999, 0, 5000))
	assert.Equal(t, 1.0, ComputeConfidenceScore(5000, 0, 5000))
	assert.Equal(t, 0.3333, ComputeConfidenceScore(9, 0, 5000))
	assert.Equal(t, 0.0, ComputeConfidenceScore(50, 999999999, 1))
	assert.Equal(t, 0.0, ComputeConfidenceScore(-1, 0, 5000))
	assert.Equal(t, 0.0, ComputeConfidenceScore(-5, 0, 5000))

	prev := -1.0
	for n := 0; n <= 2000; n++ {
		got := ComputeConfidenceScore(n, 250000, 8000)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
		require.GreaterOrEqual(t, got, prev, "score must not decrease as samples grow (n=%d)", n)
		prev = got
	}
}

func TestComputeConfidenceScore_VarianceDiscount(t *testing.T) {
	prev := 2.0
	for _, v := range []float64{0, 1e4, 1e5, 1e6, 1e7, 1e8} {
		got := ComputeConfidenceScore(120, v, 8000)
		require.LessOrEqual(t, got, prev, "score must not increase with variance (v=%v)", v)
		prev = got
	}
}

func TestConfidenceFor_NilVarianceIsNoDiscount(t *testing.T) {
	assert.Equal(t, ComputeConfidenceScore(40, 0, 8000), ConfidenceFor(40, nil, 8000))
	v := 4e6
	assert.Less(t, ConfidenceFor(40, &v, 8000), ConfidenceFor(40, nil, 8000))
}

func TestIsStaleConfidence(t *testing.T) {
	v := 250000.0
	fresh := ConfidenceFor(40, &v, 8000)
	assert.False(t, IsStaleConfidence(fresh, 40, &v, 8000))
	assert.True(t, IsStaleConfidence(fresh+0.01, 40, &v, 8000))
}

func TestSuggestedPriceRange(t *testing.T) {
	tests := []struct {
		median, iqr int
		want        [2]int
	}{
		{8400, 1200, [2]int{7800, 9000}},
		{8500, 2000, [2]int{7500, 9500}},
		{8000, 0, [2]int{7500, 8500}},
		{700, 100, [2]int{500, 1200}},
		{8000, 1001, [2]int{7499, 8501}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestedPriceRange(tt.median, tt.iqr), "median=%d iqr=%d", tt.median, tt.iqr)
	}
}

func TestLinearETA(t *testing.T) {
	tests := []struct {
		name      string
		distanceM int
		tod       TimeOfDay
		traffic   TrafficLevel
		want      int
	}{
		{"7km medium day", 7000, TimeOfDayDay, TrafficMedium, 900},
		{"7km heavy day", 7000, TimeOfDayDay, TrafficHeavy, 1125},
		{"7km light night", 7000, TimeOfDayNight, TrafficLight, 650},
		{"unknown time of day behaves like day", 7000, TimeOfDayUnknown, TrafficMedium, 900},
		{"tiny trip floored", 50, TimeOfDayDay, TrafficLight, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinearETA(tt.distanceM, tt.tod, tt.traffic))
		})
	}
}

type fakeRoutes struct {
	d   time.Duration
	err error
}

func (f fakeRoutes) DrivingDuration(context.Context, types.Point, types.Point) (time.Duration, error) {
	return f.d, f.err
}

func TestService_EstimateETA(t *testing.T) {
	ctx := context.Background()
	a := types.Point{Lat: 33.3152, Lng: 44.3661}
	b := types.Point{Lat: 33.2925, Lng: 44.3889}

	svc := NewService(fakeRoutes{d: 14*time.Minute + 20*time.Second}, time.Second)
	assert.Equal(t, 860, svc.EstimateETA(ctx, a, b, 7000, TimeOfDayDay, TrafficMedium))

	svc = NewService(fakeRoutes{err: errors.New("quota exceeded")}, time.Second)
	assert.Equal(t, 900, svc.EstimateETA(ctx, a, b, 7000, TimeOfDayDay, TrafficMedium))

	svc = NewService(nil, 0)
	assert.Equal(t, 1125, svc.EstimateETA(ctx, a, b, 7000, TimeOfDayDay, TrafficHeavy))

	svc = NewService(fakeRoutes{d: 10 * time.Second}, time.Second)
	assert.Equal(t, 60, svc.EstimateETA(ctx, a, b, 7000, TimeOfDayDay, TrafficMedium))
}

func TestParseTimeOfDay(t *testing.T) {
	for _, ok := range []string{"", "day", "night"} {
		_, err := ParseTimeOfDay(ok)
		assert.NoError(t, err, ok)
	}
	_, err := ParseTimeOfDay("evening")
	assert.Error(t, err)

	h, ok := TimeOfDayNight.TimeBucket()
	assert.True(t, ok)
	assert.Equal(t, 22, h)
	_, ok = TimeOfDayUnknown.TimeBucket()
	assert.False(t, ok)
}

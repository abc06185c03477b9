package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F1Square/TripGo-Adv-client/internal/shared/geo"
)

func TestAdmitFirstSample(t *testing.T) {
	assert.True(t, Admit(nil, LocationSample{Latitude: 1, Longitude: 1, Accuracy: 5, Timestamp: 1000}))
}

func TestAdmitRejectsJitterAtRest(t *testing.T) {
	prev := RoutePoint{Latitude: 0, Longitude: 0, Timestamp: 0, Accuracy: 5}

	// ~1 m away, 2 s later: jitter.
	assert.False(t, Admit(&prev, LocationSample{Latitude: 0, Longitude: 0.00001, Accuracy: 5, Timestamp: 2000}))

	// Same displacement but 4 s later: admitted.
	assert.True(t, Admit(&prev, LocationSample{Latitude: 0, Longitude: 0.00001, Accuracy: 5, Timestamp: 4000}))

	// 2 s later but ~111 m away: admitted.
	assert.True(t, Admit(&prev, LocationSample{Latitude: 0, Longitude: 0.001, Accuracy: 5, Timestamp: 2000}))
}

func TestAdmitRejectsPoorAccuracyUntilOverdue(t *testing.T) {
	prev := RoutePoint{Latitude: 0, Longitude: 0, Timestamp: 0, Accuracy: 5}

	poor := LocationSample{Latitude: 0, Longitude: 0.01, Accuracy: 80, Timestamp: 10_000}
	assert.False(t, Admit(&prev, poor))

	// The same poor fix is admitted once the route is 30 s stale.
	poor.Timestamp = 30_000
	assert.True(t, Admit(&prev, poor))
}

func TestFilterForDistanceDropsLowAccuracy(t *testing.T) {
	route := []RoutePoint{
		{Latitude: 0, Longitude: 0, Timestamp: 0, Accuracy: 5},
		{Latitude: 0, Longitude: 0.01, Timestamp: 10_000, Accuracy: 90},
		{Latitude: 0, Longitude: 0.02, Timestamp: 20_000, Accuracy: 10},
	}

	filtered := filterForDistance(route)
	require.Len(t, filtered, 2)
	assert.Equal(t, 0.0, filtered[0].Longitude)
	assert.Equal(t, 0.02, filtered[1].Longitude)
}

func TestFilterForDistanceMinSpacing(t *testing.T) {
	// A walk of points each ~2 m apart: only points at least 5 m from the
	// previously kept one may survive.
	route := make([]RoutePoint, 0, 20)
	for i := 0; i < 20; i++ {
		route = append(route, RoutePoint{
			Latitude:  0,
			Longitude: float64(i) * 0.00002, // ~2.2 m per step
			Timestamp: int64(i) * 6000,
			Accuracy:  5,
		})
	}

	filtered := filterForDistance(route)
	for i := 1; i < len(filtered); i++ {
		a, b := filtered[i-1], filtered[i]
		d := geo.HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		assert.GreaterOrEqual(t, d, 0.005, "kept points %d and %d are closer than 5 m", i-1, i)
	}
}

func TestFilterForDistanceEmpty(t *testing.T) {
	assert.Empty(t, filterForDistance(nil))
}

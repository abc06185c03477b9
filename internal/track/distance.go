package track

import (
	"time"

	"github.com/F1Square/TripGo-Adv-client/internal/shared/geo"
)

const (
	// minPairGapSec: consecutive accepted points closer than 5 s apart are
	// temporal noise and contribute no distance.
	minPairGapSec = 5.0

	// maxSpeedKmh: a segment implying more than 200 km/h is a GPS outlier
	// for ground travel and contributes no distance.
	maxSpeedKmh = 200.0
)

// AccumulateKm computes the cumulative trip distance in kilometers from the
// full route. A later point can change which pairs survive the filters, so
// callers must recompute from the whole route on every append rather than
// accumulating incrementally.
func AccumulateKm(route []RoutePoint) float64 {
	if len(route) < 2 {
		return 0
	}

	filtered := filterForDistance(route)
	total := 0.0
	for i := 1; i < len(filtered); i++ {
		prev, curr := filtered[i-1], filtered[i]

		gapSec := float64(curr.Timestamp-prev.Timestamp) / 1000
		if gapSec < minPairGapSec {
			continue
		}

		dKm := geo.HaversineKm(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
		if dKm/gapSec*3600 > maxSpeedKmh {
			continue
		}
		total += dKm
	}
	return total
}

// DurationSec returns the elapsed trip duration in whole seconds.
func DurationSec(start, now time.Time) int64 {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int64(now.Sub(start).Seconds())
}

// AverageKmh returns the average speed in km/h, 0 when the duration is 0.
func AverageKmh(distanceKm float64, durationSec int64) float64 {
	if durationSec <= 0 {
		return 0
	}
	return distanceKm / float64(durationSec) * 3600
}

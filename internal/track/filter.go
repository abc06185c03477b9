package track

import "github.com/F1Square/TripGo-Adv-client/internal/shared/geo"

const (
	// maxAccuracyM is the worst horizontal accuracy a point may have and
	// still count towards distance.
	maxAccuracyM = 50.0

	// jitterWindowMs / jitterDistanceKm: a point closer than 3 m and newer
	// than 3 s relative to the previous one is GPS jitter at rest.
	jitterWindowMs   = 3000
	jitterDistanceKm = 0.003

	// staleFixMs: a poor fix is still admitted once the route has gone
	// 30 s without an update.
	staleFixMs = 30000

	// minSpacingKm: points closer than 5 m to the previously kept one are
	// deduplicated before distance accumulation.
	minSpacingKm = 0.005
)

// Admit reports whether a raw sample should be appended to the route.
// prev is the last admitted point, nil for the first sample of a trip.
func Admit(prev *RoutePoint, cand LocationSample) bool {
	if prev == nil {
		return true
	}

	elapsedMs := cand.Timestamp - prev.Timestamp
	dKm := geo.HaversineKm(prev.Latitude, prev.Longitude, cand.Latitude, cand.Longitude)

	if elapsedMs < jitterWindowMs && dKm < jitterDistanceKm {
		return false
	}
	if cand.Accuracy > maxAccuracyM && elapsedMs < staleFixMs {
		return false
	}
	return true
}

// filterForDistance produces the point list used for distance accumulation:
// low-accuracy points are dropped outright, then any point closer than 5 m
// to the previously kept point is dropped. The persisted route is left
// untouched; only the accumulation input is filtered.
func filterForDistance(route []RoutePoint) []RoutePoint {
	kept := make([]RoutePoint, 0, len(route))
	for _, p := range route {
		if p.Accuracy > maxAccuracyM {
			continue
		}
		if len(kept) > 0 {
			last := kept[len(kept)-1]
			if geo.HaversineKm(last.Latitude, last.Longitude, p.Latitude, p.Longitude) < minSpacingKm {
				continue
			}
		}
		kept = append(kept, p)
	}
	return kept
}

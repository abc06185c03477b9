package location

import (
	"context"
	"errors"

	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// Tier is a platform location-permission tier. Values come only from
// platform queries and request results, never invented by the application.
type Tier string

const (
	TierAlways    Tier = "always"
	TierGranted   Tier = "granted"
	TierWhenInUse Tier = "whenInUse"
	TierDenied    Tier = "denied"
	TierUnknown   Tier = "unknown"
)

var (
	ErrNoFix            = errors.New("location: no fix available")
	ErrPermissionDenied = errors.New("location: permission denied")
)

// WatchOptions configures a continuous observation watch.
type WatchOptions struct {
	// DistanceFilterM is the minimum movement in meters between delivered
	// samples. Zero delivers everything.
	DistanceFilterM float64
}

// DefaultDistanceFilterM matches the watcher options used by the mobile shell.
const DefaultDistanceFilterM = 15.0

// Source is the continuous location-observation capability. Implementations
// deliver asynchronous samples even while the application is backgrounded.
type Source interface {
	// StartWatch begins continuous observation, invoking cb for every
	// delivered sample. Starting an already-started watch is a no-op.
	StartWatch(cb func(track.LocationSample), opts WatchOptions) error

	// StopWatch halts sample delivery. Safe to call when not watching.
	StopWatch() error

	// Current returns one fresh fix, or ErrNoFix when none is available.
	Current(ctx context.Context) (track.LocationSample, error)
}

// Permissions is the one-shot permission query/request capability.
type Permissions interface {
	// Platform identifies the platform family ("ios", "android", "web").
	Platform() string

	// Status returns the current permission tier without prompting.
	Status(ctx context.Context) (Tier, error)

	// Request prompts for a tier and returns whatever the platform
	// granted; it never assumes success. always=true asks for the
	// background ("always") tier.
	Request(ctx context.Context, always bool) (Tier, error)
}

package location

import (
	"context"
	"sync"

	"github.com/F1Square/TripGo-Adv-client/internal/shared/geo"
	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// Fake is a deterministic in-memory Source. Tests (and broker-less daemon
// runs) inject synthetic samples with Emit; Current serves the most recent
// injected sample.
type Fake struct {
	mu            sync.Mutex
	cb            func(track.LocationSample)
	opts          WatchOptions
	watching      bool
	last          *track.LocationSample
	lastDelivered *track.RoutePoint
	currentErr    error
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) StartWatch(cb func(track.LocationSample), opts WatchOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watching {
		return nil
	}
	f.cb = cb
	f.opts = opts
	f.watching = true
	f.lastDelivered = nil
	return nil
}

func (f *Fake) StopWatch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watching = false
	f.cb = nil
	f.lastDelivered = nil
	return nil
}

func (f *Fake) Current(_ context.Context) (track.LocationSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return track.LocationSample{}, f.currentErr
	}
	if f.last == nil {
		return track.LocationSample{}, ErrNoFix
	}
	return *f.last, nil
}

// FailCurrent makes Current return err until reset with nil.
func (f *Fake) FailCurrent(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentErr = err
}

// Watching reports whether a watch is active.
func (f *Fake) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watching
}

// Emit records the sample and, when a watch is active, delivers it to the
// callback subject to the configured distance filter.
func (f *Fake) Emit(sample track.LocationSample) {
	f.mu.Lock()
	f.last = &sample
	cb := f.cb
	if cb != nil && f.opts.DistanceFilterM > 0 && f.lastDelivered != nil {
		movedM := geo.HaversineKm(
			f.lastDelivered.Latitude, f.lastDelivered.Longitude,
			sample.Latitude, sample.Longitude,
		) * 1000
		if movedM < f.opts.DistanceFilterM {
			f.mu.Unlock()
			return
		}
	}
	if cb != nil {
		p := sample.Point()
		f.lastDelivered = &p
	}
	f.mu.Unlock()

	if cb != nil {
		cb(sample)
	}
}

// StaticPermissions is a Permissions implementation with fixed platform and
// scriptable responses.
type StaticPermissions struct {
	mu        sync.Mutex
	platform  string
	tier      Tier
	granted   Tier
	requests  int
	statusErr error
}

// NewStaticPermissions returns permissions reporting tier for platform;
// requests are granted with grantResult.
func NewStaticPermissions(platform string, tier, grantResult Tier) *StaticPermissions {
	return &StaticPermissions{platform: platform, tier: tier, granted: grantResult}
}

func (p *StaticPermissions) Platform() string {
	return p.platform
}

func (p *StaticPermissions) Status(_ context.Context) (Tier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statusErr != nil {
		return TierUnknown, p.statusErr
	}
	return p.tier, nil
}

func (p *StaticPermissions) Request(_ context.Context, _ bool) (Tier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	p.tier = p.granted
	return p.granted, nil
}

// Requests reports how many prompts were issued.
func (p *StaticPermissions) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// SetStatus changes the reported tier.
func (p *StaticPermissions) SetStatus(tier Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tier = tier
}

// FailStatus makes Status return err.
func (p *StaticPermissions) FailStatus(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusErr = err
}

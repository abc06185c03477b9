package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/flush"
	"github.com/F1Square/TripGo-Adv-client/internal/location"
	"github.com/F1Square/TripGo-Adv-client/internal/permission"
	"github.com/F1Square/TripGo-Adv-client/internal/queue"
	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// routePushEvery is how many accepted points accumulate between full-route
// pushes to the remote record.
const routePushEvery = 10

type state int

const (
	stateNoTrip state = iota
	stateActive
	stateEnding
)

func (s state) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateEnding:
		return "ending"
	default:
		return "no-trip"
	}
}

// TripAPI is the remote trip-record contract the controller depends on.
type TripAPI interface {
	CreateTrip(ctx context.Context, purpose string, startOdometer float64, initialRoute []track.RoutePoint) (track.Trip, error)
	GetActiveTrip(ctx context.Context) (*track.Trip, error)
	UpdateRoute(ctx context.Context, tripID string, route []track.RoutePoint) (track.Trip, error)
	EndTrip(ctx context.Context, tripID string, endOdometer float64) (track.Trip, error)
	DeleteTrip(ctx context.Context, tripID string) error
}

// Broadcaster fans accepted points out to live subscribers.
type Broadcaster interface {
	Broadcast(tripID string, payload []byte)
}

// Result is the outcome of a user-initiated operation. Failures carry a
// renderable message instead of an error value so callers can show inline
// feedback.
type Result struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Trip    *track.Trip `json:"trip,omitempty"`
}

func failure(msg string) Result { return Result{Error: msg} }

// StatusSnapshot is the diagnostics view of the controller.
type StatusSnapshot struct {
	State        string            `json:"state"`
	Trip         *track.Trip       `json:"trip,omitempty"`
	QueueDepth   int               `json:"queueDepth"`
	Online       bool              `json:"online"`
	Permission   permission.Advice `json:"permission"`
	TripsTracked int               `json:"tripsTracked"`
}

// Controller owns the in-memory active trip and mediates start/stop. It is
// the sole writer of the trip's route, distance and duration; interleaved
// callbacks are serialized through one mutex.
type Controller struct {
	api     TripAPI
	source  location.Source
	perms   *permission.Machine
	queue   *queue.Queue
	flusher *flush.Flusher
	store   queue.Store
	hub     Broadcaster
	log     *logrus.Entry

	distanceFilterM float64
	explain         permission.ExplainFunc

	mu        sync.Mutex
	st        state
	starting  bool
	trip      *track.Trip
	startedAt time.Time
	completed int
	cancelRun context.CancelFunc

	pushMu      sync.Mutex
	pushing     bool
	pendingPush []track.RoutePoint
}

type Config struct {
	API             TripAPI
	Source          location.Source
	Permissions     *permission.Machine
	Queue           *queue.Queue
	Flusher         *flush.Flusher
	Store           queue.Store
	Hub             Broadcaster
	Log             *logrus.Entry
	DistanceFilterM float64
	// Explain gates the background-permission upgrade prompt; nil proceeds
	// without an explanation step.
	Explain permission.ExplainFunc
}

func NewController(cfg Config) *Controller {
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.DistanceFilterM <= 0 {
		cfg.DistanceFilterM = location.DefaultDistanceFilterM
	}
	return &Controller{
		api:             cfg.API,
		source:          cfg.Source,
		perms:           cfg.Permissions,
		queue:           cfg.Queue,
		flusher:         cfg.Flusher,
		store:           cfg.Store,
		hub:             cfg.Hub,
		log:             cfg.Log,
		distanceFilterM: cfg.DistanceFilterM,
		explain:         cfg.Explain,
	}
}

// AttachFlusher wires the flusher after construction; the flusher's sink is
// the controller itself, so the two cannot be built in one step. Must be
// called before tracking starts.
func (c *Controller) AttachFlusher(f *flush.Flusher) {
	c.flusher = f
}

// Start takes one fresh fix, creates the remote trip seeded with it and
// begins continuous sample production. State is committed only after the
// remote call succeeds.
func (c *Controller) Start(ctx context.Context, purpose string, startOdometer float64) Result {
	if purpose == "" {
		return failure("Purpose is required")
	}
	if startOdometer < 0 {
		return failure("Start odometer cannot be negative")
	}

	c.mu.Lock()
	if c.st != stateNoTrip || c.starting {
		c.mu.Unlock()
		return failure("A trip is already active")
	}
	c.starting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	fix, err := c.currentFix(ctx)
	if err != nil {
		return failure("Failed to get location: " + err.Error())
	}

	created, err := c.api.CreateTrip(ctx, purpose, startOdometer, []track.RoutePoint{fix.Point()})
	if err != nil {
		return failure("Failed to create trip: " + err.Error())
	}
	if len(created.Route) == 0 {
		created.Route = []track.RoutePoint{fix.Point()}
	}

	c.adopt(&created)
	c.saveLastFix(ctx, fix)

	trip := created
	return Result{Success: true, Trip: &trip}
}

// Resume adopts a server-side active trip, e.g. after a process restart.
// Returns false when no active trip exists.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.st != stateNoTrip {
		c.mu.Unlock()
		return false, errors.New("session: already tracking")
	}
	c.mu.Unlock()

	remote, err := c.api.GetActiveTrip(ctx)
	if err != nil {
		return false, err
	}
	if remote == nil {
		return false, nil
	}

	c.adopt(remote)
	c.log.WithField("trip_id", remote.ID).Info("resumed active trip")
	return true, nil
}

// adopt commits a trip as active and spins up the tracking machinery.
func (c *Controller) adopt(trip *track.Trip) {
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.st = stateActive
	c.trip = trip
	c.startedAt = trip.StartedAt()
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
	c.cancelRun = cancel
	c.mu.Unlock()

	if err := c.source.StartWatch(c.HandleSample, location.WatchOptions{DistanceFilterM: c.distanceFilterM}); err != nil {
		c.log.WithError(err).Warn("location watch start failed")
	}
	if c.perms != nil {
		if _, err := c.perms.RequestInitial(runCtx); err != nil {
			c.log.WithError(err).Warn("initial permission request failed")
		}
		c.perms.ArmEscalation(c.explain)
	}
	if c.flusher != nil {
		go c.flusher.Run(runCtx)
	}
}

// HandleSample is the continuous-observation callback. Samples arrive in
// production order; rejected ones leave all state untouched.
func (c *Controller) HandleSample(sample track.LocationSample) {
	ctx := context.Background()

	c.mu.Lock()
	if c.st != stateActive || c.trip == nil {
		c.mu.Unlock()
		return
	}

	var prev *track.RoutePoint
	if n := len(c.trip.Route); n > 0 {
		prev = &c.trip.Route[n-1]
	}
	if !track.Admit(prev, sample) {
		c.mu.Unlock()
		return
	}

	point := sample.Point()
	c.trip.Route = append(c.trip.Route, point)
	c.trip.Distance = track.AccumulateKm(c.trip.Route)
	c.trip.Duration = track.DurationSec(c.startedAt, time.Now())
	c.trip.AverageSpeed = track.AverageKmh(c.trip.Distance, c.trip.Duration)

	tripID := c.trip.ID
	routeLen := len(c.trip.Route)
	var routeCopy []track.RoutePoint
	if routeLen%routePushEvery == 0 {
		routeCopy = append([]track.RoutePoint(nil), c.trip.Route...)
	}
	c.mu.Unlock()

	n := c.queue.Enqueue(ctx, point)
	if c.flusher != nil {
		c.flusher.NotifyEnqueue(ctx, n)
	}
	c.saveLastFix(ctx, sample)

	if c.hub != nil {
		if payload, err := json.Marshal(point); err == nil {
			c.hub.Broadcast(tripID, payload)
		}
	}

	if routeCopy != nil {
		c.schedulePush(tripID, routeCopy)
	}
}

// schedulePush delivers a full-route overwrite in the background, one push in
// flight at a time. A push scheduled while another runs replaces any waiting
// one; with full-overwrite semantics only the newest route matters, and the
// serialization keeps a stale shorter route from landing after a longer one.
func (c *Controller) schedulePush(tripID string, route []track.RoutePoint) {
	c.pushMu.Lock()
	if c.pushing {
		c.pendingPush = route
		c.pushMu.Unlock()
		return
	}
	c.pushing = true
	c.pushMu.Unlock()

	go func() {
		for {
			pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, err := c.api.UpdateRoute(pushCtx, tripID, route)
			cancel()
			if err != nil {
				c.log.WithError(err).Warn("route push failed")
			}

			c.pushMu.Lock()
			if c.pendingPush == nil {
				c.pushing = false
				c.pushMu.Unlock()
				return
			}
			route = c.pendingPush
			c.pendingPush = nil
			c.pushMu.Unlock()
		}
	}()
}

// End takes one final fix, delivers the closing route and ends the trip
// remotely. The server-computed record is authoritative; on any failure the
// session stays active with nothing mutated.
func (c *Controller) End(ctx context.Context, endOdometer float64) Result {
	c.mu.Lock()
	if c.st != stateActive || c.trip == nil {
		c.mu.Unlock()
		return failure("No active trip")
	}
	if endOdometer < c.trip.StartOdometer {
		c.mu.Unlock()
		return failure("End odometer cannot be less than start odometer")
	}
	c.st = stateEnding
	tripID := c.trip.ID
	c.mu.Unlock()

	revert := func() {
		c.mu.Lock()
		c.st = stateActive
		c.mu.Unlock()
	}

	fix, err := c.currentFix(ctx)
	if err != nil {
		revert()
		return failure("Failed to get location: " + err.Error())
	}

	// Drain what the offline queue still holds before closing the record.
	if c.flusher != nil {
		_ = c.flusher.Flush(ctx)
	}

	c.mu.Lock()
	finalRoute := append([]track.RoutePoint(nil), c.trip.Route...)
	c.mu.Unlock()
	finalRoute = append(finalRoute, fix.Point())

	if _, err := c.api.UpdateRoute(ctx, tripID, finalRoute); err != nil {
		revert()
		return failure("Failed to end trip: " + err.Error())
	}

	completed, err := c.api.EndTrip(ctx, tripID, endOdometer)
	if err != nil {
		revert()
		return failure("Failed to end trip: " + err.Error())
	}

	c.teardown()

	c.mu.Lock()
	c.st = stateNoTrip
	c.trip = nil
	c.startedAt = time.Time{}
	c.completed++
	c.mu.Unlock()

	c.saveLastFix(ctx, fix)

	trip := completed
	return Result{Success: true, Trip: &trip}
}

// Delete removes a completed trip from the remote record.
func (c *Controller) Delete(ctx context.Context, tripID string) Result {
	if tripID == "" {
		return failure("Trip id is required")
	}

	c.mu.Lock()
	if c.trip != nil && c.trip.ID == tripID {
		c.mu.Unlock()
		return failure("Cannot delete the active trip")
	}
	c.mu.Unlock()

	if err := c.api.DeleteTrip(ctx, tripID); err != nil {
		return failure("Failed to delete trip: " + err.Error())
	}
	return Result{Success: true}
}

// Stop tears tracking down without ending the trip; the remote record stays
// active for a later Resume. Used on daemon shutdown.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	active := c.st == stateActive
	c.mu.Unlock()
	if !active {
		return
	}

	c.teardown()
	if c.flusher != nil {
		_ = c.flusher.Flush(ctx)
	}
}

// teardown halts sample production, pending timers and the flusher loop.
// The flusher's Run performs its own final flush on cancellation.
func (c *Controller) teardown() {
	if err := c.source.StopWatch(); err != nil {
		c.log.WithError(err).Warn("location watch stop failed")
	}
	if c.perms != nil {
		c.perms.Cancel()
	}

	c.mu.Lock()
	cancel := c.cancelRun
	c.cancelRun = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// PushPoints implements flush.Sink: pending queue points are merged into the
// active trip's route and delivered with full-overwrite semantics.
func (c *Controller) PushPoints(ctx context.Context, points []track.RoutePoint) error {
	c.mu.Lock()
	if c.trip == nil || c.st == stateNoTrip {
		c.mu.Unlock()
		return flush.ErrNoActiveTrip
	}
	tripID := c.trip.ID
	merged := mergeRoute(c.trip.Route, points)
	c.mu.Unlock()

	if _, err := c.api.UpdateRoute(ctx, tripID, merged); err != nil {
		return err
	}

	c.mu.Lock()
	if c.trip != nil && c.trip.ID == tripID && len(merged) > len(c.trip.Route) {
		c.trip.Route = merged
		c.trip.Distance = track.AccumulateKm(merged)
	}
	c.mu.Unlock()
	return nil
}

// mergeRoute appends queued points that postdate the known route; points
// already present (same timestamp and coordinates) are skipped. Keeps the
// non-decreasing timestamp invariant.
func mergeRoute(route, pending []track.RoutePoint) []track.RoutePoint {
	merged := append([]track.RoutePoint(nil), route...)
	for _, p := range pending {
		if n := len(merged); n > 0 {
			last := merged[n-1]
			if p.Timestamp < last.Timestamp {
				continue
			}
			if p.Timestamp == last.Timestamp && p.Latitude == last.Latitude && p.Longitude == last.Longitude {
				continue
			}
		}
		merged = append(merged, p)
	}
	return merged
}

// Status returns a diagnostics snapshot.
func (c *Controller) Status(ctx context.Context) StatusSnapshot {
	c.mu.Lock()
	snap := StatusSnapshot{
		State:        c.st.String(),
		QueueDepth:   c.queue.Len(),
		TripsTracked: c.completed,
	}
	if c.trip != nil {
		trip := *c.trip
		trip.Route = append([]track.RoutePoint(nil), c.trip.Route...)
		if c.st == stateActive {
			// Duration ticks between samples too; the copy keeps the
			// display-only values live without touching the trip itself.
			trip.Duration = track.DurationSec(c.startedAt, time.Now())
			trip.AverageSpeed = track.AverageKmh(trip.Distance, trip.Duration)
		}
		snap.Trip = &trip
	}
	c.mu.Unlock()

	if c.flusher != nil {
		snap.Online = c.flusher.Online()
	}
	if c.perms != nil {
		snap.Permission = c.perms.Advice(ctx)
	}
	return snap
}

// currentFix obtains one fresh fix, falling back to the stored last known
// sample unless the failure is a permission denial.
func (c *Controller) currentFix(ctx context.Context) (track.LocationSample, error) {
	fix, err := c.source.Current(ctx)
	if err == nil {
		return fix, nil
	}
	if errors.Is(err, location.ErrPermissionDenied) {
		return track.LocationSample{}, err
	}

	if c.store != nil {
		last, ok, loadErr := c.store.LoadLastFix(ctx)
		if loadErr == nil && ok {
			c.log.WithError(err).Warn("using last known position")
			last.Timestamp = time.Now().UnixMilli()
			return last, nil
		}
	}
	return track.LocationSample{}, err
}

func (c *Controller) saveLastFix(ctx context.Context, fix track.LocationSample) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveLastFix(ctx, fix); err != nil {
		c.log.WithError(err).Debug("last fix persist failed")
	}
}

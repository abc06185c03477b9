package flush

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/queue"
	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

const (
	// DefaultInterval is the periodic flush cadence while tracking.
	DefaultInterval = 60 * time.Second

	// DefaultThreshold flushes immediately once the queue reaches this
	// many points.
	DefaultThreshold = 20
)

// ErrNoActiveTrip is returned by a Sink when there is no trip to deliver
// to. The flusher leaves the queue untouched and tries again later.
var ErrNoActiveTrip = errors.New("flush: no active trip")

// Sink receives queued route points in bulk. Re-delivery of points the
// remote already has is acceptable; the remote merge is idempotent.
type Sink interface {
	PushPoints(ctx context.Context, points []track.RoutePoint) error
}

// Flusher drains the offline queue into a Sink. Threshold, periodic,
// visibility-transition and connectivity-regained triggers all funnel into
// the same single-flight Flush.
type Flusher struct {
	queue *queue.Queue
	sink  Sink
	log   *logrus.Entry

	interval  time.Duration
	threshold int

	online   atomic.Bool
	inFlight atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

type Options struct {
	Interval  time.Duration
	Threshold int
	Log       *logrus.Entry
}

func New(q *queue.Queue, sink Sink, opts Options) *Flusher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	f := &Flusher{
		queue:     q,
		sink:      sink,
		log:       opts.Log,
		interval:  opts.Interval,
		threshold: opts.Threshold,
	}
	f.online.Store(true)
	return f
}

// Run owns the periodic trigger until ctx is cancelled, then attempts one
// final flush before returning.
func (f *Flusher) Run(ctx context.Context) {
	f.mu.Lock()
	if f.done != nil {
		f.mu.Unlock()
		return
	}
	done := make(chan struct{})
	f.done = done
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.done = nil
		f.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = f.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			if f.online.Load() {
				_ = f.Flush(ctx)
			}
		}
	}
}

// SetOnline records the connectivity state and flushes on the
// offline-to-online edge.
func (f *Flusher) SetOnline(ctx context.Context, online bool) {
	was := f.online.Swap(online)
	if online && !was {
		_ = f.Flush(ctx)
	}
}

// Online reports the last known connectivity state.
func (f *Flusher) Online() bool {
	return f.online.Load()
}

// NotifyEnqueue applies the threshold trigger after an enqueue that brought
// the queue to queueLen points.
func (f *Flusher) NotifyEnqueue(ctx context.Context, queueLen int) {
	if queueLen >= f.threshold && f.online.Load() {
		_ = f.Flush(ctx)
	}
}

// NotifyVisibility flushes on every visibility transition, in either
// direction, while connectivity is available.
func (f *Flusher) NotifyVisibility(ctx context.Context, visible bool) {
	f.log.WithField("visible", visible).Debug("visibility transition")
	if f.online.Load() {
		_ = f.Flush(ctx)
	}
}

// Flush snapshots the queue and delivers the snapshot. Points enqueued
// while the delivery is in flight stay queued for the next flush. On
// failure the queue is untouched; a bare periodic retry follows, with no
// backoff. Overlapping invocations collapse into one.
func (f *Flusher) Flush(ctx context.Context) error {
	if !f.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer f.inFlight.Store(false)

	snapshot := f.queue.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	if err := f.sink.PushPoints(ctx, snapshot); err != nil {
		if errors.Is(err, ErrNoActiveTrip) {
			f.log.WithField("queued", len(snapshot)).Debug("no active trip, points stay queued")
			return nil
		}
		f.log.WithError(err).WithField("queued", len(snapshot)).Warn("flush failed, will retry")
		return err
	}

	f.queue.Ack(ctx, len(snapshot))
	return nil
}

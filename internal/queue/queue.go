package queue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// softWarnDepth is a diagnostics threshold only; the queue never evicts.
const softWarnDepth = 500

// Queue is the durable FIFO of route points awaiting transmission. Every
// mutation is persisted synchronously; persistence failures are swallowed
// and the in-memory contents stay authoritative for the process lifetime.
type Queue struct {
	mu     sync.Mutex
	store  Store
	points []track.RoutePoint
	log    *logrus.Entry
	warned bool
}

// New loads any previously persisted queue contents from the store, so
// points enqueued before a process restart are not lost.
func New(ctx context.Context, store Store, log *logrus.Entry) *Queue {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	q := &Queue{store: store, log: log}

	points, err := store.LoadQueue(ctx)
	if err != nil {
		log.WithError(err).Warn("offline queue load failed, starting empty")
		return q
	}
	q.points = points
	return q
}

// Enqueue appends a point and persists the full queue. Returns the new
// queue length so callers can apply the flush threshold.
func (q *Queue) Enqueue(ctx context.Context, p track.RoutePoint) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.points = append(q.points, p)
	q.persistLocked(ctx)

	n := len(q.points)
	if n >= softWarnDepth && !q.warned {
		q.warned = true
		q.log.WithField("queued", n).Warn("offline queue backlog is growing")
	}
	return n
}

// Len is observable for diagnostics; it never caps growth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.points)
}

// Snapshot returns a copy of the current contents without mutating the
// queue. The flusher pairs it with Ack so points enqueued mid-flight are
// kept for the next flush.
func (q *Queue) Snapshot() []track.RoutePoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]track.RoutePoint(nil), q.points...)
}

// Ack removes the first n points after a successful transmission.
func (q *Queue) Ack(ctx context.Context, n int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 {
		return
	}
	if n >= len(q.points) {
		q.points = nil
	} else {
		q.points = append([]track.RoutePoint(nil), q.points[n:]...)
	}
	q.warned = false
	q.persistLocked(ctx)
}

// Drain returns the full current contents and atomically empties the
// queue. Callers that fail to transmit the result must re-enqueue it.
func (q *Queue) Drain(ctx context.Context) []track.RoutePoint {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.points
	q.points = nil
	q.warned = false
	q.persistLocked(ctx)
	return drained
}

// Requeue prepends points that failed to transmit after a Drain.
func (q *Queue) Requeue(ctx context.Context, points []track.RoutePoint) {
	if len(points) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.points = append(append([]track.RoutePoint(nil), points...), q.points...)
	q.persistLocked(ctx)
}

func (q *Queue) persistLocked(ctx context.Context) {
	if err := q.store.SaveQueue(ctx, q.points); err != nil {
		q.log.WithError(err).Debug("offline queue persist failed")
	}
}

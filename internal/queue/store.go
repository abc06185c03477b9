package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// Single namespaced keys: one queue and one fallback fix exist at a time,
// independent of the trip the points were collected for.
const (
	queueKey   = "tripgo:bg:queue:v1"
	lastFixKey = "tripgo:last_position"
)

// Store is the durable local key-value store backing the offline queue and
// the last-known-position fallback.
type Store interface {
	SaveQueue(ctx context.Context, points []track.RoutePoint) error
	LoadQueue(ctx context.Context) ([]track.RoutePoint, error)
	SaveLastFix(ctx context.Context, fix track.LocationSample) error
	LoadLastFix(ctx context.Context) (track.LocationSample, bool, error)
}

// RedisStore persists the queue as a JSON array under a fixed key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveQueue(ctx context.Context, points []track.RoutePoint) error {
	payload, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, queueKey, payload, 0).Err()
}

func (s *RedisStore) LoadQueue(ctx context.Context) ([]track.RoutePoint, error) {
	raw, err := s.client.Get(ctx, queueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var points []track.RoutePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *RedisStore) SaveLastFix(ctx context.Context, fix track.LocationSample) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, lastFixKey, payload, 0).Err()
}

func (s *RedisStore) LoadLastFix(ctx context.Context) (track.LocationSample, bool, error) {
	raw, err := s.client.Get(ctx, lastFixKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return track.LocationSample{}, false, nil
	}
	if err != nil {
		return track.LocationSample{}, false, err
	}

	var fix track.LocationSample
	if err := json.Unmarshal(raw, &fix); err != nil {
		return track.LocationSample{}, false, err
	}
	return fix, true, nil
}

// MemoryStore keeps everything in process memory. Used when no redis is
// configured and as the deterministic store in tests.
type MemoryStore struct {
	mu      sync.Mutex
	points  []track.RoutePoint
	fix     track.LocationSample
	hasFix  bool
	saveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailSaves makes every subsequent save return err. Tests use this to
// exercise the swallow-persistence-failures path.
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func (s *MemoryStore) SaveQueue(_ context.Context, points []track.RoutePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.points = append([]track.RoutePoint(nil), points...)
	return nil
}

func (s *MemoryStore) LoadQueue(_ context.Context) ([]track.RoutePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]track.RoutePoint(nil), s.points...), nil
}

func (s *MemoryStore) SaveLastFix(_ context.Context, fix track.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.fix = fix
	s.hasFix = true
	return nil
}

func (s *MemoryStore) LoadLastFix(_ context.Context) (track.LocationSample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fix, s.hasFix, nil
}

package track

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// LocationSample is a single raw reading from the positioning capability.
// Immutable once created; Timestamp is epoch milliseconds.
type LocationSample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
	SpeedMps  float64 `json:"speed,omitempty"`
	Heading   float64 `json:"heading,omitempty"`
}

// Point reduces a sample to the admitted, persisted form.
func (s LocationSample) Point() RoutePoint {
	return RoutePoint{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Timestamp: s.Timestamp,
		Accuracy:  s.Accuracy,
	}
}

// RoutePoint is an accepted location point belonging to a trip route.
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	Accuracy  float64 `json:"accuracy"`
}

// Trip mirrors the remote trip record. Distance is in km, duration in
// seconds, average speed in km/h. The client-side values are provisional
// while the trip is active; the server's are authoritative once ended.
type Trip struct {
	ID            string       `json:"_id"`
	UserID        string       `json:"userId,omitempty"`
	Purpose       string       `json:"purpose"`
	StartTime     string       `json:"startTime,omitempty"`
	EndTime       string       `json:"endTime,omitempty"`
	StartOdometer float64      `json:"startOdometer"`
	EndOdometer   float64      `json:"endOdometer,omitempty"`
	Distance      float64      `json:"distance"`
	Duration      int64        `json:"duration"`
	AverageSpeed  float64      `json:"averageSpeed"`
	Route         []RoutePoint `json:"route"`
	Status        Status       `json:"status"`
	CreatedAt     string       `json:"createdAt,omitempty"`
	UpdatedAt     string       `json:"updatedAt,omitempty"`
}

// StartedAt parses the trip's start time, falling back to createdAt and
// finally to the zero time when neither parses.
func (t Trip) StartedAt() time.Time {
	for _, raw := range []string{t.StartTime, t.CreatedAt} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

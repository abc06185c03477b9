package location

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

type stubMessage struct {
	payload []byte
}

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 1 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return "tripgo/location" }
func (m stubMessage) MessageID() uint16 { return 1 }
func (m stubMessage) Payload() []byte   { return m.payload }
func (m stubMessage) Ack()              {}

func sampleMsg(t *testing.T, s track.LocationSample) stubMessage {
	t.Helper()
	payload, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return stubMessage{payload: payload}
}

func TestMQTTHandleMessageDeliversAndTracksCurrent(t *testing.T) {
	s := &MQTTSource{topic: "tripgo/location", log: testLogEntry()}

	var delivered []track.LocationSample
	_ = s.StartWatch(func(l track.LocationSample) { delivered = append(delivered, l) }, WatchOptions{})

	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: -6.2, Longitude: 106.8, Accuracy: 10, Timestamp: 1000}))
	if len(delivered) != 1 {
		t.Fatalf("expected delivery, got %d", len(delivered))
	}

	cur, err := s.Current(context.Background())
	if err != nil || cur.Latitude != -6.2 {
		t.Fatalf("unexpected current: %v %v", cur, err)
	}
}

func TestMQTTHandleMessageRejectsInvalid(t *testing.T) {
	s := &MQTTSource{topic: "tripgo/location", log: testLogEntry()}

	var delivered int
	_ = s.StartWatch(func(track.LocationSample) { delivered++ }, WatchOptions{})

	s.handleMessage(nil, stubMessage{payload: []byte("not-json")})
	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 91, Longitude: 0, Accuracy: 5, Timestamp: 1}))
	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 0, Longitude: 181, Accuracy: 5, Timestamp: 1}))
	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 0, Longitude: 0, Accuracy: -1, Timestamp: 1}))

	if delivered != 0 {
		t.Fatalf("expected no deliveries, got %d", delivered)
	}
	if _, err := s.Current(context.Background()); err == nil {
		t.Fatalf("expected no current fix")
	}
}

func TestMQTTHandleMessageDistanceFilter(t *testing.T) {
	s := &MQTTSource{topic: "tripgo/location", log: testLogEntry()}

	var delivered int
	_ = s.StartWatch(func(track.LocationSample) { delivered++ }, WatchOptions{DistanceFilterM: 15})

	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 0, Longitude: 0, Accuracy: 5, Timestamp: 1000}))
	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 0, Longitude: 0.00005, Accuracy: 5, Timestamp: 2000}))
	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 0, Longitude: 0.0002, Accuracy: 5, Timestamp: 3000}))

	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}

	// Filtered samples still update Current.
	cur, err := s.Current(context.Background())
	if err != nil || cur.Longitude != 0.0002 {
		t.Fatalf("unexpected current: %v %v", cur, err)
	}
}

func TestMQTTDefaultsTimestamp(t *testing.T) {
	s := &MQTTSource{topic: "tripgo/location", log: testLogEntry()}

	s.handleMessage(nil, sampleMsg(t, track.LocationSample{Latitude: 1, Longitude: 1, Accuracy: 5}))
	cur, err := s.Current(context.Background())
	if err != nil || cur.Timestamp == 0 {
		t.Fatalf("expected defaulted timestamp, got %v %v", cur, err)
	}
}

func TestMQTTOnOnline(t *testing.T) {
	s := &MQTTSource{topic: "tripgo/location", log: testLogEntry()}

	var transitions []bool
	s.OnOnline(func(online bool) { transitions = append(transitions, online) })

	s.notifyOnline(true)
	s.notifyOnline(false)

	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/shared/geo"
	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// MQTTSource receives location samples published by the device shell over an
// MQTT topic, one JSON LocationSample per message. Broker connect/lost
// transitions double as the network-connectivity change notification.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	log    *logrus.Entry

	mu            sync.Mutex
	cb            func(track.LocationSample)
	opts          WatchOptions
	last          *track.LocationSample
	lastDelivered *track.RoutePoint
	onOnline      func(bool)
}

// NewMQTTSource connects to the broker and subscribes to topic. The returned
// source delivers nothing until StartWatch is called, but it keeps the most
// recent sample for Current either way.
func NewMQTTSource(broker, clientID, topic string, log *logrus.Entry) (*MQTTSource, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &MQTTSource{topic: topic, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(topic, 1, s.handleMessage); token.Wait() && token.Error() != nil {
				log.WithError(token.Error()).Warn("location topic subscribe failed")
			}
			s.notifyOnline(true)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("location broker connection lost")
			s.notifyOnline(false)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.client = client
	return s, nil
}

// OnOnline registers fn to be invoked with true on broker connect and false
// on connection loss.
func (s *MQTTSource) OnOnline(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOnline = fn
}

func (s *MQTTSource) notifyOnline(online bool) {
	s.mu.Lock()
	fn := s.onOnline
	s.mu.Unlock()
	if fn != nil {
		fn(online)
	}
}

func (s *MQTTSource) StartWatch(cb func(track.LocationSample), opts WatchOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cb != nil {
		return nil
	}
	s.cb = cb
	s.opts = opts
	s.lastDelivered = nil
	return nil
}

func (s *MQTTSource) StopWatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = nil
	s.lastDelivered = nil
	return nil
}

func (s *MQTTSource) Current(_ context.Context) (track.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return track.LocationSample{}, ErrNoFix
	}
	return *s.last, nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() {
	s.client.Disconnect(250)
}

func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var sample track.LocationSample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.log.WithError(err).Warn("invalid location message")
		return
	}
	if err := validateSample(sample); err != nil {
		s.log.WithError(err).Warn("rejected location message")
		return
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	s.last = &sample
	cb := s.cb

	if cb != nil && s.opts.DistanceFilterM > 0 && s.lastDelivered != nil {
		movedM := geo.HaversineKm(
			s.lastDelivered.Latitude, s.lastDelivered.Longitude,
			sample.Latitude, sample.Longitude,
		) * 1000
		if movedM < s.opts.DistanceFilterM {
			s.mu.Unlock()
			return
		}
	}
	if cb != nil {
		p := sample.Point()
		s.lastDelivered = &p
	}
	s.mu.Unlock()

	if cb != nil {
		cb(sample)
	}
}

func validateSample(s track.LocationSample) error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %v", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %v", s.Longitude)
	}
	if s.Accuracy < 0 {
		return fmt.Errorf("negative accuracy: %v", s.Accuracy)
	}
	return nil
}

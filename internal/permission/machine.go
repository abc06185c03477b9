package permission

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/location"
)

// StatusNotIOS is the terminal answer on platforms where the escalation
// logic does not apply.
const StatusNotIOS = "not-ios"

// escalationDelay is how long after tracking start the machine waits before
// re-evaluating a when-in-use grant.
const escalationDelay = 30 * time.Second

// Advice is the derived view of the current permission state.
type Advice struct {
	Status           string `json:"status"`
	ShouldExplain    bool   `json:"shouldExplain"`
	CanRequestAlways bool   `json:"canRequestAlways"`
}

// ExplainFunc shows a UX explanation before the always-permission prompt.
// Returning false aborts the escalation without prompting.
type ExplainFunc func(ctx context.Context) (bool, error)

// Evaluate queries the platform permission status and derives advice.
func Evaluate(ctx context.Context, perms location.Permissions) Advice {
	if perms.Platform() != "ios" {
		return Advice{Status: StatusNotIOS}
	}

	tier, err := perms.Status(ctx)
	if err != nil {
		tier = location.TierUnknown
	}

	switch tier {
	case location.TierGranted, location.TierAlways:
		return Advice{Status: string(tier)}
	case location.TierWhenInUse:
		return Advice{Status: string(tier), ShouldExplain: true, CanRequestAlways: true}
	default:
		return Advice{Status: string(tier), ShouldExplain: true}
	}
}

// EscalateWithUX requests the always tier when the current state permits it,
// optionally gated by a UX explanation. The returned status is whatever the
// platform reports; a grant is never assumed.
func EscalateWithUX(ctx context.Context, perms location.Permissions, preExplain ExplainFunc) (string, error) {
	advice := Evaluate(ctx, perms)
	if !advice.CanRequestAlways {
		return advice.Status, nil
	}

	if preExplain != nil {
		proceed, err := preExplain(ctx)
		if err != nil {
			return advice.Status, err
		}
		if !proceed {
			return advice.Status, nil
		}
	}

	tier, err := perms.Request(ctx, true)
	if err != nil {
		return advice.Status, err
	}
	return string(tier), nil
}

// Machine tracks the platform permission status for one tracking run and
// owns the one-shot escalation timer armed at tracking start.
type Machine struct {
	perms location.Permissions
	delay time.Duration
	log   *logrus.Entry

	mu     sync.Mutex
	timer  *time.Timer
	status string
}

type Option func(*Machine)

// WithDelay overrides the escalation delay; tests use it to avoid waiting.
func WithDelay(d time.Duration) Option {
	return func(m *Machine) { m.delay = d }
}

func NewMachine(perms location.Permissions, log *logrus.Entry, opts ...Option) *Machine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Machine{perms: perms, delay: escalationDelay, log: log, status: string(location.TierUnknown)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequestInitial performs the first permission request for a tracking run.
// Non-iOS platforms seek the broadest tier directly; iOS asks for
// when-in-use, re-prompting once when the stored answer is a denial.
func (m *Machine) RequestInitial(ctx context.Context) (string, error) {
	if m.perms.Platform() != "ios" {
		tier, err := m.perms.Request(ctx, true)
		if err != nil {
			return m.Status(), err
		}
		m.setStatus(string(tier))
		return string(tier), nil
	}

	current, err := m.perms.Status(ctx)
	if err != nil {
		current = location.TierUnknown
	}
	if current == location.TierGranted || current == location.TierAlways {
		m.setStatus(string(current))
		return string(current), nil
	}

	tier, err := m.perms.Request(ctx, false)
	if err != nil {
		return m.Status(), err
	}
	m.setStatus(string(tier))
	return string(tier), nil
}

// ArmEscalation schedules a one-shot evaluation after the configured delay.
// At evaluation time the status is re-queried; the upgrade request only
// fires when the grant is still when-in-use and explain (when set) agrees.
// Re-arming resets the pending timer.
func (m *Machine) ArmEscalation(explain ExplainFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status, err := EscalateWithUX(ctx, m.perms, explain)
		if err != nil {
			m.log.WithError(err).Warn("permission escalation failed")
			return
		}
		m.setStatus(status)
	})
}

// Cancel stops a pending escalation. Safe when none is armed.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Advice re-queries the platform and returns derived advice.
func (m *Machine) Advice(ctx context.Context) Advice {
	advice := Evaluate(ctx, m.perms)
	m.setStatus(advice.Status)
	return advice
}

// Status returns the last observed permission status.
func (m *Machine) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Machine) setStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

package permission

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/F1Square/TripGo-Adv-client/internal/location"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestEvaluateNotIOS(t *testing.T) {
	perms := location.NewStaticPermissions("android", location.TierWhenInUse, location.TierAlways)
	advice := Evaluate(context.Background(), perms)
	if advice.Status != StatusNotIOS || advice.CanRequestAlways || advice.ShouldExplain {
		t.Fatalf("unexpected advice: %+v", advice)
	}
}

func TestEvaluateTiers(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		tier    location.Tier
		explain bool
		always  bool
	}{
		{location.TierAlways, false, false},
		{location.TierGranted, false, false},
		{location.TierWhenInUse, true, true},
		{location.TierDenied, true, false},
		{location.TierUnknown, true, false},
	}
	for _, tc := range cases {
		perms := location.NewStaticPermissions("ios", tc.tier, tc.tier)
		advice := Evaluate(ctx, perms)
		if advice.Status != string(tc.tier) || advice.ShouldExplain != tc.explain || advice.CanRequestAlways != tc.always {
			t.Fatalf("tier %v: unexpected advice %+v", tc.tier, advice)
		}
	}
}

func TestEvaluateStatusError(t *testing.T) {
	perms := location.NewStaticPermissions("ios", location.TierGranted, location.TierGranted)
	perms.FailStatus(errors.New("bridge down"))

	advice := Evaluate(context.Background(), perms)
	if advice.Status != string(location.TierUnknown) || !advice.ShouldExplain {
		t.Fatalf("unexpected advice: %+v", advice)
	}
}

func TestEscalateWithUXDeclined(t *testing.T) {
	ctx := context.Background()
	perms := location.NewStaticPermissions("ios", location.TierWhenInUse, location.TierAlways)

	status, err := EscalateWithUX(ctx, perms, func(context.Context) (bool, error) { return false, nil })
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if status != string(location.TierWhenInUse) {
		t.Fatalf("expected unchanged status, got %v", status)
	}
	if perms.Requests() != 0 {
		t.Fatalf("expected no prompt after declined explanation")
	}
}

func TestEscalateWithUXAccepted(t *testing.T) {
	ctx := context.Background()
	perms := location.NewStaticPermissions("ios", location.TierWhenInUse, location.TierAlways)

	status, err := EscalateWithUX(ctx, perms, func(context.Context) (bool, error) { return true, nil })
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if status != string(location.TierAlways) || perms.Requests() != 1 {
		t.Fatalf("expected always after prompt, got %v (%d requests)", status, perms.Requests())
	}
}

func TestEscalateWithUXTerminalStates(t *testing.T) {
	ctx := context.Background()

	for _, tier := range []location.Tier{location.TierAlways, location.TierGranted, location.TierDenied} {
		perms := location.NewStaticPermissions("ios", tier, location.TierAlways)
		status, err := EscalateWithUX(ctx, perms, nil)
		if err != nil {
			t.Fatalf("escalate: %v", err)
		}
		if status != string(tier) || perms.Requests() != 0 {
			t.Fatalf("tier %v: expected no prompt, got %v (%d requests)", tier, status, perms.Requests())
		}
	}
}

func TestMachineArmEscalationFires(t *testing.T) {
	perms := location.NewStaticPermissions("ios", location.TierWhenInUse, location.TierAlways)
	m := NewMachine(perms, testLog(), WithDelay(10*time.Millisecond))

	m.ArmEscalation(func(context.Context) (bool, error) { return true, nil })

	deadline := time.Now().Add(time.Second)
	for perms.Requests() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if perms.Requests() != 1 {
		t.Fatalf("expected escalation prompt")
	}
	if m.Status() != string(location.TierAlways) {
		t.Fatalf("expected tracked status always, got %v", m.Status())
	}
}

func TestMachineCancelPreventsEscalation(t *testing.T) {
	perms := location.NewStaticPermissions("ios", location.TierWhenInUse, location.TierAlways)
	m := NewMachine(perms, testLog(), WithDelay(20*time.Millisecond))

	m.ArmEscalation(nil)
	m.Cancel()

	time.Sleep(60 * time.Millisecond)
	if perms.Requests() != 0 {
		t.Fatalf("expected no prompt after cancel")
	}
}

func TestMachineRequestInitialNonIOS(t *testing.T) {
	perms := location.NewStaticPermissions("android", location.TierUnknown, location.TierAlways)
	m := NewMachine(perms, testLog())

	status, err := m.RequestInitial(context.Background())
	if err != nil {
		t.Fatalf("request initial: %v", err)
	}
	if status != string(location.TierAlways) || perms.Requests() != 1 {
		t.Fatalf("expected broadest-tier request, got %v (%d requests)", status, perms.Requests())
	}
}

func TestMachineRequestInitialIOSAlreadyGranted(t *testing.T) {
	perms := location.NewStaticPermissions("ios", location.TierAlways, location.TierAlways)
	m := NewMachine(perms, testLog())

	status, err := m.RequestInitial(context.Background())
	if err != nil {
		t.Fatalf("request initial: %v", err)
	}
	if status != string(location.TierAlways) || perms.Requests() != 0 {
		t.Fatalf("expected no prompt when already granted")
	}
}

func TestMachineRequestInitialIOSDeniedReprompts(t *testing.T) {
	perms := location.NewStaticPermissions("ios", location.TierDenied, location.TierWhenInUse)
	m := NewMachine(perms, testLog())

	status, err := m.RequestInitial(context.Background())
	if err != nil {
		t.Fatalf("request initial: %v", err)
	}
	if status != string(location.TierWhenInUse) || perms.Requests() != 1 {
		t.Fatalf("expected one re-prompt, got %v (%d requests)", status, perms.Requests())
	}
}

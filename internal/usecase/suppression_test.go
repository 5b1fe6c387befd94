package usecase

import (
	"testing"
	"time"
)

func TestSuppressionGateConsumeWithinTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := NewSuppressionGate(3*time.Second, clock.Now)

	gate.Arm()
	clock.Advance(2 * time.Second)
	if !gate.ConsumeIfArmed() {
		t.Fatalf("expected armed gate to be consumed within ttl")
	}
	if gate.ConsumeIfArmed() {
		t.Fatalf("gate must be one-shot")
	}
}

func TestSuppressionGateExpires(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := NewSuppressionGate(3*time.Second, clock.Now)

	gate.Arm()
	clock.Advance(3*time.Second + time.Millisecond)
	if gate.ConsumeIfArmed() {
		t.Fatalf("expired gate must not suppress")
	}
	if gate.Armed() {
		t.Fatalf("expired gate must be disarmed after consume")
	}
}

func TestSuppressionGateBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := NewSuppressionGate(time.Second, clock.Now)

	gate.Arm()
	clock.Advance(time.Second)
	if !gate.ConsumeIfArmed() {
		t.Fatalf("expected consume at exactly ttl")
	}
}

func TestSuppressionGateRearmRefreshes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := NewSuppressionGate(3*time.Second, clock.Now)

	gate.Arm()
	clock.Advance(2 * time.Second)
	gate.Arm()
	clock.Advance(2 * time.Second)

	if !gate.ConsumeIfArmed() {
		t.Fatalf("re-arm must refresh the window")
	}
	if gate.ConsumeIfArmed() {
		t.Fatalf("re-arm must not stack")
	}
}

func TestSuppressionGateArmedAutoDisarms(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	gate := NewSuppressionGate(time.Second, clock.Now)

	gate.Arm()
	if !gate.Armed() {
		t.Fatalf("expected armed")
	}
	clock.Advance(2 * time.Second)
	if gate.Armed() {
		t.Fatalf("expected window to expire")
	}
}

func TestSuppressionGateDisarmAndDefaults(t *testing.T) {
	t.Parallel()

	gate := NewSuppressionGate(0, nil)
	if gate.TTL() != DefaultSuppressionTTL {
		t.Fatalf("expected default ttl, got %s", gate.TTL())
	}

	gate.ArmFor(500 * time.Millisecond)
	if gate.TTL() != 500*time.Millisecond {
		t.Fatalf("expected ttl override, got %s", gate.TTL())
	}
	gate.Disarm()
	if gate.ConsumeIfArmed() {
		t.Fatalf("disarmed gate must not suppress")
	}
}

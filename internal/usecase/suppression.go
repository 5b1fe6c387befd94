package usecase

import (
	"sync"
	"time"
)

// DefaultSuppressionTTL bounds how long a termination signal may be masked after a benign error.
const DefaultSuppressionTTL = 3 * time.Second

// SuppressionGate is a one-shot, time-bounded flag that marks the next termination
// signal as an expected consequence of a benign error.
type SuppressionGate struct {
	mu      sync.Mutex
	armed   bool
	armedAt time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewSuppressionGate creates a gate. A non-positive ttl selects DefaultSuppressionTTL,
// a nil clock selects time.Now.
func NewSuppressionGate(ttl time.Duration, now func() time.Time) *SuppressionGate {
	if ttl <= 0 {
		ttl = DefaultSuppressionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SuppressionGate{ttl: ttl, now: now}
}

// Arm opens the window with the gate's configured TTL.
func (g *SuppressionGate) Arm() {
	g.ArmFor(0)
}

// ArmFor opens the window with a specific TTL. Re-arming refreshes the window instead of stacking.
func (g *SuppressionGate) ArmFor(ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ttl > 0 {
		g.ttl = ttl
	}
	g.armed = true
	g.armedAt = g.now()
}

// ConsumeIfArmed reports whether the pending termination signal must be ignored.
// The gate is disarmed in every case.
func (g *SuppressionGate) ConsumeIfArmed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.armed {
		return false
	}
	g.armed = false
	return g.now().Sub(g.armedAt) <= g.ttl
}

// Armed reports whether the window is open. An expired window is disarmed as a side effect.
func (g *SuppressionGate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.armed && g.now().Sub(g.armedAt) > g.ttl {
		g.armed = false
	}
	return g.armed
}

// Disarm closes the window without consuming it.
func (g *SuppressionGate) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
}

// TTL returns the active window length.
func (g *SuppressionGate) TTL() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ttl
}

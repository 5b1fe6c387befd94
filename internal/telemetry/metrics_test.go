package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"steadymic/internal/domain"
)

func TestMetricsTracksCurrentState(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Observe(domain.Snapshot{State: domain.StateStarting, Reason: domain.ReasonStartRequested})
	m.Observe(domain.Snapshot{
		State:  domain.StateListening,
		Reason: domain.ReasonListening,
		Flags:  domain.ContinuityFlags{StartedOnce: true, NeverStopped: true},
		Stats:  domain.Stats{StartCount: 1, MicrophonePermissionRequests: 1},
	})

	if got := testutil.ToFloat64(m.state.WithLabelValues("listening")); got != 1 {
		t.Fatalf("expected listening gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues("starting")); got != 0 {
		t.Fatalf("expected starting gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("listening", "listening")); got != 1 {
		t.Fatalf("expected one listening transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.stats.WithLabelValues("start_count")); got != 1 {
		t.Fatalf("expected start_count 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.neverStop); got != 1 {
		t.Fatalf("expected continuity gauge 1, got %v", got)
	}

	m.Observe(domain.Snapshot{State: domain.StateError, Reason: domain.ReasonFatalError})
	if got := testutil.ToFloat64(m.neverStop); got != 0 {
		t.Fatalf("expected continuity gauge reset, got %v", got)
	}
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Observe(domain.Snapshot{State: domain.StateIdle, Reason: domain.ReasonInitial})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `steadymic_recognition_state{state="idle"} 1`) {
		t.Fatalf("expected idle state in exposition, got:\n%s", body)
	}
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewMetrics()
	b := NewMetrics()
	a.Observe(domain.Snapshot{State: domain.StateListening, Reason: domain.ReasonListening})

	if got := testutil.ToFloat64(b.transitions.WithLabelValues("listening", "listening")); got != 0 {
		t.Fatalf("expected separate registries, got %v", got)
	}
}

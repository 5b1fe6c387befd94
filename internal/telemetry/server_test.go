package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"steadymic/internal/domain"
)

type stubSource struct {
	snap   domain.Snapshot
	errors domain.ErrorStats
}

func (s stubSource) GetState() domain.Snapshot        { return s.snap }
func (s stubSource) GetErrorStats() domain.ErrorStats { return s.errors }

func TestHealthReportsOK(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubSource{snap: domain.Snapshot{State: domain.StateListening, Reason: domain.ReasonListening}}, nil, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["state"] != "listening" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHealthReportsErrorState(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubSource{snap: domain.Snapshot{State: domain.StateError, Reason: domain.ReasonDropLimit}}, nil, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStateIncludesErrorStats(t *testing.T) {
	t.Parallel()

	source := stubSource{
		snap:   domain.Snapshot{SessionID: "s-1", State: domain.StateRecovering},
		errors: domain.ErrorStats{ErrorCount: 2, LastErrorCode: "network", SuppressionArmed: true},
	}
	srv := NewServer(source, NewMetrics(), "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	var body stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Snapshot.SessionID != "s-1" || body.Snapshot.State != domain.StateRecovering {
		t.Fatalf("unexpected snapshot: %+v", body.Snapshot)
	}
	if body.Errors.ErrorCount != 2 || !body.Errors.SuppressionArmed {
		t.Fatalf("unexpected error stats: %+v", body.Errors)
	}
}

func TestMetricsRouteIsMounted(t *testing.T) {
	t.Parallel()

	srv := NewServer(stubSource{}, NewMetrics(), "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics route, got %d", rec.Code)
	}

	bare := NewServer(stubSource{}, nil, "")
	rec = httptest.NewRecorder()
	bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected no metrics route without metrics, got %d", rec.Code)
	}
}

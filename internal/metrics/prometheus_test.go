package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusHandler_ExposesCountersAndGauges(t *testing.T) {
	m := New()
	m.Inc(RoomCreated)
	m.Add(MessageRelayed, 2)
	m.SetStateFunc(func() State { return State{Connections: 3, Rooms: 1} })

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(m).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	for _, want := range []string{
		"# TYPE aero_signal_relay_events_total counter",
		`aero_signal_relay_events_total{event="message_relayed"} 2`,
		`aero_signal_relay_events_total{event="room_created"} 1`,
		"aero_signal_relay_connections 3",
		"aero_signal_relay_rooms 1",
		"aero_signal_relay_pending_matches 0",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	rr := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestMetrics_IncAccumulates(t *testing.T) {
	m := New()
	m.Inc(PendingCreated)
	m.Inc(PendingCreated)
	m.Add(PendingCreated, 0)

	if got := testutil.ToFloat64(m.events.WithLabelValues(PendingCreated)); got != 2 {
		t.Fatalf("pending_match_created=%v, want 2", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(RoomCreated)
	m.SetStateFunc(func() State { return State{} })
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

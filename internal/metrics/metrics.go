package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "aero_signal_relay"

// Event names. All events share one counter with an `event` label.
const (
	ConnectionOpened   = "connection_opened"
	ConnectionClosed   = "connection_closed"
	AdmissionRejected  = "admission_rejected"
	RateLimited        = "rate_limited"
	MessageTooBig      = "message_too_big"
	MalformedDropped   = "malformed_dropped"
	RoomCreated        = "room_created"
	RoomDeleted        = "room_deleted"
	RoomJoined         = "room_joined"
	JoinRejected       = "join_rejected"
	MessageRelayed     = "message_relayed"
	MessageDropped     = "message_dropped"
	SendFailed         = "send_failed"
	PeerRegistered     = "peer_registered"
	PendingCreated     = "pending_match_created"
	PendingResolved    = "pending_match_resolved"
	PendingExpired     = "pending_match_expired"
	LivenessTerminated = "liveness_terminated"
)

// State is a point-in-time view of relay occupancy.
type State struct {
	Connections    int `json:"connections"`
	Rooms          int `json:"rooms"`
	Peers          int `json:"peers"`
	PendingMatches int `json:"pendingMatches"`
}

// Metrics owns a private Prometheus registry with the relay's event counter
// and occupancy gauges. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg    *prometheus.Registry
	events *prometheus.CounterVec

	mu    sync.RWMutex
	state func() State
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Internal event counters.",
		}, []string{"event"}),
	}

	gauge := func(name, help string, pick func(State) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(m.State())) })
	}

	m.reg.MustRegister(
		m.events,
		gauge("connections", "Open WebSocket connections.", func(s State) int { return s.Connections }),
		gauge("rooms", "Live rooms.", func(s State) int { return s.Rooms }),
		gauge("peers", "Registered directory peers.", func(s State) int { return s.Peers }),
		gauge("pending_matches", "Unresolved find_peer requests.", func(s State) int { return s.PendingMatches }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	m.events.WithLabelValues(name).Add(float64(delta))
}

// SetStateFunc installs the source for the occupancy gauges.
func (m *Metrics) SetStateFunc(fn func() State) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = fn
	m.mu.Unlock()
}

// State returns the current occupancy, or the zero State before SetStateFunc.
func (m *Metrics) State() State {
	if m == nil {
		return State{}
	}
	m.mu.RLock()
	fn := m.state
	m.mu.RUnlock()
	if fn == nil {
		return State{}
	}
	return fn()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

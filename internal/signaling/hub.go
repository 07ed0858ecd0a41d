package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/password"
	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/ratelimit"
)

const (
	DefaultPendingMatchTTL = 5 * time.Minute

	defaultAlias = "Cloaker"
)

type HubConfig struct {
	// Hasher defaults to bcrypt at password.DefaultCost.
	Hasher  password.Hasher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Clock   ratelimit.Clock

	PendingMatchTTL time.Duration
}

// Hub owns every piece of shared relay state: open connections, rooms, the
// peer directory and pending matches. All of it is guarded by mu, which is
// never held across a send or a password hash.
type Hub struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	hasher   password.Hasher
	clock    ratelimit.Clock
	matchTTL time.Duration

	mu      sync.Mutex
	conns   map[string]*Conn
	rooms   map[string]*room
	peers   map[string]*Conn
	pending map[string]*pendingMatch
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Hasher == nil {
		cfg.Hasher = password.NewBcrypt(password.DefaultCost)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.RealClock{}
	}
	if cfg.PendingMatchTTL <= 0 {
		cfg.PendingMatchTTL = DefaultPendingMatchTTL
	}

	h := &Hub{
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		hasher:   cfg.Hasher,
		clock:    cfg.Clock,
		matchTTL: cfg.PendingMatchTTL,
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]*room),
		peers:    make(map[string]*Conn),
		pending:  make(map[string]*pendingMatch),
	}
	h.metrics.SetStateFunc(h.Stats)
	return h
}

// Register makes c visible to the liveness sweep and shutdown.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.metrics.Inc(metrics.ConnectionOpened)
}

// Unregister purges c from every room, directory entry and pending match it
// participates in. Only the first call for a given connection has effect.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	c.closed = true
	delete(h.conns, c.id)

	out := h.leaveRoomLocked(c)
	if c.peerID != "" && h.peers[c.peerID] == c {
		delete(h.peers, c.peerID)
	}
	for _, p := range h.pending {
		if p.requester == c {
			h.deletePendingLocked(p)
		}
	}
	h.mu.Unlock()

	h.deliver(out)
	h.metrics.Inc(metrics.ConnectionClosed)
}

// HandleMessage routes one inbound frame. ctx bounds any password work and
// should be cancelled when the connection closes.
func (h *Hub) HandleMessage(ctx context.Context, c *Conn, data []byte) {
	msg, ok := parseInbound(data)
	if !ok {
		h.metrics.Inc(metrics.MalformedDropped)
		return
	}

	switch msg.str(fieldAppType) {
	case appTypeCloak, appTypeCloaker:
		switch msg.str(fieldType) {
		case typeJoin:
			h.join(ctx, c, msg.str(fieldRoom), msg.str(fieldPassword), msg.str(fieldAlias))
		case typeSignal:
			h.signal(c, msg)
		}
	case appTypeMessenger:
		switch msg.str(fieldType) {
		case typeRegister:
			h.register(c, msg.str(fieldPeerID))
		case typeFindPeer:
			h.findPeer(c, msg.str(fieldTargetPeerID))
		case typeOffer, typeAnswer, typeCandidate:
			h.forward(c, msg)
		}
	}
}

// CloseAll sends a close frame to every open connection.
func (h *Hub) CloseAll(code int, reason string) {
	for _, c := range h.snapshotConns() {
		c.transport.Close(code, reason)
	}
}

func (h *Hub) Stats() metrics.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return metrics.State{
		Connections:    len(h.conns),
		Rooms:          len(h.rooms),
		Peers:          len(h.peers),
		PendingMatches: len(h.pending),
	}
}

func (h *Hub) snapshotConns() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

// delivery is one outbound message, collected under mu and sent after it is
// released.
type delivery struct {
	to   *Conn
	data []byte
}

func (h *Hub) encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode_failed", "err", err)
		return nil
	}
	return b
}

// deliver sends each message best-effort. A failed recipient is skipped.
func (h *Hub) deliver(out []delivery) {
	for _, d := range out {
		if d.data == nil {
			continue
		}
		if err := d.to.transport.Send(d.data); err != nil {
			h.metrics.Inc(metrics.SendFailed)
			h.log.Debug("send_failed", "conn_id", d.to.id, "err", err)
		}
	}
}

// fanOut addresses the same payload to every recipient.
func fanOut(data []byte, to []*Conn) []delivery {
	out := make([]delivery, 0, len(to))
	for _, c := range to {
		out = append(out, delivery{to: c, data: data})
	}
	return out
}

package signaling

import (
	"sync/atomic"
	"time"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/ratelimit"
)

// Transport is the send side of one client connection. Implementations must
// be safe for concurrent use.
type Transport interface {
	// Send delivers one text message.
	Send(data []byte) error
	// Ping sends a liveness probe; the reply is reported via Conn.MarkAlive.
	Ping() error
	// Close sends a close frame with code and reason, then closes.
	Close(code int, reason string)
	// Terminate drops the underlying connection without a close frame.
	Terminate()
}

// Conn is one admitted client. Rooms, the directory and pending matches hold
// *Conn back-references; only the transport layer owns its lifetime.
type Conn struct {
	id        string
	addr      string
	transport Transport
	limiter   *ratelimit.Window
	openedAt  time.Time

	alive atomic.Bool

	// Guarded by Hub.mu.
	roomID string
	alias  string
	peerID string
	closed bool
}

func NewConn(id, addr string, t Transport, limiter *ratelimit.Window) *Conn {
	c := &Conn{
		id:        id,
		addr:      addr,
		transport: t,
		limiter:   limiter,
		openedAt:  time.Now(),
	}
	c.alive.Store(true)
	return c
}

// Allow charges one inbound frame against the connection's rate window.
func (c *Conn) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// MarkAlive records a liveness reply.
func (c *Conn) MarkAlive() { c.alive.Store(true) }

func (c *Conn) Alive() bool { return c.alive.Load() }

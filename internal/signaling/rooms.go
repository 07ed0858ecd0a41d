package signaling

import (
	"context"
	"errors"
	"time"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/metrics"
)

// room is a named rendezvous group. A room whose ready channel is still open
// is a reservation: its creator is hashing the password and no one else may
// join until the digest is set (or the reservation is dropped).
type room struct {
	id        string
	digest    []byte // nil for open rooms; immutable once ready
	members   map[string]*Conn
	createdAt time.Time
	ready     chan struct{}
}

func (r *room) isReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

func (h *Hub) join(ctx context.Context, c *Conn, roomID, secret, alias string) {
	if roomID == "" {
		return
	}
	if alias == "" {
		alias = defaultAlias
	}

	for {
		h.mu.Lock()
		if c.closed {
			h.mu.Unlock()
			return
		}

		r, ok := h.rooms[roomID]
		if !ok {
			r = &room{
				id:        roomID,
				members:   make(map[string]*Conn),
				createdAt: h.clock.Now(),
				ready:     make(chan struct{}),
			}
			h.rooms[roomID] = r
			if secret != "" {
				h.mu.Unlock()
				h.createProtected(ctx, c, r, secret, alias)
				return
			}
			close(r.ready)
			h.roomCreatedLocked(r)
			out := h.admitLocked(r, c, alias)
			h.mu.Unlock()
			h.deliver(out)
			return
		}

		if !r.isReady() {
			h.mu.Unlock()
			select {
			case <-r.ready:
				continue
			case <-ctx.Done():
				return
			}
		}

		if r.digest == nil {
			out := h.admitLocked(r, c, alias)
			h.mu.Unlock()
			h.deliver(out)
			return
		}

		digest := r.digest
		h.mu.Unlock()

		if secret == "" {
			h.rejectJoin(c, roomID, ErrPasswordRequired)
			return
		}
		ok, err := h.hasher.Verify(ctx, secret, digest)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.log.Error("password_verify_failed", "conn_id", c.id, "room", roomID, "err", err)
			}
			return
		}
		if !ok {
			h.rejectJoin(c, roomID, ErrWrongPassword)
			return
		}

		h.mu.Lock()
		if c.closed {
			h.mu.Unlock()
			return
		}
		if h.rooms[roomID] != r {
			// Emptied and possibly recreated while verifying; start over
			// against whatever is there now.
			h.mu.Unlock()
			continue
		}
		out := h.admitLocked(r, c, alias)
		h.mu.Unlock()
		h.deliver(out)
		return
	}
}

// createProtected finishes creating a reserved room by hashing its password.
// On failure, or if the creator disconnects meanwhile, the reservation is
// dropped and waiters retry as first-creation.
func (h *Hub) createProtected(ctx context.Context, c *Conn, r *room, secret, alias string) {
	digest, err := h.hasher.Hash(ctx, secret)

	h.mu.Lock()
	if err != nil || c.closed {
		if h.rooms[r.id] == r {
			delete(h.rooms, r.id)
		}
		close(r.ready)
		h.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			h.log.Error("password_hash_failed", "conn_id", c.id, "room", r.id, "err", err)
		}
		return
	}

	r.digest = digest
	close(r.ready)
	h.roomCreatedLocked(r)
	out := h.admitLocked(r, c, alias)
	h.mu.Unlock()
	h.deliver(out)
}

func (h *Hub) roomCreatedLocked(r *room) {
	h.metrics.Inc(metrics.RoomCreated)
	h.log.Debug("room_created", "room", r.id, "protected", r.digest != nil)
}

// admitLocked adds c to r, leaving any other room first. The caller gets the
// peers present before it; those peers are told about c. Re-joining the same
// room only refreshes the alias and repeats the joined reply.
func (h *Hub) admitLocked(r *room, c *Conn, alias string) []delivery {
	var out []delivery
	if c.roomID != "" && c.roomID != r.id {
		out = h.leaveRoomLocked(c)
	}

	_, rejoin := r.members[c.id]
	peers := make([]peerInfo, 0, len(r.members))
	existing := make([]*Conn, 0, len(r.members))
	for id, m := range r.members {
		if id == c.id {
			continue
		}
		peers = append(peers, peerInfo{ID: m.id, Alias: m.alias})
		existing = append(existing, m)
	}

	r.members[c.id] = c
	c.roomID = r.id
	c.alias = alias

	out = append(out, delivery{to: c, data: h.encode(joinedMessage{
		Type:   typeJoined,
		Room:   r.id,
		YourID: c.id,
		Peers:  peers,
	})})
	if !rejoin {
		h.metrics.Inc(metrics.RoomJoined)
		out = append(out, fanOut(h.encode(peerJoinedMessage{
			Type:   typePeerJoined,
			PeerID: c.id,
			Alias:  alias,
		}), existing)...)
	}
	return out
}

// leaveRoomLocked removes c from its room, deleting the room if it empties.
func (h *Hub) leaveRoomLocked(c *Conn) []delivery {
	if c.roomID == "" {
		return nil
	}
	r, ok := h.rooms[c.roomID]
	c.roomID = ""
	if !ok {
		return nil
	}
	if _, member := r.members[c.id]; !member {
		return nil
	}
	delete(r.members, c.id)

	if len(r.members) == 0 {
		delete(h.rooms, r.id)
		h.metrics.Inc(metrics.RoomDeleted)
		h.log.Debug("room_deleted", "room", r.id, "age", h.clock.Now().Sub(r.createdAt))
		return nil
	}

	remaining := make([]*Conn, 0, len(r.members))
	for _, m := range r.members {
		remaining = append(remaining, m)
	}
	return fanOut(h.encode(peerLeftMessage{Type: typePeerLeft, PeerID: c.id}), remaining)
}

func (h *Hub) rejectJoin(c *Conn, roomID string, err error) {
	h.metrics.Inc(metrics.JoinRejected)
	h.log.Debug("join_rejected", "conn_id", c.id, "room", roomID, "err", err)
	h.deliver([]delivery{{to: c, data: h.encode(errorMessage{
		Type:    typeError,
		Message: clientMessage(err),
	})}})
}

// signal relays an arbitrary room payload to the other members, or only to
// targetPeerId when set.
func (h *Hub) signal(c *Conn, msg inbound) {
	target := msg.str(fieldTargetPeerID)

	h.mu.Lock()
	r, ok := h.rooms[c.roomID]
	if c.roomID == "" || !ok {
		h.mu.Unlock()
		return
	}
	recipients := make([]*Conn, 0, len(r.members))
	for id, m := range r.members {
		if id == c.id || (target != "" && id != target) {
			continue
		}
		recipients = append(recipients, m)
	}
	h.mu.Unlock()

	if len(recipients) == 0 {
		h.metrics.Inc(metrics.MessageDropped)
		return
	}
	data, err := msg.withSender(c.id)
	if err != nil {
		h.log.Debug("relay_encode_failed", "conn_id", c.id, "err", err)
		return
	}
	h.deliver(fanOut(data, recipients))
	h.metrics.Add(metrics.MessageRelayed, uint64(len(recipients)))
}

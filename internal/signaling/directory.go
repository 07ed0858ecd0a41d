package signaling

import (
	"time"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/metrics"
)

// pendingMatch is a find_peer request waiting for its target to register.
type pendingMatch struct {
	target    string
	requester *Conn
	createdAt time.Time
	timer     *time.Timer
}

// register binds peerID to c, replacing any previous binding, and resolves a
// pending match for peerID if one is still fresh.
func (h *Hub) register(c *Conn, peerID string) {
	if peerID == "" {
		return
	}

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	if c.peerID != "" && c.peerID != peerID && h.peers[c.peerID] == c {
		delete(h.peers, c.peerID)
	}
	if prev := h.peers[peerID]; prev != nil && prev != c {
		h.log.Debug("peer_replaced", "peer_id", peerID, "conn_id", c.id, "prev_conn_id", prev.id)
	}
	h.peers[peerID] = c
	c.peerID = peerID
	h.metrics.Inc(metrics.PeerRegistered)

	out := []delivery{{to: c, data: h.encode(registeredMessage{Type: typeRegistered, PeerID: peerID})}}

	if p, ok := h.pending[peerID]; ok {
		h.deletePendingLocked(p)
		switch {
		case h.clock.Now().Sub(p.createdAt) >= h.matchTTL:
			h.metrics.Inc(metrics.PendingExpired)
			h.log.Debug("pending_match_expired", "peer_id", peerID, "requester", p.requester.id)
		case p.requester.closed:
		default:
			h.metrics.Inc(metrics.PendingResolved)
			out = append(out,
				delivery{to: p.requester, data: h.encode(peerFoundMessage{Type: typePeerFound, PeerID: peerID})},
				delivery{to: c, data: h.encode(peerFoundMessage{Type: typePeerFound, PeerID: p.requester.peerID})},
			)
		}
	}
	h.mu.Unlock()

	h.deliver(out)
}

// findPeer answers immediately when target is registered, otherwise records
// a pending match that replaces any earlier one for the same target.
func (h *Hub) findPeer(c *Conn, target string) {
	if target == "" {
		return
	}

	h.mu.Lock()
	if c.closed {
		h.mu.Unlock()
		return
	}
	if peer, ok := h.peers[target]; ok && !peer.closed {
		h.mu.Unlock()
		h.deliver([]delivery{{to: c, data: h.encode(peerFoundMessage{Type: typePeerFound, PeerID: target})}})
		return
	}

	if old, ok := h.pending[target]; ok {
		h.deletePendingLocked(old)
	}
	p := &pendingMatch{
		target:    target,
		requester: c,
		createdAt: h.clock.Now(),
	}
	p.timer = time.AfterFunc(h.matchTTL, func() { h.expirePending(p) })
	h.pending[target] = p
	h.mu.Unlock()

	h.metrics.Inc(metrics.PendingCreated)
}

func (h *Hub) expirePending(p *pendingMatch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending[p.target] != p {
		return
	}
	delete(h.pending, p.target)
	h.metrics.Inc(metrics.PendingExpired)
	h.log.Debug("pending_match_expired", "peer_id", p.target, "requester", p.requester.id)
}

// deletePendingLocked removes p if it is still the live entry for its target.
func (h *Hub) deletePendingLocked(p *pendingMatch) {
	if h.pending[p.target] == p {
		delete(h.pending, p.target)
	}
	if p.timer != nil {
		p.timer.Stop()
	}
}

// forward delivers an offer/answer/candidate to the registered owner of
// targetPeerId, stamped with the sender's own peer id. Misses are silent.
func (h *Hub) forward(c *Conn, msg inbound) {
	target := msg.str(fieldTargetPeerID)

	h.mu.Lock()
	dst, ok := h.peers[target]
	ok = ok && !dst.closed
	sender := c.peerID
	h.mu.Unlock()

	if target == "" || !ok {
		h.metrics.Inc(metrics.MessageDropped)
		return
	}

	data, err := msg.withSender(sender)
	if err != nil {
		h.log.Debug("relay_encode_failed", "conn_id", c.id, "err", err)
		return
	}
	h.deliver([]delivery{{to: dst, data: data}})
	h.metrics.Inc(metrics.MessageRelayed)
}

package signaling

import (
	"context"
	"time"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/metrics"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Sweep terminates every connection that has not answered the previous probe
// and probes the rest.
func (h *Hub) Sweep() {
	for _, c := range h.snapshotConns() {
		if !c.alive.Swap(false) {
			h.metrics.Inc(metrics.LivenessTerminated)
			h.log.Info("liveness_terminated", "conn_id", c.id, "remote_addr", c.addr)
			c.transport.Terminate()
			continue
		}
		if err := c.transport.Ping(); err != nil {
			h.log.Debug("ping_failed", "conn_id", c.id, "err", err)
		}
	}
}

// RunLiveness sweeps every interval until ctx is done.
func (h *Hub) RunLiveness(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Sweep()
		}
	}
}

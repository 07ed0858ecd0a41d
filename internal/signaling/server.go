package signaling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/password"
	"github.com/wilsonzlin/aero/proxy/signal-relay/internal/ratelimit"
)

const (
	DefaultMaxConnectionsPerAddress = 20
	DefaultMaxMessageBytes          = int64(64 * 1024)
	DefaultMaxMessagesPerSecond     = 50

	wsWriteWait = 1 * time.Second
)

// Config holds the relay's collaborators. Zero limits fall back to the
// package defaults; tests shorten them.
type Config struct {
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Hasher         password.Hasher
	Clock          ratelimit.Clock
	AllowedOrigins []string

	MaxConnectionsPerAddress int
	MaxMessageBytes          int64
	MaxMessagesPerSecond     int
	HeartbeatInterval        time.Duration
	PendingMatchTTL          time.Duration
}

func (c Config) maxConnectionsPerAddress() int {
	if c.MaxConnectionsPerAddress <= 0 {
		return DefaultMaxConnectionsPerAddress
	}
	return c.MaxConnectionsPerAddress
}

func (c Config) maxMessageBytes() int64 {
	if c.MaxMessageBytes <= 0 {
		return DefaultMaxMessageBytes
	}
	return c.MaxMessageBytes
}

func (c Config) maxMessagesPerSecond() int {
	if c.MaxMessagesPerSecond <= 0 {
		return DefaultMaxMessagesPerSecond
	}
	return c.MaxMessagesPerSecond
}

func (c Config) heartbeatInterval() time.Duration {
	if c.HeartbeatInterval <= 0 {
		return DefaultHeartbeatInterval
	}
	return c.HeartbeatInterval
}

// Server is the WebSocket front end of a Hub.
type Server struct {
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	hub       *Hub
	admission *ratelimit.AddressCounter
	upgrader  websocket.Upgrader

	// ctx parents every connection context; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.RealClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		hub: NewHub(HubConfig{
			Hasher:          cfg.Hasher,
			Metrics:         cfg.Metrics,
			Logger:          cfg.Logger,
			Clock:           cfg.Clock,
			PendingMatchTTL: cfg.PendingMatchTTL,
		}),
		admission: ratelimit.NewAddressCounter(cfg.maxConnectionsPerAddress()),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return origin.Allowed(r.Header.Get("Origin"), cfg.AllowedOrigins)
		},
	}
	return s
}

func (s *Server) Stats() metrics.State { return s.hub.Stats() }

// RegisterRoutes serves the relay at the server root and at /signal.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /{$}", s)
	mux.Handle("GET /signal", s)
}

// Run drives the heartbeat sweep until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.hub.RunLiveness(ctx, s.cfg.heartbeatInterval())
}

// Close sends 1001 (going away) to every connection and abandons any
// in-flight password work.
func (s *Server) Close() {
	s.cancel()
	s.hub.CloseAll(websocket.CloseGoingAway, "server shutting down")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := remoteHost(r)
	release, ok := s.admission.Acquire(addr)
	defer release()
	if !ok {
		s.metrics.Inc(metrics.AdmissionRejected)
		s.log.Debug("admission_rejected", "remote_addr", addr, "open", s.admission.Count(addr)-1)
		abort(w)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws_upgrade_failed", "remote_addr", addr, "err", err)
		return
	}
	maxBytes := s.cfg.maxMessageBytes()
	// Hard backstop only; the exact limit is enforced per message below so
	// an oversized frame can be drained and answered with 1009.
	ws.SetReadLimit(2 * maxBytes)

	t := &wsTransport{conn: ws}
	defer t.Terminate()

	c := NewConn(uuid.NewString(), addr, t, ratelimit.NewWindow(s.cfg.Clock, s.cfg.maxMessagesPerSecond(), time.Second))
	ws.SetPongHandler(func(string) error {
		c.MarkAlive()
		return nil
	})

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.hub.Register(c)
	defer s.hub.Unregister(c)

	s.log.Debug("ws_connected", "conn_id", c.id, "remote_addr", addr)
	defer func() {
		s.log.Debug("ws_disconnected", "conn_id", c.id, "remote_addr", addr, "duration", time.Since(c.openedAt))
	}()

	for {
		_, reader, err := ws.NextReader()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.metrics.Inc(metrics.MessageTooBig)
			}
			return
		}

		data, err := readLimited(reader, maxBytes)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				_, _ = io.Copy(io.Discard, reader)
				s.metrics.Inc(metrics.MessageTooBig)
				s.log.Info("message_too_big", "conn_id", c.id, "remote_addr", addr)
				t.Close(websocket.CloseMessageTooBig, "message too large")
			}
			return
		}

		if !c.Allow() {
			s.metrics.Inc(metrics.RateLimited)
			s.log.Info("rate_limited", "conn_id", c.id, "remote_addr", addr)
			t.Close(websocket.CloseInternalServerErr, "rate limit exceeded")
			return
		}

		s.hub.HandleMessage(ctx, c, data)
	}
}

// abort drops the underlying TCP connection without any HTTP reply.
func abort(w http.ResponseWriter) {
	conn, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	_ = conn.Close()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var errMessageTooLarge = errors.New("message too large")

func readLimited(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errMessageTooLarge
	}
	return b, nil
}

// wsTransport adapts a gorilla connection to Transport. Data writes are
// serialized; control frames use WriteControl, which gorilla allows
// concurrently with other writes.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (t *wsTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (t *wsTransport) Close(code int, reason string) {
	_ = t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
	_ = t.conn.Close()
}

func (t *wsTransport) Terminate() {
	_ = t.conn.Close()
}

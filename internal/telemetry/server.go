// Package telemetry streams read-only simulation snapshots to websocket
// clients (renderers, HUDs, scoring). Snapshots arrive through the
// sim.ReplicationSink push at the end of each tick; nothing here reads live
// simulation state, and nothing flows back into the core.
package telemetry

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nightdrive/internal/sim"
)

const (
	DefaultInterval = 50 * time.Millisecond
	pingInterval    = 2 * time.Second
	writeTimeout    = 5 * time.Second
)

// Server broadcasts the latest pushed snapshot to all connected clients at a
// fixed interval. It implements sim.ReplicationSink.
type Server struct {
	upgrader websocket.Upgrader
	logger   *log.Logger
	interval time.Duration

	snapMu sync.RWMutex
	latest sim.Snapshot
	ready  bool

	mu    sync.Mutex
	conns map[*safeConn]struct{}
}

// safeConn serializes writes: the broadcast loop and the ping loop share the
// connection.
type safeConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *safeConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logger,
		interval: DefaultInterval,
		conns:    make(map[*safeConn]struct{}),
	}
}

// PushSnapshot stores the tick's snapshot for the next broadcast. The
// simulation calls this synchronously at the end of Step, so the snapshot is
// always a complete, detached copy.
func (s *Server) PushSnapshot(snap sim.Snapshot) {
	s.snapMu.Lock()
	s.latest = snap
	s.ready = true
	s.snapMu.Unlock()
}

// Handler upgrades incoming connections and keeps them registered until they
// close. Inbound messages are discarded; the stream is one-way.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Printf("[Telemetry] upgrade failed: %v", err)
			return
		}
		c := &safeConn{ws: ws}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		n := len(s.conns)
		s.mu.Unlock()
		s.logger.Printf("[Telemetry] client connected (%d total)", n)

		go s.pingLoop(c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		s.drop(c)
	})
}

func (s *Server) drop(c *safeConn) {
	s.mu.Lock()
	if _, ok := s.conns[c]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()
	c.ws.Close()
	s.logger.Printf("[Telemetry] client disconnected (%d total)", n)
}

func (s *Server) pingLoop(c *safeConn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for range t.C {
		if err := c.ping(); err != nil {
			s.drop(c)
			return
		}
	}
}

// Run broadcasts the latest pushed snapshot until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.snapMu.RLock()
			snap, ok := s.latest, s.ready
			s.snapMu.RUnlock()
			if !ok {
				continue
			}
			s.broadcast(snapshotFrame(snap))
		}
	}
}

func (s *Server) broadcast(frame Frame) {
	s.mu.Lock()
	conns := make([]*safeConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			s.drop(c)
		}
	}
}

// ListenAndServe serves the websocket endpoint at /stream and runs the
// broadcast loop until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/stream", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Printf("[Telemetry] listening on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

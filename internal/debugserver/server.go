// Package debugserver is the daemon's optional, read-only introspection
// endpoint: a JSON snapshot route plus a throttled WebSocket delta feed.
// Grounded on the teacher's internal/ws package, stripped of every
// authenticated/mutating route (this server is observe-only).
package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyprtagd/hyprtagd/internal/health"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
)

// Server exposes /api/state, /ws and a static status page over HTTP.
type Server struct {
	addr        string
	broadcaster *Broadcaster
	log         *slog.Logger
	httpSrv     *http.Server
}

// New constructs a Server bound to addr once Run is called.
func New(addr string, ms *monitorset.MonitorSet, watcher *health.Watcher, redact bool, throttle time.Duration, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	b := NewBroadcaster(ms, watcher, redact, throttle, log)

	mux := http.NewServeMux()
	s := &Server{addr: addr, broadcaster: b, log: log}
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", staticHandler())

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Broadcaster exposes the server's Broadcaster so the event loop can push
// deltas and health transitions into it.
func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("debug server listening", "addr", s.addr)
		err := s.httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.broadcaster.snapshot()); err != nil {
		s.log.Error("encode state", "err", err)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	c := s.broadcaster.addClient(conn)
	go func() {
		defer s.broadcaster.removeClient(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

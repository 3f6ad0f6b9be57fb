// Package server exposes the progress of a scan run over HTTP: a REST
// snapshot, the records written so far, a websocket stream of per-URL
// events and the API description under /swagger/.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/repscan/internal/logging"
)

const wsWriteTimeout = 10 * time.Second

// Server is the HTTP + WebSocket progress API.
type Server struct {
	cfg      Config
	hub      *Hub
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server reading from hub.
func NewServer(cfg Config, hub *Hub) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("repscan")
	}
	logger = logger.With(logging.Field{Key: "component", Value: "server"})
	if hub == nil {
		hub = NewHub(cfg.SubscriberBuffer)
	}

	s := &Server{
		cfg:    cfg,
		hub:    hub,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			// Read-only progress feed; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

// Hub returns the hub the server reads from.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Get("/records", s.handleRecords)
	r.Get("/ws/progress", s.handleProgressWS)
	mountSwagger(r)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// Start listens on cfg.ListenAddr and serves in the background until
// ctx is cancelled or the returned stop func is called. It returns the
// bound address.
func (s *Server) Start(ctx context.Context) (string, func(), error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return "", nil, err
	}
	srv := s.HTTPServer()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("progress server stopped", logging.Field{Key: "error", Value: err.Error()})
		}
	}()
	s.logger.Info("progress server listening", logging.Field{Key: "addr", Value: ln.Addr().String()})

	stopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stopCtx.Done()
		s.hub.Close()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	stop := func() {
		cancel()
		<-done
	}
	return ln.Addr().String(), stop, nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Snapshot())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	recs := s.hub.Records()
	if verdict := r.URL.Query().Get("verdict"); verdict != "" {
		filtered := recs[:0]
		for _, rec := range recs {
			if string(rec.Verdict) == verdict {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	writeJSON(w, http.StatusOK, recs)
}

// WebSockets

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// Detect client disconnects; the feed is write-only.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(s.hub.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server closing"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket client dropped", logging.Field{Key: "error", Value: err.Error()})
				return
			}
		case <-gone:
			return
		}
	}
}

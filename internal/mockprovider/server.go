// Package mockprovider serves a local imitation of the VirusTotal v3 URL
// and analysis endpoints with scripted outcomes.
package mockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/model"
)

// BasePath is the API prefix; point a provider client at
// "http://host" + BasePath.
const BasePath = "/api/v3"

type analysis struct {
	url   string
	polls int
}

// Server is the mock provider.
type Server struct {
	cfg    Config
	router chi.Router
	logger logging.Logger

	mu        sync.Mutex
	analyses  map[string]*analysis
	submitted map[string]int

	submits atomic.Int64
	lookups atomic.Int64
}

func NewServer(cfg Config, logger logging.Logger) *Server {
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		logger:    logger.With(logging.Field{Key: "component", Value: "mockprovider"}),
		analyses:  make(map[string]*analysis),
		submitted: make(map[string]int),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Route(BasePath, func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.latency)
		r.Post("/urls", s.handleSubmit)
		r.Get("/analyses/{id}", s.handleAnalysis)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Submits returns the number of submission requests received.
func (s *Server) Submits() int { return int(s.submits.Load()) }

// Lookups returns the number of analysis lookups received.
func (s *Server) Lookups() int { return int(s.lookups.Load()) }

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("mock provider listening", logging.Field{Key: "addr", Value: s.cfg.Addr})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-apikey") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "WrongCredentialsError", "Wrong API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Latency > 0 {
			t := time.NewTimer(s.cfg.Latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.submits.Add(1)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "invalid form body")
		return
	}
	target := strings.TrimSpace(r.PostForm.Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "url is required")
		return
	}

	script := s.cfg.Scripts[target]
	if script.Hang {
		<-r.Context().Done()
		return
	}

	s.mu.Lock()
	s.submitted[target]++
	attempt := s.submitted[target]
	s.mu.Unlock()
	if attempt <= script.RejectSubmits {
		writeError(w, http.StatusTooManyRequests, "QuotaExceededError", "quota exceeded")
		return
	}

	id := "u-" + uuid.NewString()
	s.mu.Lock()
	s.analyses[id] = &analysis{url: target}
	s.mu.Unlock()

	s.logger.Info("analysis queued", logging.Field{Key: "url", Value: target}, logging.Field{Key: "analysis_id", Value: id})
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"type": "analysis", "id": id},
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	s.lookups.Add(1)
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	a, ok := s.analyses[id]
	var polls int
	if ok {
		a.polls++
		polls = a.polls
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "NotFoundError", "analysis not found")
		return
	}

	script, scripted := s.cfg.Scripts[a.url]
	if polls <= script.FailLookups {
		writeError(w, http.StatusBadGateway, "TransientError", "backend unavailable")
		return
	}

	// Queued analyses report all-zero stats, like the real service.
	attrs := map[string]any{"status": "queued", "stats": statsJSON(model.AnalysisReport{})}
	if polls-script.FailLookups > s.cfg.PendingPolls {
		stats := DefaultStats
		if scripted {
			stats = script.Stats
		}
		attrs = map[string]any{"status": "completed", "stats": statsJSON(stats)}
		if script.OmitStats {
			delete(attrs, "stats")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"type": "analysis", "id": id, "attributes": attrs},
	})
}

func statsJSON(r model.AnalysisReport) map[string]uint {
	return map[string]uint{
		"malicious":  r.Malicious,
		"suspicious": r.Suspicious,
		"harmless":   r.Harmless,
		"undetected": r.Undetected,
		"timeout":    0,
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

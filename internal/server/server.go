// Package server exposes turns over HTTP: Server-Sent Events on
// POST /api/turns and a WebSocket on GET /api/turns/ws.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
)

// maxBodyBytes bounds a turn request.
const maxBodyBytes = 4 << 20

// Runner runs one turn. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, userID string, req orchestrator.TurnRequest, sink events.Sink) (*events.Result, error)
}

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// Ledger, when set, backs GET /api/credits.
	Ledger credit.Ledger
	Logger *slog.Logger
}

// Server is the HTTP front end for turns.
type Server struct {
	runner   Runner
	auth     Authenticator
	gate     *TurnGate
	ledger   credit.Ledger
	addr     string
	origins  []string
	log      *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// TurnBody is the JSON body of POST /api/turns and the first WebSocket
// message. ProjectID scopes the one-turn-at-a-time rule.
type TurnBody struct {
	orchestrator.TurnRequest
	ProjectID string `json:"projectId"`
}

// New builds a Server.
func New(runner Runner, auth Authenticator, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8787"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		runner:  runner,
		auth:    auth,
		gate:    NewTurnGate(),
		ledger:  opts.Ledger,
		addr:    opts.Addr,
		origins: opts.AllowedOrigins,
		log:     opts.Logger,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Gate exposes the turn gate.
func (s *Server) Gate() *TurnGate { return s.gate }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// No WriteTimeout: turns stream for as long as the stages run.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/turns", s.handleTurnSSE)
		r.Get("/turns/ws", s.handleTurnWS)
		r.Get("/credits", s.handleCredits)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active_turns": s.gate.Active()})
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, "no credit ledger configured")
		return
	}
	user := UserFrom(r.Context())
	bal, err := s.ledger.Balance(r.Context(), user)
	if err != nil {
		s.log.Error("balance lookup failed", "user", user, "err", err)
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "balance": bal})
}

// handleTurnSSE validates the request, claims the project, then streams the
// turn as Server-Sent Events. A client disconnect cancels the turn.
func (s *Server) handleTurnSSE(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	body, err := decodeTurn(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, ok := s.gate.Acquire(gateKey(user, body.ProjectID))
	if !ok {
		writeError(w, http.StatusConflict, "a turn is already running for this project")
		return
	}
	defer release()

	sse := events.NewSSEWriter(w)
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	if _, err := s.runner.Run(r.Context(), user, body.TurnRequest, sse); err != nil {
		s.log.Info("turn ended with error", "user", user, "project", body.ProjectID, "err", err)
	}
}

func decodeTurn(r io.Reader) (TurnBody, error) {
	var body TurnBody
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return TurnBody{}, fmt.Errorf("invalid JSON body: %v", err)
	}
	if err := body.Validate(); err != nil {
		return TurnBody{}, err
	}
	return body, nil
}

func gateKey(user, project string) string {
	if project == "" {
		project = "default"
	}
	return user + "/" + project
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

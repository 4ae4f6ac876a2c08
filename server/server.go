// Package server exposes the problem-state service over HTTP: fact and
// fluent CRUD, the object universe, condition check and apply, and
// cron-scheduled goal watches.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/petal-labs/petalplan/eval"
	"github.com/petal-labs/petalplan/state"
)

// StateBackend is the store surface the service serves. It extends the
// evaluator's store capability with a declared object registry and fact
// listing, both of which the durable SQLite store provides.
type StateBackend interface {
	state.Store
	AddObject(ctx context.Context, name, typ string) error
	Predicates(ctx context.Context) ([]state.Predicate, error)
	Functions(ctx context.Context) ([]state.Function, error)
}

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Backend    StateBackend
	Evaluator  *eval.Evaluator
	Watches    *WatchStore
	Tracer     trace.Tracer
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the PetalPlan HTTP API server.
type Server struct {
	backend    StateBackend
	evaluator  *eval.Evaluator
	watches    *WatchStore
	tracer     trace.Tracer
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = eval.NewEvaluator(eval.Config{Store: cfg.Backend, Logger: logger})
	}
	watches := cfg.Watches
	if watches == nil {
		watches = NewWatchStore()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("petalplan")
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	return &Server{
		backend:    cfg.Backend,
		evaluator:  evaluator,
		watches:    watches,
		tracer:     tracer,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Evaluator returns the evaluator serving check and apply requests.
func (s *Server) Evaluator() *eval.Evaluator {
	return s.evaluator
}

// Watches returns the goal watch store.
func (s *Server) Watches() *WatchStore {
	return s.watches
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /v1/predicates", s.handleListPredicates)
	mux.HandleFunc("POST /v1/predicates", s.handleAddPredicate)
	mux.HandleFunc("POST /v1/predicates/remove", s.handleRemovePredicate)
	mux.HandleFunc("GET /v1/predicates/exists", s.handleExistsPredicate)

	mux.HandleFunc("GET /v1/functions", s.handleGetFunctions)
	mux.HandleFunc("PUT /v1/functions", s.handleUpdateFunction)

	mux.HandleFunc("GET /v1/objects", s.handleListObjects)
	mux.HandleFunc("POST /v1/objects", s.handleAddObject)

	mux.HandleFunc("POST /v1/check", s.handleCheck)
	mux.HandleFunc("POST /v1/apply", s.handleApply)

	mux.HandleFunc("GET /v1/watches", s.handleListWatches)
	mux.HandleFunc("POST /v1/watches", s.handleCreateWatch)
	mux.HandleFunc("GET /v1/watches/{id}", s.handleGetWatch)
	mux.HandleFunc("DELETE /v1/watches/{id}", s.handleDeleteWatch)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}

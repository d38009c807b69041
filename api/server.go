// Package api serves the harvester over HTTP: manual collection runs, run
// reports, targets, stored content and runtime settings.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/storage"
	"github.com/pevans/newsharvest/target"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server represents the HTTP API server.
type Server struct {
	service  *harvest.Service
	store    storage.Backend
	targets  *target.TargetStore
	settings *config.SettingsStore
	// fileTargets come from the configuration file and are read-only here.
	fileTargets []target.Target
	logger      zerolog.Logger
}

// Deps are the collaborators of a Server.
type Deps struct {
	Service     *harvest.Service
	Store       storage.Backend
	Targets     *target.TargetStore
	Settings    *config.SettingsStore
	FileTargets []target.Target
	Logger      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(d Deps) *Server {
	return &Server{
		service:     d.Service,
		store:       d.Store,
		targets:     d.Targets,
		settings:    d.Settings,
		fileTargets: d.FileTargets,
		logger:      d.Logger,
	}
}

// Router configures the chi router with all API routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(cors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.HandleStartRun)
		r.Get("/runs/latest", s.HandleLatestRun)
		r.Get("/runs/status", s.HandleRunStatus)

		r.Get("/targets", s.HandleListTargets)
		r.Post("/targets", s.HandleCreateTarget)
		r.Get("/targets/{name}", s.HandleGetTarget)
		r.Put("/targets/{name}", s.HandleUpdateTarget)
		r.Delete("/targets/{name}", s.HandleDeleteTarget)

		r.Get("/contents", s.HandleListContents)
		r.Get("/contents/{id}", s.HandleGetContent)

		r.Get("/settings", s.HandleGetSettings)
		r.Put("/settings", s.HandleUpdateSettings)
	})

	return r
}

// Handler is the router wrapped with OpenTelemetry instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.Router(), "newsharvest-api")
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

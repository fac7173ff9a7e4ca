// Package api exposes the daemon's HTTP surface: job submission and polling,
// synchronous single-clip cutting, credential upload, and health.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Router wires HTTP routes to the pipeline.
type Router struct {
	*mux.Router
	processor Processor
	clips     ClipCutter
	creds     CredentialSaver
	health    HealthReporter
	logger    *slog.Logger
}

// NewRouter builds the HTTP router.
func NewRouter(processor Processor, clips ClipCutter, creds CredentialSaver, health HealthReporter, logger *slog.Logger) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		processor: processor,
		clips:     clips,
		creds:     creds,
		health:    health,
		logger:    logging.WithComponent(logger, "api"),
	}

	apiRoutes := r.Router.PathPrefix("/api").Subrouter()
	apiRoutes.HandleFunc("/jobs", r.submitJob).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/jobs/{id}", r.getJob).Methods(http.MethodGet)
	apiRoutes.HandleFunc("/clip", r.cutClip).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/credentials", r.uploadCredentials).Methods(http.MethodPost)
	apiRoutes.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	return r
}

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps the error taxonomy onto HTTP status codes and emits a JSON
// error body.
func (r *Router) writeError(w http.ResponseWriter, err error) {
	kind := services.Classify(err)
	status := http.StatusInternalServerError
	switch kind {
	case "input_error":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "rate_limit_exceeded":
		status = http.StatusTooManyRequests
	case "timeout":
		status = http.StatusGatewayTimeout
	case "acquisition_failure", "retrieval_failure":
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", logging.String("kind", kind), logging.Error(err))
	}
	r.writeJSON(w, status, errorPayload{Error: err.Error(), Kind: kind})
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		r.logger.Warn("response encoding failed", logging.Error(err))
	}
}

package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/config"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
)

// healthCheckTimeout bounds the graph store probe.
const healthCheckTimeout = 3 * time.Second

// ConnectivityChecker probes a backing store. *graph.Client implements it.
type ConnectivityChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports service and graph store health.
type HealthResponse struct {
	Status string `json:"status"`
	Graph  string `json:"graph"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	graph  ConnectivityChecker
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil checker reports the
// graph as unchecked.
func NewHealthHandler(cfg *config.Config, graph ConnectivityChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, graph: graph, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Returns 503 when the graph store cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", Graph: "unchecked"}
	status := http.StatusOK

	if h.graph != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.graph.VerifyConnectivity(ctx); err != nil {
			h.logger.Warn("Graph store health check failed", zap.String("error", logging.SanitizeError(err)))
			response = HealthResponse{Status: "degraded", Graph: "unavailable", Error: logging.SanitizeError(err)}
			status = http.StatusServiceUnavailable
		} else {
			response.Graph = "ok"
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "grantgraph",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

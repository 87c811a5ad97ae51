package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/config"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	SessionStore string `json:"session_store"`
	Error        string `json:"error,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Service      string `json:"service"`
	GoVersion    string `json:"go_version"`
	Hostname     string `json:"hostname"`
	Environment  string `json:"environment"`
	APIBaseURL   string `json:"api_base_url"`
	SessionStore string `json:"session_store"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg       *config.Config
	storeName string
	store     Pinger
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. store may be nil when the
// session store has nothing to ping (in-memory).
func NewHealthHandler(cfg *config.Config, storeName string, store Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, storeName: storeName, store: store, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Reports 503 when the session store cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok", SessionStore: h.storeName}
	status := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			response.Status = "unavailable"
			response.Error = "session store unreachable"
			status = http.StatusServiceUnavailable
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
		if err := ErrorResponse(w, http.StatusInternalServerError, "hostname_unavailable", "Failed to get hostname"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := PingResponse{
		Status:       "ok",
		Version:      h.cfg.Version,
		Service:      "ekaya-admin",
		GoVersion:    runtime.Version(),
		Hostname:     hostname,
		Environment:  h.cfg.Env,
		APIBaseURL:   h.cfg.API.BaseURL,
		SessionStore: h.storeName,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

package health

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	httputil "servicehub/pkg/http"
	"servicehub/pkg/logger"
)

const checkTimeout = 2 * time.Second

type Response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

// Pinger is satisfied by thin adapters over the mongo and redis clients.
type Pinger func(ctx context.Context) error

type Handler struct {
	database Pinger
	cache    Pinger
	log      *logger.Logger
}

// NewHandler builds the liveness and readiness endpoints. A nil cache pinger means the service
// runs without Redis and readiness reports the cache as "disabled".
func NewHandler(database, cache Pinger, log *logger.Logger) *Handler {
	return &Handler{
		database: database,
		cache:    cache,
		log:      log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, Response{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := Response{Status: "ready", Database: "ok", Cache: "disabled"}
	status := http.StatusOK

	if err := h.database(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		resp.Status = "unavailable"
		resp.Database = "error"
		status = http.StatusServiceUnavailable
	}

	// Redis is optional: a failing cache degrades performance, not readiness.
	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache(ctx); err != nil {
			h.log.Warn("Cache health check failed", "error", err)
			resp.Cache = "error"
		}
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

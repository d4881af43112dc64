package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Pinger reports whether an optional dependency is reachable.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	// Redis is nil when rate limiting is not configured.
	Redis Pinger
}

func NewHealthHandler(redis Pinger) *HealthHandler {
	return &HealthHandler{Redis: redis}
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.GetHealth)
}

type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
}

// GetHealth always answers 200 while the process can issue tokens. Redis only
// backs the rate limiter, which fails open, so its state is informational.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	if h.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Redis(ctx); err != nil {
			resp.Redis = "down"
		} else {
			resp.Redis = "up"
		}
	}

	writeJSON(zap.L(), w, http.StatusOK, resp)
}

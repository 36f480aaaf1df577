package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/services"
)

// MaintenanceService is the interface that wraps the housekeeping jobs.
type MaintenanceService interface {
	// Method ExpirePayments fails pending payments older than their expiry window and returns how many were changed.
	ExpirePayments(ctx context.Context) (int64, error)
	// Method CleanTokens deletes refresh tokens older than the refresh token lifetime and returns how many were removed.
	CleanTokens(ctx context.Context) (int64, error)
	// Method Sweep runs every housekeeping job.
	Sweep(ctx context.Context) (*services.SweepResult, error)
}

// MaintenanceHandler exposes housekeeping jobs to external schedulers
type MaintenanceHandler struct {
	BaseHandler
	maintenanceService MaintenanceService
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(maintenanceService MaintenanceService, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		BaseHandler:        BaseHandler{Logger: logger},
		maintenanceService: maintenanceService,
	}
}

// RegisterRoutes registers maintenance routes
// Note: This assumes the router is already guarded by the API key middleware
func (h *MaintenanceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/maintenance", func(r chi.Router) {
		r.Post("/sweep", h.Sweep)
		r.Post("/payments/expire", h.ExpirePayments)
		r.Post("/tokens/clean", h.CleanTokens)
	})
}

// Sweep handles POST /maintenance/sweep
// @Summary Run housekeeping
// @Description Expire stale payments and delete expired refresh tokens
// @Tags maintenance
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} services.SweepResult
// @Failure 401 {object} map[string]string "Invalid API key"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /maintenance/sweep [post]
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.maintenanceService.Sweep(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "run sweep")
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// ExpirePayments handles POST /maintenance/payments/expire
// @Summary Expire stale payments
// @Tags maintenance
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]int64 "Number of expired payments"
// @Failure 401 {object} map[string]string "Invalid API key"
// @Router /maintenance/payments/expire [post]
func (h *MaintenanceHandler) ExpirePayments(w http.ResponseWriter, r *http.Request) {
	expired, err := h.maintenanceService.ExpirePayments(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "expire payments")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]int64{"expired": expired})
}

// CleanTokens handles POST /maintenance/tokens/clean
// @Summary Clean expired tokens
// @Description Removes all user tokens with created_at older than refresh token expiry time
// @Tags maintenance
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]int64 "Number of deleted tokens"
// @Failure 401 {object} map[string]string "Invalid API key"
// @Router /maintenance/tokens/clean [post]
func (h *MaintenanceHandler) CleanTokens(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.maintenanceService.CleanTokens(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "clean tokens")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

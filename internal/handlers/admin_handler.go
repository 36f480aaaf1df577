package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
)

// AdminService is the interface that wraps methods for the admin console.
type AdminService interface {
	// Method ListUsers returns a page of users filtered by role and a search on email or username.
	ListUsers(ctx context.Context, filter models.UserFilter) (*models.ListResponse[models.UserListItem], error)
	// Method GetUser returns a user with their enrollments and payments.
	GetUser(ctx context.Context, id int) (*models.UserDetailResponse, error)
	// Method UpdateRole changes the role of a user.
	//
	// "actorID" parameter is the admin making the change. Admins cannot demote themselves (ErrForbidden).
	UpdateRole(ctx context.Context, actorID, userID int, role models.Role) error
	// Method DeleteUser removes a user with their enrollments, payments and progress.
	//
	// Admins cannot delete their own account (ErrForbidden).
	DeleteUser(ctx context.Context, actorID, userID int) error
	// Method ListEnrollments returns a filtered page of enrollments.
	ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) (*models.ListResponse[models.AdminEnrollmentItem], error)
	// Method GrantEnrollment enrolls a user without payment.
	//
	// If the user or course does not exist, ErrNotFound will be returned. An existing enrollment returns ErrAlreadyEnrolled.
	GrantEnrollment(ctx context.Context, req *models.GrantEnrollmentRequest) error
	// Method RevokeEnrollment removes an enrollment and the lesson progress that belongs to it.
	RevokeEnrollment(ctx context.Context, userID, courseID int) error
	// Method GetSettings returns every site setting sorted by key.
	GetSettings(ctx context.Context) ([]models.Setting, error)
	// Method UpdateSettings upserts known settings and returns the full list. Unknown keys are rejected.
	UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) ([]models.Setting, error)
	// Method Dashboard returns platform totals.
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

// AdminHandler handles admin console HTTP requests
type AdminHandler struct {
	BaseHandler
	adminService AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		adminService: adminService,
	}
}

// RegisterRoutes registers admin console routes
// Note: This assumes the router is already scoped to /api/v1/admin and guarded by the admin role
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.Dashboard)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}/role", h.UpdateRole)
		r.Delete("/{id}", h.DeleteUser)
	})
	r.Route("/enrollments", func(r chi.Router) {
		r.Get("/", h.ListEnrollments)
		r.Post("/", h.GrantEnrollment)
		r.Delete("/{userId}/{courseId}", h.RevokeEnrollment)
	})
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.GetSettings)
		r.Put("/", h.UpdateSettings)
	})
}

// Dashboard handles GET /admin/stats
// @Summary Dashboard stats
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.DashboardStats
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /admin/stats [get]
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Dashboard(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "load dashboard")
		return
	}

	h.RespondJSON(w, http.StatusOK, stats)
}

// ListUsers handles GET /admin/users
// @Summary Get list of users
// @Description Get paginated list of users with optional role and search filters
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Param role query int false "Filter by role"
// @Param search query string false "Search in email or username"
// @Success 200 {object} models.ListResponse[models.UserListItem]
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, count := parsePagination(r)

	resp, err := h.adminService.ListUsers(r.Context(), models.UserFilter{
		Search: r.URL.Query().Get("search"),
		Role:   models.Role(queryInt(r, "role")),
		Page:   page,
		Count:  count,
	})
	if err != nil {
		h.HandleServiceError(w, r, err, "list users")
		return
	}

	h.RespondJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /admin/users/{id}
// @Summary Get user
// @Description User with enrollments and payments
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.UserDetailResponse
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/{id} [get]
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.adminService.GetUser(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err, "get user")
		return
	}

	h.RespondJSON(w, http.StatusOK, user)
}

// UpdateRole handles PUT /admin/users/{id}/role
// @Summary Change user role
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Param request body models.UpdateRoleRequest true "New role"
// @Success 200 {object} map[string]string "Role updated"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 403 {object} map[string]string "Cannot demote yourself"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/{id}/role [put]
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserID(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update role")
		return
	}

	if err := h.adminService.UpdateRole(r.Context(), actorID, id, req.Role); err != nil {
		h.HandleServiceError(w, r, err, "update role")
		return
	}

	h.RespondJSON(w, http.StatusOK, map[string]string{"message": "role updated"})
}

// DeleteUser handles DELETE /admin/users/{id}
// @Summary Delete user
// @Description Delete a user with their enrollments, payments and lesson progress
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "User ID"
// @Success 204 "Deleted"
// @Failure 403 {object} map[string]string "Cannot delete yourself"
// @Failure 404 {object} map[string]string "User not found"
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserID(r.Context())
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), actorID, id); err != nil {
		h.HandleServiceError(w, r, err, "delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEnrollments handles GET /admin/enrollments
// @Summary List enrollments
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param userId query int false "User ID"
// @Param courseId query int false "Course ID"
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Success 200 {object} models.ListResponse[models.AdminEnrollmentItem]
// @Router /admin/enrollments [get]
func (h *AdminHandler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	page, count := parsePagination(r)

	resp, err := h.adminService.ListEnrollments(r.Context(), models.EnrollmentFilter{
		UserID:   queryInt(r, "userId"),
		CourseID: queryInt(r, "courseId"),
		Page:     page,
		Count:    count,
	})
	if err != nil {
		h.HandleServiceError(w, r, err, "list enrollments")
		return
	}

	h.RespondJSON(w, http.StatusOK, resp)
}

// GrantEnrollment handles POST /admin/enrollments
// @Summary Grant enrollment
// @Description Enroll a user in a course without payment
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.GrantEnrollmentRequest true "User and course"
// @Success 201 {object} map[string]string "Enrollment granted"
// @Failure 404 {object} map[string]string "User or course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Router /admin/enrollments [post]
func (h *AdminHandler) GrantEnrollment(w http.ResponseWriter, r *http.Request) {
	var req models.GrantEnrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "grant enrollment")
		return
	}

	if err := h.adminService.GrantEnrollment(r.Context(), &req); err != nil {
		h.HandleServiceError(w, r, err, "grant enrollment")
		return
	}

	h.RespondJSON(w, http.StatusCreated, map[string]string{"message": "enrollment granted"})
}

// RevokeEnrollment handles DELETE /admin/enrollments/{userId}/{courseId}
// @Summary Revoke enrollment
// @Tags admin
// @Security ApiKeyAuth
// @Param userId path int true "User ID"
// @Param courseId path int true "Course ID"
// @Success 204 "Revoked"
// @Failure 404 {object} map[string]string "Enrollment not found"
// @Router /admin/enrollments/{userId}/{courseId} [delete]
func (h *AdminHandler) RevokeEnrollment(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	courseID, err := parseIDParam(r, "courseId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.adminService.RevokeEnrollment(r.Context(), userID, courseID); err != nil {
		h.HandleServiceError(w, r, err, "revoke enrollment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /admin/settings
// @Summary Get site settings
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.Setting
// @Router /admin/settings [get]
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.adminService.GetSettings(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err, "get settings")
		return
	}

	h.RespondJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /admin/settings
// @Summary Update site settings
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.UpdateSettingsRequest true "Settings to upsert"
// @Success 200 {array} models.Setting
// @Failure 400 {object} map[string]string "Unknown setting"
// @Router /admin/settings [put]
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update settings")
		return
	}

	settings, err := h.adminService.UpdateSettings(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "update settings")
		return
	}

	h.RespondJSON(w, http.StatusOK, settings)
}

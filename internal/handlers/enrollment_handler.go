package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
)

// EnrollmentService is the interface that wraps methods for a student's enrollments.
type EnrollmentService interface {
	// Method ListMine returns the caller's enrollments with course data and progress.
	ListMine(ctx context.Context, userID int) ([]models.EnrollmentListItem, error)
	// Method Status reports whether the caller is enrolled in a course.
	Status(ctx context.Context, userID, courseID int) (*models.EnrollmentStatusResponse, error)
	// Method SetLessonCompleted marks a lesson complete or incomplete and returns the recomputed progress.
	//
	// If the caller is not enrolled, ErrNotEnrolled will be returned. If the lesson belongs to another course, ErrNotFound will be returned.
	SetLessonCompleted(ctx context.Context, userID, courseID, lessonID int, completed bool) (*models.LessonProgressResponse, error)
	// Method EnrollFree enrolls the caller in a published course priced at zero.
	//
	// Paid courses return ErrPaymentRequired.
	EnrollFree(ctx context.Context, userID, courseID int) (*models.EnrollmentStatusResponse, error)
}

// EnrollmentHandler handles enrollment HTTP requests
type EnrollmentHandler struct {
	BaseHandler
	enrollmentService EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService EnrollmentService, logger *zap.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler:       BaseHandler{Logger: logger},
		enrollmentService: enrollmentService,
	}
}

// RegisterRoutes registers all enrollment routes
// Note: This assumes the router is already scoped to /api/v1
func (h *EnrollmentHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/enrollments", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListMine)
		r.Get("/status/{courseId}", h.Status)
		r.Post("/{courseId}", h.EnrollFree)
		r.Post("/{courseId}/lessons/{lessonId}/complete", h.CompleteLesson)
		r.Delete("/{courseId}/lessons/{lessonId}/complete", h.UncompleteLesson)
	})
}

// ListMine handles GET /enrollments
// @Summary My enrollments
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.EnrollmentListItem
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	items, err := h.enrollmentService.ListMine(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err, "list enrollments")
		return
	}

	h.RespondJSON(w, http.StatusOK, items)
}

// Status handles GET /enrollments/status/{courseId}
// @Summary Enrollment status
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 200 {object} models.EnrollmentStatusResponse
// @Failure 400 {object} map[string]string "Invalid course id"
// @Router /enrollments/status/{courseId} [get]
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	courseID, err := parseIDParam(r, "courseId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.enrollmentService.Status(r.Context(), userID, courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "get enrollment status")
		return
	}

	h.RespondJSON(w, http.StatusOK, status)
}

// EnrollFree handles POST /enrollments/{courseId}
// @Summary Enroll in a free course
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Success 201 {object} models.EnrollmentStatusResponse
// @Failure 402 {object} map[string]string "Course requires payment"
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Already enrolled"
// @Router /enrollments/{courseId} [post]
func (h *EnrollmentHandler) EnrollFree(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	courseID, err := parseIDParam(r, "courseId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.enrollmentService.EnrollFree(r.Context(), userID, courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "enroll in free course")
		return
	}

	h.RespondJSON(w, http.StatusCreated, status)
}

// CompleteLesson handles POST /enrollments/{courseId}/lessons/{lessonId}/complete
// @Summary Mark lesson complete
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Success 200 {object} models.LessonProgressResponse
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /enrollments/{courseId}/lessons/{lessonId}/complete [post]
func (h *EnrollmentHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	h.setLessonCompleted(w, r, true)
}

// UncompleteLesson handles DELETE /enrollments/{courseId}/lessons/{lessonId}/complete
// @Summary Mark lesson incomplete
// @Tags enrollments
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "Course ID"
// @Param lessonId path int true "Lesson ID"
// @Success 200 {object} models.LessonProgressResponse
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /enrollments/{courseId}/lessons/{lessonId}/complete [delete]
func (h *EnrollmentHandler) UncompleteLesson(w http.ResponseWriter, r *http.Request) {
	h.setLessonCompleted(w, r, false)
}

func (h *EnrollmentHandler) setLessonCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	userID, _ := middleware.GetUserID(r.Context())
	courseID, err := parseIDParam(r, "courseId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lessonID, err := parseIDParam(r, "lessonId")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := h.enrollmentService.SetLessonCompleted(r.Context(), userID, courseID, lessonID, completed)
	if err != nil {
		h.HandleServiceError(w, r, err, "update lesson progress")
		return
	}

	h.RespondJSON(w, http.StatusOK, progress)
}

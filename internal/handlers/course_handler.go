package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
)

// CatalogService is the interface that wraps methods for public course browsing.
type CatalogService interface {
	// Method ListCourses returns a page of published courses.
	//
	// "filter" parameter narrows by category, level and a search term. Unpublished courses are never listed.
	ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error)
	// Method GetCourse returns a course with its sub-courses and lessons.
	//
	// "viewer" parameter identifies the caller. Lesson video URLs are only filled for preview lessons,
	// enrolled students and admins. Unpublished courses are visible to admins only.
	GetCourse(ctx context.Context, slug string, viewer services.Viewer) (*models.CourseDetailResponse, error)
}

// CourseHandler handles public catalog HTTP requests
type CourseHandler struct {
	BaseHandler
	catalogService CatalogService
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(catalogService CatalogService, logger *zap.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		catalogService: catalogService,
	}
}

// RegisterRoutes registers all catalog routes
// Note: This assumes the router is already scoped to /api/v1
func (h *CourseHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.With(optionalAuth).Get("/{slug}", h.GetCourse)
	})
}

// ListCourses handles GET /courses
// @Summary List courses
// @Description List published courses
// @Tags courses
// @Produce json
// @Param category query string false "Category"
// @Param level query string false "Level" Enums(beginner, intermediate, advanced)
// @Param search query string false "Search in title and description"
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Success 200 {object} models.ListResponse[models.CourseListItem]
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /courses [get]
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, count := parsePagination(r)
	q := r.URL.Query()

	resp, err := h.catalogService.ListCourses(r.Context(), models.CourseFilter{
		Category: q.Get("category"),
		Level:    models.CourseLevel(q.Get("level")),
		Search:   q.Get("search"),
		Page:     page,
		Count:    count,
	})
	if err != nil {
		h.HandleServiceError(w, r, err, "list courses")
		return
	}

	h.RespondJSON(w, http.StatusOK, resp)
}

// GetCourse handles GET /courses/{slug}
// @Summary Get course
// @Description Course detail with sub-courses and lessons. Video URLs are included for preview lessons or when the caller is enrolled.
// @Tags courses
// @Produce json
// @Param slug path string true "Course slug"
// @Success 200 {object} models.CourseDetailResponse
// @Failure 404 {object} map[string]string "Course not found"
// @Router /courses/{slug} [get]
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalogService.GetCourse(r.Context(), chi.URLParam(r, "slug"), viewerFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, r, err, "get course")
		return
	}

	h.RespondJSON(w, http.StatusOK, detail)
}

// viewerFromContext describes the caller, anonymous when no identity was stored
func viewerFromContext(ctx context.Context) services.Viewer {
	userID, _ := middleware.GetUserID(ctx)
	role, _ := middleware.GetRole(ctx)
	return services.Viewer{UserID: userID, IsAdmin: role >= int(models.RoleAdmin)}
}

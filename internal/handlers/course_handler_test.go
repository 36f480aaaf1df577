package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
)

type mockCatalogService struct {
	err error

	gotFilter models.CourseFilter
	gotSlug   string
	gotViewer services.Viewer
}

func (m *mockCatalogService) ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return &models.ListResponse[models.CourseListItem]{Items: []models.CourseListItem{}, Page: 1, Count: 20}, nil
}

func (m *mockCatalogService) GetCourse(ctx context.Context, slug string, viewer services.Viewer) (*models.CourseDetailResponse, error) {
	m.gotSlug, m.gotViewer = slug, viewer
	if m.err != nil {
		return nil, m.err
	}
	return &models.CourseDetailResponse{Course: models.Course{ID: 5, Slug: slug}}, nil
}

func setupCourseRouter(svc *mockCatalogService) chi.Router {
	handler := NewCourseHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r, middleware.OptionalAuthMiddleware(mockValidator{}))
	})
	return r
}

func TestCourseHandler_ListCourses(t *testing.T) {
	svc := &mockCatalogService{}
	router := setupCourseRouter(svc)

	w := serve(router, newRequest(t, http.MethodGet, "/api/v1/courses?category=programming&level=beginner&search=go&page=2&count=10", nil, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CourseFilter{
		Category: "programming",
		Level:    models.CourseLevel("beginner"),
		Search:   "go",
		Page:     2,
		Count:    10,
	}, svc.gotFilter)
}

func TestCourseHandler_GetCourseViewer(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantViewer services.Viewer
	}{
		{name: "anonymous", wantViewer: services.Viewer{}},
		{name: "invalid token is anonymous", token: "expired", wantViewer: services.Viewer{}},
		{name: "student", token: studentToken, wantViewer: services.Viewer{UserID: studentID}},
		{name: "admin", token: adminToken, wantViewer: services.Viewer{UserID: adminID, IsAdmin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCatalogService{}
			router := setupCourseRouter(svc)

			w := serve(router, newRequest(t, http.MethodGet, "/api/v1/courses/go-basics", nil, tt.token))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "go-basics", svc.gotSlug)
			assert.Equal(t, tt.wantViewer, svc.gotViewer)
		})
	}
}

func TestCourseHandler_GetCourseNotFound(t *testing.T) {
	router := setupCourseRouter(&mockCatalogService{err: models.ErrNotFound})

	w := serve(router, newRequest(t, http.MethodGet, "/api/v1/courses/missing", nil, ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

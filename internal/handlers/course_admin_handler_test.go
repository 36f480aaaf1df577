package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/auth/middleware"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
	"github.com/onlinecourse/backend/internal/storage"
)

type mockCourseAdminService struct {
	err   error
	calls int

	gotID     int
	gotTicket *models.CreateUploadTicketRequest
	gotVideo  *models.AttachVideoRequest
}

func (m *mockCourseAdminService) ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error) {
	m.calls++
	return &models.ListResponse[models.CourseListItem]{}, m.err
}

func (m *mockCourseAdminService) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	m.calls++
	m.gotID = id
	return &models.Course{ID: id}, m.err
}

func (m *mockCourseAdminService) CreateCourse(ctx context.Context, req *models.CreateCourseRequest, thumbnail *services.Upload) (*models.Course, error) {
	m.calls++
	return &models.Course{ID: 1}, m.err
}

func (m *mockCourseAdminService) UpdateCourse(ctx context.Context, id int, req *models.UpdateCourseRequest, thumbnail *services.Upload) (*models.Course, error) {
	m.calls++
	return &models.Course{ID: id}, m.err
}

func (m *mockCourseAdminService) DeleteCourse(ctx context.Context, id int) error {
	m.calls++
	return m.err
}

func (m *mockCourseAdminService) ListSubCourses(ctx context.Context, courseID int) ([]models.SubCourse, error) {
	m.calls++
	return []models.SubCourse{}, m.err
}

func (m *mockCourseAdminService) CreateSubCourse(ctx context.Context, req *models.CreateSubCourseRequest) (*models.SubCourse, error) {
	m.calls++
	return &models.SubCourse{}, m.err
}

func (m *mockCourseAdminService) UpdateSubCourse(ctx context.Context, id int, req *models.UpdateSubCourseRequest) (*models.SubCourse, error) {
	m.calls++
	return &models.SubCourse{}, m.err
}

func (m *mockCourseAdminService) DeleteSubCourse(ctx context.Context, id int) error {
	m.calls++
	return m.err
}

func (m *mockCourseAdminService) ListLessons(ctx context.Context, courseID int) ([]models.Lesson, error) {
	m.calls++
	return []models.Lesson{}, m.err
}

func (m *mockCourseAdminService) CreateLesson(ctx context.Context, req *models.CreateLessonRequest) (*models.Lesson, error) {
	m.calls++
	return &models.Lesson{}, m.err
}

func (m *mockCourseAdminService) UpdateLesson(ctx context.Context, id int, req *models.UpdateLessonRequest) (*models.Lesson, error) {
	m.calls++
	return &models.Lesson{ID: id}, m.err
}

func (m *mockCourseAdminService) DeleteLesson(ctx context.Context, id int) error {
	m.calls++
	return m.err
}

func (m *mockCourseAdminService) CreateUploadTicket(ctx context.Context, req *models.CreateUploadTicketRequest) (*models.UploadTicket, error) {
	m.calls++
	m.gotTicket = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.UploadTicket{VideoID: "vid-1", LibraryID: "42"}, nil
}

func (m *mockCourseAdminService) AttachVideo(ctx context.Context, lessonID int, req *models.AttachVideoRequest) (*models.Lesson, error) {
	m.calls++
	m.gotID, m.gotVideo = lessonID, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Lesson{ID: lessonID, VideoID: req.VideoID}, nil
}

func setupCourseAdminRouter(svc *mockCourseAdminService) chi.Router {
	handler := NewCourseAdminHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RoleMiddleware(mockValidator{}, int(models.RoleAdmin)))
			handler.RegisterRoutes(r)
		})
	})
	return r
}

func TestCourseAdminHandler_CreateUploadTicket(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
	}{
		{name: "ticket issued", body: models.CreateUploadTicketRequest{Title: "Intro"}, wantStatus: http.StatusCreated},
		{name: "missing title", body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "video hosting disabled", body: models.CreateUploadTicketRequest{Title: "Intro"}, err: storage.ErrVideosDisabled, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCourseAdminService{err: tt.err}
			router := setupCourseAdminRouter(svc)

			w := serve(router, newRequest(t, http.MethodPost, "/api/v1/admin/videos/upload-ticket", tt.body, adminToken))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusCreated {
				require.NotNil(t, svc.gotTicket)
				assert.Equal(t, "Intro", svc.gotTicket.Title)
				assert.Contains(t, w.Body.String(), `"videoId":"vid-1"`)
			}
		})
	}
}

func TestCourseAdminHandler_AttachVideo(t *testing.T) {
	t.Run("attaches", func(t *testing.T) {
		svc := &mockCourseAdminService{}
		router := setupCourseAdminRouter(svc)

		w := serve(router, newRequest(t, http.MethodPut, "/api/v1/admin/lessons/12/video", models.AttachVideoRequest{VideoID: "vid-1"}, adminToken))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 12, svc.gotID)
		assert.Equal(t, "vid-1", svc.gotVideo.VideoID)
	})

	t.Run("invalid lesson id", func(t *testing.T) {
		svc := &mockCourseAdminService{}
		router := setupCourseAdminRouter(svc)

		w := serve(router, newRequest(t, http.MethodPut, "/api/v1/admin/lessons/abc/video", models.AttachVideoRequest{VideoID: "vid-1"}, adminToken))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, svc.calls)
	})

	t.Run("unknown lesson", func(t *testing.T) {
		router := setupCourseAdminRouter(&mockCourseAdminService{err: models.ErrNotFound})

		w := serve(router, newRequest(t, http.MethodPut, "/api/v1/admin/lessons/12/video", models.AttachVideoRequest{VideoID: "vid-1"}, adminToken))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

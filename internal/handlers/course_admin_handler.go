package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/services"
)

// CourseAdminService is the interface that wraps methods for course authoring.
type CourseAdminService interface {
	// Method ListCourses returns a page of courses including unpublished ones.
	ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error)
	// Method GetCourse returns a course by id.
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	// Method CreateCourse creates a course. An empty slug is derived from the title.
	//
	// "thumbnail" parameter is an optional image uploaded to image storage.
	// If an explicit slug is taken, ErrSlugTaken will be returned.
	CreateCourse(ctx context.Context, req *models.CreateCourseRequest, thumbnail *services.Upload) (*models.Course, error)
	// Method UpdateCourse applies a partial update and optionally replaces the thumbnail.
	UpdateCourse(ctx context.Context, id int, req *models.UpdateCourseRequest, thumbnail *services.Upload) (*models.Course, error)
	// Method DeleteCourse removes a course with its sub-courses and lessons.
	DeleteCourse(ctx context.Context, id int) error
	// Method ListSubCourses returns the sub-courses of a course ordered by position.
	ListSubCourses(ctx context.Context, courseID int) ([]models.SubCourse, error)
	// Method CreateSubCourse adds a sub-course to an existing course.
	CreateSubCourse(ctx context.Context, req *models.CreateSubCourseRequest) (*models.SubCourse, error)
	// Method UpdateSubCourse renames or moves a sub-course.
	UpdateSubCourse(ctx context.Context, id int, req *models.UpdateSubCourseRequest) (*models.SubCourse, error)
	// Method DeleteSubCourse removes a sub-course. Its lessons stay in the course without a sub-course.
	DeleteSubCourse(ctx context.Context, id int) error
	// Method ListLessons returns every lesson of a course with video data.
	ListLessons(ctx context.Context, courseID int) ([]models.Lesson, error)
	// Method CreateLesson adds a lesson. The sub-course, when given, must belong to the same course.
	CreateLesson(ctx context.Context, req *models.CreateLessonRequest) (*models.Lesson, error)
	// Method UpdateLesson applies a partial update. A sub-course id of 0 detaches the lesson.
	UpdateLesson(ctx context.Context, id int, req *models.UpdateLessonRequest) (*models.Lesson, error)
	// Method DeleteLesson removes a lesson.
	DeleteLesson(ctx context.Context, id int) error
	// Method CreateUploadTicket creates a CDN video object and returns a signed resumable upload ticket for it.
	//
	// If video hosting is not configured, storage.ErrVideosDisabled will be returned.
	CreateUploadTicket(ctx context.Context, req *models.CreateUploadTicketRequest) (*models.UploadTicket, error)
	// Method AttachVideo stores the CDN video id and embed URL on a lesson.
	AttachVideo(ctx context.Context, lessonID int, req *models.AttachVideoRequest) (*models.Lesson, error)
}

// CourseAdminHandler handles course authoring HTTP requests
type CourseAdminHandler struct {
	BaseHandler
	courseService CourseAdminService
}

// NewCourseAdminHandler creates a new course admin handler
func NewCourseAdminHandler(courseService CourseAdminService, logger *zap.Logger) *CourseAdminHandler {
	return &CourseAdminHandler{
		BaseHandler:   BaseHandler{Logger: logger},
		courseService: courseService,
	}
}

// RegisterRoutes registers course authoring routes
// Note: This assumes the router is already scoped to /api/v1/admin and guarded by the admin role
func (h *CourseAdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.Post("/", h.CreateCourse)
		r.Get("/{id}", h.GetCourse)
		r.Patch("/{id}", h.UpdateCourse)
		r.Delete("/{id}", h.DeleteCourse)
		r.Get("/{id}/sub-courses", h.ListSubCourses)
		r.Get("/{id}/lessons", h.ListLessons)
	})
	r.Route("/sub-courses", func(r chi.Router) {
		r.Post("/", h.CreateSubCourse)
		r.Patch("/{id}", h.UpdateSubCourse)
		r.Delete("/{id}", h.DeleteSubCourse)
	})
	r.Route("/lessons", func(r chi.Router) {
		r.Post("/", h.CreateLesson)
		r.Patch("/{id}", h.UpdateLesson)
		r.Delete("/{id}", h.DeleteLesson)
		r.Put("/{id}/video", h.AttachVideo)
	})
	r.Post("/videos/upload-ticket", h.CreateUploadTicket)
}

// ListCourses handles GET /admin/courses
// @Summary List all courses
// @Description List courses including unpublished ones
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param category query string false "Category"
// @Param level query string false "Level" Enums(beginner, intermediate, advanced)
// @Param search query string false "Search in title and description"
// @Param page query int false "Page number" default(1)
// @Param count query int false "Items per page" default(20)
// @Success 200 {object} models.ListResponse[models.CourseListItem]
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Router /admin/courses [get]
func (h *CourseAdminHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, count := parsePagination(r)
	q := r.URL.Query()

	resp, err := h.courseService.ListCourses(r.Context(), models.CourseFilter{
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

// GetCourse handles GET /admin/courses/{id}
// @Summary Get course by id
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 200 {object} models.Course
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/courses/{id} [get]
func (h *CourseAdminHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	course, err := h.courseService.GetCourse(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err, "get course")
		return
	}

	h.RespondJSON(w, http.StatusOK, course)
}

// CreateCourse handles POST /admin/courses
// @Summary Create course
// @Description Send JSON, or multipart/form-data with a JSON "data" field and a "thumbnail" image
// @Tags admin
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateCourseRequest true "Course"
// @Param thumbnail formData file false "Thumbnail image"
// @Success 201 {object} models.Course
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 409 {object} map[string]string "Slug taken"
// @Router /admin/courses [post]
func (h *CourseAdminHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	thumbnail, closer, ok := h.readCourseForm(w, r, &req, "create course")
	if !ok {
		return
	}
	defer closeUpload(closer)

	course, err := h.courseService.CreateCourse(r.Context(), &req, thumbnail)
	if err != nil {
		h.HandleServiceError(w, r, err, "create course")
		return
	}

	h.RespondJSON(w, http.StatusCreated, course)
}

// UpdateCourse handles PATCH /admin/courses/{id}
// @Summary Update course
// @Description Partial update. Send JSON, or multipart/form-data with a JSON "data" field and a "thumbnail" image.
// @Tags admin
// @Accept json,mpfd
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Param request body models.UpdateCourseRequest true "Fields to change"
// @Param thumbnail formData file false "Thumbnail image"
// @Success 200 {object} models.Course
// @Failure 404 {object} map[string]string "Course not found"
// @Failure 409 {object} map[string]string "Slug taken"
// @Router /admin/courses/{id} [patch]
func (h *CourseAdminHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateCourseRequest
	thumbnail, closer, ok := h.readCourseForm(w, r, &req, "update course")
	if !ok {
		return
	}
	defer closeUpload(closer)

	course, err := h.courseService.UpdateCourse(r.Context(), id, &req, thumbnail)
	if err != nil {
		h.HandleServiceError(w, r, err, "update course")
		return
	}

	h.RespondJSON(w, http.StatusOK, course)
}

// readCourseForm decodes a course body sent as JSON or as a multipart form with a thumbnail
func (h *CourseAdminHandler) readCourseForm(w http.ResponseWriter, r *http.Request, dst any, action string) (*services.Upload, io.Closer, bool) {
	if !isMultipart(r) {
		if err := decodeJSON(r, dst); err != nil {
			h.HandleServiceError(w, r, err, action)
			return nil, nil, false
		}
		return nil, nil, true
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.RespondError(w, http.StatusBadRequest, "failed to parse request")
		return nil, nil, false
	}
	if err := formJSON(r, dst); err != nil {
		h.HandleServiceError(w, r, err, action)
		return nil, nil, false
	}
	upload, closer, err := formUpload(r, "thumbnail")
	if err != nil {
		h.HandleServiceError(w, r, err, action)
		return nil, nil, false
	}
	return upload, closer, true
}

// DeleteCourse handles DELETE /admin/courses/{id}
// @Summary Delete course
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/courses/{id} [delete]
func (h *CourseAdminHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.courseService.DeleteCourse(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err, "delete course")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubCourses handles GET /admin/courses/{id}/sub-courses
// @Summary List sub-courses
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 200 {array} models.SubCourse
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/courses/{id}/sub-courses [get]
func (h *CourseAdminHandler) ListSubCourses(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.courseService.ListSubCourses(r.Context(), courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "list sub-courses")
		return
	}

	h.RespondJSON(w, http.StatusOK, items)
}

// CreateSubCourse handles POST /admin/sub-courses
// @Summary Create sub-course
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateSubCourseRequest true "Sub-course"
// @Success 201 {object} models.SubCourse
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/sub-courses [post]
func (h *CourseAdminHandler) CreateSubCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "create sub-course")
		return
	}

	subCourse, err := h.courseService.CreateSubCourse(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "create sub-course")
		return
	}

	h.RespondJSON(w, http.StatusCreated, subCourse)
}

// UpdateSubCourse handles PATCH /admin/sub-courses/{id}
// @Summary Update sub-course
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Sub-course ID"
// @Param request body models.UpdateSubCourseRequest true "Fields to change"
// @Success 200 {object} models.SubCourse
// @Failure 404 {object} map[string]string "Sub-course not found"
// @Router /admin/sub-courses/{id} [patch]
func (h *CourseAdminHandler) UpdateSubCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateSubCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update sub-course")
		return
	}

	subCourse, err := h.courseService.UpdateSubCourse(r.Context(), id, &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "update sub-course")
		return
	}

	h.RespondJSON(w, http.StatusOK, subCourse)
}

// DeleteSubCourse handles DELETE /admin/sub-courses/{id}
// @Summary Delete sub-course
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "Sub-course ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Sub-course not found"
// @Router /admin/sub-courses/{id} [delete]
func (h *CourseAdminHandler) DeleteSubCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.courseService.DeleteSubCourse(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err, "delete sub-course")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListLessons handles GET /admin/courses/{id}/lessons
// @Summary List lessons
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Course ID"
// @Success 200 {array} models.Lesson
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/courses/{id}/lessons [get]
func (h *CourseAdminHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lessons, err := h.courseService.ListLessons(r.Context(), courseID)
	if err != nil {
		h.HandleServiceError(w, r, err, "list lessons")
		return
	}

	h.RespondJSON(w, http.StatusOK, lessons)
}

// CreateLesson handles POST /admin/lessons
// @Summary Create lesson
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateLessonRequest true "Lesson"
// @Success 201 {object} models.Lesson
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /admin/lessons [post]
func (h *CourseAdminHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "create lesson")
		return
	}

	lesson, err := h.courseService.CreateLesson(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "create lesson")
		return
	}

	h.RespondJSON(w, http.StatusCreated, lesson)
}

// UpdateLesson handles PATCH /admin/lessons/{id}
// @Summary Update lesson
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Lesson ID"
// @Param request body models.UpdateLessonRequest true "Fields to change"
// @Success 200 {object} models.Lesson
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /admin/lessons/{id} [patch]
func (h *CourseAdminHandler) UpdateLesson(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "update lesson")
		return
	}

	lesson, err := h.courseService.UpdateLesson(r.Context(), id, &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "update lesson")
		return
	}

	h.RespondJSON(w, http.StatusOK, lesson)
}

// DeleteLesson handles DELETE /admin/lessons/{id}
// @Summary Delete lesson
// @Tags admin
// @Security ApiKeyAuth
// @Param id path int true "Lesson ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /admin/lessons/{id} [delete]
func (h *CourseAdminHandler) DeleteLesson(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.courseService.DeleteLesson(r.Context(), id); err != nil {
		h.HandleServiceError(w, r, err, "delete lesson")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateUploadTicket handles POST /admin/videos/upload-ticket
// @Summary Create video upload ticket
// @Description Create a video in the CDN library and return a signed ticket for a resumable upload from the browser
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateUploadTicketRequest true "Video title"
// @Success 201 {object} models.UploadTicket
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 503 {object} map[string]string "Video hosting not configured"
// @Router /admin/videos/upload-ticket [post]
func (h *CourseAdminHandler) CreateUploadTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUploadTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "create upload ticket")
		return
	}

	ticket, err := h.courseService.CreateUploadTicket(r.Context(), &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "create upload ticket")
		return
	}

	h.RespondJSON(w, http.StatusCreated, ticket)
}

// AttachVideo handles PUT /admin/lessons/{id}/video
// @Summary Attach video to lesson
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Lesson ID"
// @Param request body models.AttachVideoRequest true "Uploaded video"
// @Success 200 {object} models.Lesson
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /admin/lessons/{id}/video [put]
func (h *CourseAdminHandler) AttachVideo(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.AttachVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		h.HandleServiceError(w, r, err, "attach video")
		return
	}

	lesson, err := h.courseService.AttachVideo(r.Context(), id, &req)
	if err != nil {
		h.HandleServiceError(w, r, err, "attach video")
		return
	}

	h.RespondJSON(w, http.StatusOK, lesson)
}

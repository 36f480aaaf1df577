package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/storage"
)

const maxSlugAttempts = 20

// CourseRepository is the interface that wraps methods for courses table data access used by the admin console
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id int) (*models.Course, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id int) error
}

// SubCourseRepository is the interface that wraps methods for sub_courses table data access
type SubCourseRepository interface {
	Create(ctx context.Context, subCourse *models.SubCourse) error
	GetByID(ctx context.Context, id int) (*models.SubCourse, error)
	ListByCourse(ctx context.Context, courseID int) ([]models.SubCourse, error)
	Update(ctx context.Context, subCourse *models.SubCourse) error
	Delete(ctx context.Context, id int) error
}

// LessonRepository is the interface that wraps methods for lessons table data access
type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	GetByID(ctx context.Context, id int) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID int) ([]models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	UpdateVideo(ctx context.Context, id int, videoID, videoURL string) error
	Delete(ctx context.Context, id int) error
}

// VideoHost creates CDN videos and signs resumable upload tickets
type VideoHost interface {
	Enabled() bool
	CreateVideo(ctx context.Context, title string) (string, error)
	NewUploadTicket(videoID string) *storage.UploadTicket
	EmbedURL(videoID string) string
}

// courseAdminService implements course, sub-course and lesson management
type courseAdminService struct {
	courseRepo    CourseRepository
	subCourseRepo SubCourseRepository
	lessonRepo    LessonRepository
	images        ImageUploader
	videos        VideoHost
	logger        *zap.Logger
}

// NewCourseAdminService creates a new course admin service
func NewCourseAdminService(
	courseRepo CourseRepository,
	subCourseRepo SubCourseRepository,
	lessonRepo LessonRepository,
	images ImageUploader,
	videos VideoHost,
	logger *zap.Logger,
) *courseAdminService {
	return &courseAdminService{
		courseRepo:    courseRepo,
		subCourseRepo: subCourseRepo,
		lessonRepo:    lessonRepo,
		images:        images,
		videos:        videos,
		logger:        logger,
	}
}

// ListCourses returns a page of courses including drafts
func (s *courseAdminService) ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error) {
	filter.IncludeUnpublished = true
	items, total, err := s.courseRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, filter.Page, filter.Count), nil
}

// GetCourse returns a course by id
func (s *courseAdminService) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return s.courseRepo.GetByID(ctx, id)
}

// CreateCourse creates a course. Without an explicit slug one is generated from the title.
func (s *courseAdminService) CreateCourse(ctx context.Context, req *models.CreateCourseRequest, thumbnail *Upload) (*models.Course, error) {
	courseSlug, err := s.resolveSlug(ctx, req.Slug, req.Title, "")
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Slug:        courseSlug,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		Level:       req.Level,
		IsPublished: req.IsPublished,
	}

	if thumbnail != nil {
		if course.ThumbnailURL, err = s.uploadThumbnail(thumbnail); err != nil {
			return nil, err
		}
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}

	s.logger.Info("Course created", zap.Int("course_id", course.ID), zap.String("slug", course.Slug))
	return course, nil
}

// UpdateCourse applies a partial update and an optional new thumbnail
func (s *courseAdminService) UpdateCourse(ctx context.Context, id int, req *models.UpdateCourseRequest, thumbnail *Upload) (*models.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = strings.TrimSpace(*req.Title)
	}
	if req.Slug != nil {
		if course.Slug, err = s.resolveSlug(ctx, *req.Slug, course.Title, course.Slug); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Category != nil {
		course.Category = strings.TrimSpace(*req.Category)
	}
	if req.Level != nil {
		course.Level = *req.Level
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}

	if thumbnail != nil {
		if course.ThumbnailURL, err = s.uploadThumbnail(thumbnail); err != nil {
			return nil, err
		}
	}

	if err := s.courseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// DeleteCourse removes a course with its curriculum, enrollments and payments
func (s *courseAdminService) DeleteCourse(ctx context.Context, id int) error {
	if err := s.courseRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Course deleted", zap.Int("course_id", id))
	return nil
}

// ListSubCourses returns the sub-courses of a course
func (s *courseAdminService) ListSubCourses(ctx context.Context, courseID int) ([]models.SubCourse, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	items, err := s.subCourseRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.SubCourse{}
	}
	return items, nil
}

// CreateSubCourse adds a sub-course to a course
func (s *courseAdminService) CreateSubCourse(ctx context.Context, req *models.CreateSubCourseRequest) (*models.SubCourse, error) {
	if _, err := s.courseRepo.GetByID(ctx, req.CourseID); err != nil {
		return nil, err
	}

	subCourse := &models.SubCourse{
		CourseID: req.CourseID,
		Title:    strings.TrimSpace(req.Title),
		Position: req.Position,
	}
	if err := s.subCourseRepo.Create(ctx, subCourse); err != nil {
		return nil, err
	}
	return subCourse, nil
}

// UpdateSubCourse renames or moves a sub-course
func (s *courseAdminService) UpdateSubCourse(ctx context.Context, id int, req *models.UpdateSubCourseRequest) (*models.SubCourse, error) {
	subCourse, err := s.subCourseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		subCourse.Title = strings.TrimSpace(*req.Title)
	}
	if req.Position != nil {
		subCourse.Position = *req.Position
	}

	if err := s.subCourseRepo.Update(ctx, subCourse); err != nil {
		return nil, err
	}
	return subCourse, nil
}

// DeleteSubCourse removes a sub-course; its lessons stay in the course ungrouped
func (s *courseAdminService) DeleteSubCourse(ctx context.Context, id int) error {
	return s.subCourseRepo.Delete(ctx, id)
}

// ListLessons returns the lessons of a course with their video references
func (s *courseAdminService) ListLessons(ctx context.Context, courseID int) ([]models.Lesson, error) {
	if _, err := s.courseRepo.GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	items, err := s.lessonRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Lesson{}
	}
	return items, nil
}

// CreateLesson adds a lesson to a course, optionally inside one of its sub-courses
func (s *courseAdminService) CreateLesson(ctx context.Context, req *models.CreateLessonRequest) (*models.Lesson, error) {
	if _, err := s.courseRepo.GetByID(ctx, req.CourseID); err != nil {
		return nil, err
	}
	if req.SubCourseID != nil {
		if err := s.checkSubCourse(ctx, *req.SubCourseID, req.CourseID); err != nil {
			return nil, err
		}
	}

	lesson := &models.Lesson{
		CourseID:        req.CourseID,
		SubCourseID:     req.SubCourseID,
		Title:           strings.TrimSpace(req.Title),
		DurationSeconds: req.DurationSeconds,
		Position:        req.Position,
		IsPreview:       req.IsPreview,
	}
	if err := s.lessonRepo.Create(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// UpdateLesson applies a partial update. A sub-course id of 0 detaches the lesson.
func (s *courseAdminService) UpdateLesson(ctx context.Context, id int, req *models.UpdateLessonRequest) (*models.Lesson, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.SubCourseID != nil {
		if *req.SubCourseID == 0 {
			lesson.SubCourseID = nil
		} else {
			if err := s.checkSubCourse(ctx, *req.SubCourseID, lesson.CourseID); err != nil {
				return nil, err
			}
			subCourseID := *req.SubCourseID
			lesson.SubCourseID = &subCourseID
		}
	}
	if req.Title != nil {
		lesson.Title = strings.TrimSpace(*req.Title)
	}
	if req.DurationSeconds != nil {
		lesson.DurationSeconds = *req.DurationSeconds
	}
	if req.Position != nil {
		lesson.Position = *req.Position
	}
	if req.IsPreview != nil {
		lesson.IsPreview = *req.IsPreview
	}

	if err := s.lessonRepo.Update(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// DeleteLesson removes a lesson
func (s *courseAdminService) DeleteLesson(ctx context.Context, id int) error {
	return s.lessonRepo.Delete(ctx, id)
}

// CreateUploadTicket registers a video on the CDN and signs a resumable upload ticket for it.
// The browser uploads the file directly to the CDN.
func (s *courseAdminService) CreateUploadTicket(ctx context.Context, req *models.CreateUploadTicketRequest) (*models.UploadTicket, error) {
	if !s.videos.Enabled() {
		return nil, storage.ErrVideosDisabled
	}

	videoID, err := s.videos.CreateVideo(ctx, strings.TrimSpace(req.Title))
	if err != nil {
		s.logger.Error("failed to create cdn video", zap.Error(err))
		return nil, err
	}

	ticket := s.videos.NewUploadTicket(videoID)
	s.logger.Info("Upload ticket issued", zap.String("video_id", videoID), zap.Int64("expires_at", ticket.ExpiresAt))

	return &models.UploadTicket{
		VideoID:   ticket.VideoID,
		LibraryID: ticket.LibraryID,
		ExpiresAt: ticket.ExpiresAt,
		Signature: ticket.Signature,
		Endpoint:  ticket.Endpoint,
		EmbedURL:  ticket.EmbedURL,
	}, nil
}

// AttachVideo stores an uploaded CDN video as the lesson's video
func (s *courseAdminService) AttachVideo(ctx context.Context, lessonID int, req *models.AttachVideoRequest) (*models.Lesson, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	videoID := strings.TrimSpace(req.VideoID)
	videoURL := s.videos.EmbedURL(videoID)
	if err := s.lessonRepo.UpdateVideo(ctx, lessonID, videoID, videoURL); err != nil {
		return nil, err
	}

	lesson.VideoID = videoID
	lesson.VideoURL = videoURL
	return lesson, nil
}

func (s *courseAdminService) checkSubCourse(ctx context.Context, subCourseID, courseID int) error {
	subCourse, err := s.subCourseRepo.GetByID(ctx, subCourseID)
	if err != nil {
		return err
	}
	if subCourse.CourseID != courseID {
		return &FieldError{Field: "subCourseId", Message: "sub-course belongs to another course"}
	}
	return nil
}

func (s *courseAdminService) uploadThumbnail(thumbnail *Upload) (string, error) {
	_, url, err := s.images.Upload("thumbnails", thumbnail.Extension, thumbnail.ContentType, thumbnail.Data)
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}
	return url, nil
}

// resolveSlug normalizes a requested slug or derives one from the title.
// A requested slug must be free; a derived one gets a numeric suffix until it is.
func (s *courseAdminService) resolveSlug(ctx context.Context, requested, title, current string) (string, error) {
	if requested = slug.Make(requested); requested != "" {
		if requested == current {
			return current, nil
		}
		exists, err := s.courseRepo.ExistsBySlug(ctx, requested)
		if err != nil {
			return "", err
		}
		if exists {
			return "", models.ErrSlugTaken
		}
		return requested, nil
	}

	base := slug.Make(title)
	if base == "" {
		base = "course"
	}
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		if candidate == current {
			return current, nil
		}
		exists, err := s.courseRepo.ExistsBySlug(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", models.ErrSlugTaken
}

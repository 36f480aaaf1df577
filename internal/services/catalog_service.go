package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
)

// CatalogCourseRepository reads courses for the public catalog
type CatalogCourseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error)
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
}

// SubCourseLister lists the sub-courses of a course
type SubCourseLister interface {
	ListByCourse(ctx context.Context, courseID int) ([]models.SubCourse, error)
}

// LessonLister lists the lessons of a course
type LessonLister interface {
	ListByCourse(ctx context.Context, courseID int) ([]models.Lesson, error)
}

// CatalogEnrollmentRepository reads the caller's enrollment in a course
type CatalogEnrollmentRepository interface {
	Get(ctx context.Context, userID, courseID int) (*models.Enrollment, error)
	CompletedLessons(ctx context.Context, userID, courseID int) ([]int, error)
}

// Viewer identifies who is browsing. A zero UserID is an anonymous visitor.
type Viewer struct {
	UserID  int
	IsAdmin bool
}

// catalogService implements course browsing
type catalogService struct {
	courseRepo     CatalogCourseRepository
	subCourseRepo  SubCourseLister
	lessonRepo     LessonLister
	enrollmentRepo CatalogEnrollmentRepository
	logger         *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(
	courseRepo CatalogCourseRepository,
	subCourseRepo SubCourseLister,
	lessonRepo LessonLister,
	enrollmentRepo CatalogEnrollmentRepository,
	logger *zap.Logger,
) *catalogService {
	return &catalogService{
		courseRepo:     courseRepo,
		subCourseRepo:  subCourseRepo,
		lessonRepo:     lessonRepo,
		enrollmentRepo: enrollmentRepo,
		logger:         logger,
	}
}

// ListCourses returns a page of published courses
func (s *catalogService) ListCourses(ctx context.Context, filter models.CourseFilter) (*models.ListResponse[models.CourseListItem], error) {
	filter.IncludeUnpublished = false
	filter.Search = strings.TrimSpace(filter.Search)

	items, total, err := s.courseRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newListResponse(items, total, filter.Page, filter.Count), nil
}

// GetCourse returns a course with its curriculum. Video URLs are only included for preview
// lessons unless the viewer is enrolled or an admin.
func (s *catalogService) GetCourse(ctx context.Context, slug string, viewer Viewer) (*models.CourseDetailResponse, error) {
	course, err := s.courseRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished && !viewer.IsAdmin {
		return nil, models.ErrNotFound
	}

	detail := &models.CourseDetailResponse{Course: *course}

	completed := map[int]bool{}
	if viewer.UserID != 0 {
		enrollment, err := s.enrollmentRepo.Get(ctx, viewer.UserID, course.ID)
		switch {
		case err == nil:
			detail.Enrolled = true
			detail.Progress = enrollment.Progress

			ids, err := s.enrollmentRepo.CompletedLessons(ctx, viewer.UserID, course.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				completed[id] = true
			}
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	subCourses, err := s.subCourseRepo.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	canWatch := detail.Enrolled || viewer.IsAdmin
	grouped := make(map[int][]models.LessonView, len(subCourses))
	detail.Lessons = []models.LessonView{}
	for _, lesson := range lessons {
		view := models.LessonView{
			ID:              lesson.ID,
			SubCourseID:     lesson.SubCourseID,
			Title:           lesson.Title,
			DurationSeconds: lesson.DurationSeconds,
			Position:        lesson.Position,
			IsPreview:       lesson.IsPreview,
			Completed:       completed[lesson.ID],
		}
		if canWatch || lesson.IsPreview {
			view.VideoURL = lesson.VideoURL
		}

		if lesson.SubCourseID != nil {
			grouped[*lesson.SubCourseID] = append(grouped[*lesson.SubCourseID], view)
		} else {
			detail.Lessons = append(detail.Lessons, view)
		}
	}

	detail.SubCourses = make([]models.SubCourseWithLessons, 0, len(subCourses))
	for _, sc := range subCourses {
		views := grouped[sc.ID]
		if views == nil {
			views = []models.LessonView{}
		}
		detail.SubCourses = append(detail.SubCourses, models.SubCourseWithLessons{SubCourse: sc, Lessons: views})
	}
	detail.TotalLessons = len(lessons)

	return detail, nil
}

package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/models"
)

// EnrollmentRepository is the interface that wraps methods for enrollments table data access
type EnrollmentRepository interface {
	ListByUser(ctx context.Context, userID int) ([]models.EnrollmentListItem, error)
	Get(ctx context.Context, userID, courseID int) (*models.Enrollment, error)
	Exists(ctx context.Context, userID, courseID int) (bool, error)
	Grant(ctx context.Context, userID, courseID int) error
	// Method SetLessonCompleted marks or unmarks a lesson and returns the new progress and completed lesson ids.
	SetLessonCompleted(ctx context.Context, userID, courseID, lessonID int, completed bool) (int, []int, error)
}

// LessonReader retrieves lessons by ID
type LessonReader interface {
	GetByID(ctx context.Context, id int) (*models.Lesson, error)
}

// enrollmentService implements the learner side of enrollments
type enrollmentService struct {
	enrollmentRepo EnrollmentRepository
	courseRepo     CourseReader
	lessonRepo     LessonReader
	logger         *zap.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(enrollmentRepo EnrollmentRepository, courseRepo CourseReader, lessonRepo LessonReader, logger *zap.Logger) *enrollmentService {
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
		lessonRepo:     lessonRepo,
		logger:         logger,
	}
}

// ListMine returns the user's courses with progress
func (s *enrollmentService) ListMine(ctx context.Context, userID int) ([]models.EnrollmentListItem, error) {
	items, err := s.enrollmentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.EnrollmentListItem{}
	}
	return items, nil
}

// Status tells whether the user owns a course
func (s *enrollmentService) Status(ctx context.Context, userID, courseID int) (*models.EnrollmentStatusResponse, error) {
	enrollment, err := s.enrollmentRepo.Get(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.EnrollmentStatusResponse{Enrolled: false}, nil
		}
		return nil, err
	}
	return &models.EnrollmentStatusResponse{Enrolled: true, Progress: enrollment.Progress}, nil
}

// SetLessonCompleted marks or unmarks a lesson of an owned course and returns the new progress
func (s *enrollmentService) SetLessonCompleted(ctx context.Context, userID, courseID, lessonID int, completed bool) (*models.LessonProgressResponse, error) {
	lesson, err := s.lessonRepo.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != courseID {
		return nil, models.ErrNotFound
	}

	enrolled, err := s.enrollmentRepo.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, models.ErrNotEnrolled
	}

	progress, completedLessons, err := s.enrollmentRepo.SetLessonCompleted(ctx, userID, courseID, lessonID, completed)
	if err != nil {
		return nil, err
	}

	return &models.LessonProgressResponse{
		CourseID:         courseID,
		Progress:         progress,
		CompletedLessons: completedLessons,
	}, nil
}

// EnrollFree enrolls the user in a published course that costs nothing
func (s *enrollmentService) EnrollFree(ctx context.Context, userID, courseID int) (*models.EnrollmentStatusResponse, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, models.ErrNotFound
	}
	if course.Price > 0 {
		return nil, models.ErrPaymentRequired
	}

	enrolled, err := s.enrollmentRepo.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, models.ErrAlreadyEnrolled
	}

	if err := s.enrollmentRepo.Grant(ctx, userID, courseID); err != nil {
		return nil, err
	}

	s.logger.Info("Enrolled in free course", zap.Int("user_id", userID), zap.Int("course_id", courseID))
	return &models.EnrollmentStatusResponse{Enrolled: true}, nil
}

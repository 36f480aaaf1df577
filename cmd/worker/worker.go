package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/mailer"
	"github.com/onlinecourse/backend/internal/models"
	"github.com/onlinecourse/backend/internal/tasks"
)

// UserRepository defines the interface for reading email recipients
type UserRepository interface {
	// GetByID retrieves a user by its ID
	//
	// If the user does not exist, models.ErrNotFound is returned.
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// PaymentRepository defines the interface for reading completed payments
type PaymentRepository interface {
	// GetByID retrieves a payment by its ID
	//
	// If the payment does not exist, models.ErrNotFound is returned.
	GetByID(ctx context.Context, id int) (*models.Payment, error)
}

// CourseRepository defines the interface for reading purchased courses
type CourseRepository interface {
	// GetByID retrieves a course by its ID
	//
	// If the course does not exist, models.ErrNotFound is returned.
	GetByID(ctx context.Context, id int) (*models.Course, error)
}

// Worker handles email task processing
type Worker struct {
	logger      *zap.Logger
	userRepo    UserRepository
	paymentRepo PaymentRepository
	courseRepo  CourseRepository
	sender      mailer.Sender
}

// NewWorker creates a new worker instance
func NewWorker(
	logger *zap.Logger,
	userRepo UserRepository,
	paymentRepo PaymentRepository,
	courseRepo CourseRepository,
	sender mailer.Sender,
) *Worker {
	return &Worker{
		logger:      logger,
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		courseRepo:  courseRepo,
		sender:      sender,
	}
}

// HandleWelcomeEmail sends the welcome email of a newly registered user
func (w *Worker) HandleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseWelcomeEmail(t)
	if err != nil {
		return err
	}

	user, err := w.userRepo.GetByID(ctx, payload.UserID)
	if err != nil {
		// User was deleted before the email went out
		if errors.Is(err, models.ErrNotFound) {
			w.logger.Info("Skipping welcome email of deleted user", zap.Int("user_id", payload.UserID))
			return nil
		}
		return err
	}

	msg, err := mailer.WelcomeMessage(user.Email, mailer.WelcomeData{Username: user.Username})
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return err
	}

	w.logger.Info("Welcome email sent", zap.Int("user_id", user.ID))
	return nil
}

// HandleEnrollmentEmail sends the confirmation email of a completed payment
func (w *Worker) HandleEnrollmentEmail(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseEnrollmentEmail(t)
	if err != nil {
		return err
	}

	payment, err := w.paymentRepo.GetByID(ctx, payload.PaymentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			w.logger.Info("Skipping enrollment email of unknown payment", zap.Int("payment_id", payload.PaymentID))
			return nil
		}
		return err
	}
	if payment.Status != models.PaymentStatusCompleted {
		w.logger.Warn("Skipping enrollment email of incomplete payment",
			zap.Int("payment_id", payment.ID),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}

	user, err := w.userRepo.GetByID(ctx, payment.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	course, err := w.courseRepo.GetByID(ctx, payment.CourseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	msg, err := mailer.EnrollmentMessage(user.Email, mailer.EnrollmentData{
		Username:    user.Username,
		CourseTitle: course.Title,
		Amount:      payment.Amount,
	})
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return err
	}

	w.logger.Info("Enrollment email sent",
		zap.Int("payment_id", payment.ID),
		zap.Int("user_id", user.ID),
		zap.Int("course_id", course.ID),
	)
	return nil
}

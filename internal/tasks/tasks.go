// Package tasks defines background jobs processed by the worker
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypeWelcomeEmail    = "email:welcome"
	TypeEnrollmentEmail = "email:enrollment"
)

// QueueEmail is the queue transactional email is sent through
const QueueEmail = "email"

const (
	maxRetry    = 5
	taskTimeout = time.Minute
)

// WelcomeEmailPayload is the payload of TypeWelcomeEmail
type WelcomeEmailPayload struct {
	UserID int `json:"userId"`
}

// EnrollmentEmailPayload is the payload of TypeEnrollmentEmail
type EnrollmentEmailPayload struct {
	PaymentID int `json:"paymentId"`
}

// NewWelcomeEmailTask builds the task sent after registration
func NewWelcomeEmailTask(userID int) (*asynq.Task, error) {
	payload, err := json.Marshal(WelcomeEmailPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWelcomeEmail, payload), nil
}

// NewEnrollmentEmailTask builds the task sent after a completed payment
func NewEnrollmentEmailTask(paymentID int) (*asynq.Task, error) {
	payload, err := json.Marshal(EnrollmentEmailPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEnrollmentEmail, payload), nil
}

// ParseWelcomeEmail decodes a TypeWelcomeEmail payload
func ParseWelcomeEmail(t *asynq.Task) (WelcomeEmailPayload, error) {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to parse %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}

// ParseEnrollmentEmail decodes a TypeEnrollmentEmail payload
func ParseEnrollmentEmail(t *asynq.Task) (EnrollmentEmailPayload, error) {
	var p EnrollmentEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to parse %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return p, nil
}

// Client is the part of asynq.Client used to enqueue tasks
type Client interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules email tasks
type Enqueuer struct {
	client Client
	logger *zap.Logger
}

// NewEnqueuer creates an Enqueuer
func NewEnqueuer(client Client, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{
		client: client,
		logger: logger,
	}
}

// EnqueueWelcomeEmail schedules the welcome email of a user
func (e *Enqueuer) EnqueueWelcomeEmail(ctx context.Context, userID int) error {
	task, err := NewWelcomeEmailTask(userID)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, fmt.Sprintf("welcome:%d", userID))
}

// EnqueueEnrollmentEmail schedules the confirmation email of a completed payment.
// The task id is derived from the payment so duplicate completions send one email.
func (e *Enqueuer) EnqueueEnrollmentEmail(ctx context.Context, paymentID int) error {
	task, err := NewEnrollmentEmailTask(paymentID)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, fmt.Sprintf("enrollment:%d", paymentID))
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, taskID string) error {
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueEmail),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
		asynq.TaskID(taskID),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			e.logger.Debug("Task already enqueued", zap.String("task_id", taskID))
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	e.logger.Debug("Task enqueued",
		zap.String("type", task.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

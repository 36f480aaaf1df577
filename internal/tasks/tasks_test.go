package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockClient struct {
	tasks []*asynq.Task
	err   error
}

func (m *mockClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{ID: "id", Queue: QueueEmail, Type: task.Type()}, nil
}

func TestEnqueuer_EnqueueEnrollmentEmail(t *testing.T) {
	client := &mockClient{}
	enqueuer := NewEnqueuer(client, zap.NewNop())

	err := enqueuer.EnqueueEnrollmentEmail(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, client.tasks, 1)
	assert.Equal(t, TypeEnrollmentEmail, client.tasks[0].Type())

	payload, err := ParseEnrollmentEmail(client.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, 42, payload.PaymentID)
}

func TestEnqueuer_EnqueueWelcomeEmail(t *testing.T) {
	client := &mockClient{}
	enqueuer := NewEnqueuer(client, zap.NewNop())

	require.NoError(t, enqueuer.EnqueueWelcomeEmail(context.Background(), 7))
	require.Len(t, client.tasks, 1)

	payload, err := ParseWelcomeEmail(client.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, 7, payload.UserID)
}

func TestEnqueuer_Errors(t *testing.T) {
	t.Run("duplicate task id is not an error", func(t *testing.T) {
		enqueuer := NewEnqueuer(&mockClient{err: asynq.ErrTaskIDConflict}, zap.NewNop())
		assert.NoError(t, enqueuer.EnqueueEnrollmentEmail(context.Background(), 1))
	})

	t.Run("redis failure", func(t *testing.T) {
		enqueuer := NewEnqueuer(&mockClient{err: errors.New("connection refused")}, zap.NewNop())
		err := enqueuer.EnqueueWelcomeEmail(context.Background(), 1)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestParse_InvalidPayload(t *testing.T) {
	_, err := ParseWelcomeEmail(asynq.NewTask(TypeWelcomeEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = ParseEnrollmentEmail(asynq.NewTask(TypeEnrollmentEmail, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

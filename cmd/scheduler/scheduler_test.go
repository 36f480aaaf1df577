package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/services"
)

type mockSweeper struct {
	mu          sync.Mutex
	calls       int
	err         error
	called      chan struct{}
	release     chan struct{}
	hadDeadline bool
}

func newMockSweeper(err error) *mockSweeper {
	return &mockSweeper{err: err, called: make(chan struct{}, 10)}
}

func (m *mockSweeper) Sweep(ctx context.Context) (*services.SweepResult, error) {
	m.mu.Lock()
	m.calls++
	_, m.hadDeadline = ctx.Deadline()
	m.mu.Unlock()
	m.called <- struct{}{}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return &services.SweepResult{ExpiredPayments: 1}, nil
}

func (m *mockSweeper) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewScheduler(newMockSweeper(nil), "every minute please", time.Second, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestNewScheduler_AcceptsSchedules(t *testing.T) {
	tests := []string{"@every 1m", "*/5 * * * *", "@hourly"}

	for _, schedule := range tests {
		t.Run(schedule, func(t *testing.T) {
			s, err := NewScheduler(newMockSweeper(nil), schedule, time.Second, zap.NewNop())
			require.NoError(t, err)
			assert.Len(t, s.cron.Entries(), 1)
		})
	}
}

func TestScheduler_RunSweep(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "sweep error is logged", err: errors.New("database error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := newMockSweeper(tt.err)
			s, err := NewScheduler(sweeper, "@hourly", time.Second, zap.NewNop())
			require.NoError(t, err)

			s.runSweep()

			assert.Equal(t, 1, sweeper.callCount())
			assert.True(t, sweeper.hadDeadline)
		})
	}
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	sweeper := newMockSweeper(nil)
	s, err := NewScheduler(sweeper, "@hourly", time.Second, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-sweeper.called:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not run on start")
	}
	assert.Equal(t, 1, sweeper.callCount())
}

func TestScheduler_SweepsDoNotOverlap(t *testing.T) {
	sweeper := newMockSweeper(nil)
	sweeper.release = make(chan struct{})
	s, err := NewScheduler(sweeper, "@hourly", time.Second, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.job.Run()
		close(done)
	}()

	select {
	case <-sweeper.called:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep did not start")
	}

	// a tick while the first sweep still runs is skipped
	s.job.Run()
	assert.Equal(t, 1, sweeper.callCount())

	close(sweeper.release)
	<-done

	s.job.Run()
	assert.Equal(t, 2, sweeper.callCount())
}

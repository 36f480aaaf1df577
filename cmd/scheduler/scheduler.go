package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/onlinecourse/backend/internal/services"
)

// Sweeper runs the housekeeping jobs
type Sweeper interface {
	// Sweep expires stale payments and deletes expired refresh tokens
	Sweep(ctx context.Context) (*services.SweepResult, error)
}

// Scheduler runs the sweep on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	sweeper Sweeper
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler instance. "schedule" accepts standard five field
// cron expressions and descriptors such as "@every 1m".
func NewScheduler(sweeper Sweeper, schedule string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	cronLog := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLog)),
		sweeper: sweeper,
		timeout: timeout,
		logger:  logger,
	}
	// the startup run and the cron ticks share one wrapped job, so they never overlap
	s.job = cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.runSweep))

	if _, err := s.cron.AddJob(schedule, s.job); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start starts the scheduler and runs the first sweep right away
func (s *Scheduler) Start() {
	s.logger.Info("Scheduler started")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// runSweep executes one sweep bounded by the timeout
func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Sweep failed", zap.Error(err))
		return
	}

	s.logger.Debug("Sweep finished",
		zap.Int64("expired_payments", result.ExpiredPayments),
		zap.Int64("deleted_tokens", result.DeletedTokens),
	)
}

// cronLogger routes cron's own messages to zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenCleaner removes refresh tokens issued before a cutoff
type TokenCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PaymentExpirer marks stale pending payments as failed
type PaymentExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// SweepResult reports what a maintenance run changed
type SweepResult struct {
	ExpiredPayments int64 `json:"expiredPayments"`
	DeletedTokens   int64 `json:"deletedTokens"`
}

// maintenanceService runs periodic housekeeping jobs
type maintenanceService struct {
	tokens        TokenCleaner
	payments      PaymentExpirer
	refreshExpiry time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(tokens TokenCleaner, payments PaymentExpirer, refreshExpiry time.Duration, logger *zap.Logger) *maintenanceService {
	return &maintenanceService{
		tokens:        tokens,
		payments:      payments,
		refreshExpiry: refreshExpiry,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ExpirePayments fails every pending payment older than its provider's window
func (s *maintenanceService) ExpirePayments(ctx context.Context) (int64, error) {
	return s.payments.ExpireStale(ctx)
}

// CleanTokens removes refresh tokens that can no longer be used
func (s *maintenanceService) CleanTokens(ctx context.Context) (int64, error) {
	deleted, err := s.tokens.DeleteOlderThan(ctx, s.now().Add(-s.refreshExpiry))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("Deleted expired refresh tokens", zap.Int64("count", deleted))
	}
	return deleted, nil
}

// Sweep runs every housekeeping job. A failing job does not stop the others.
func (s *maintenanceService) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}
	var firstErr error

	expired, err := s.ExpirePayments(ctx)
	if err != nil {
		s.logger.Error("payment sweep failed", zap.Error(err))
		firstErr = err
	}
	result.ExpiredPayments = expired

	deleted, err := s.CleanTokens(ctx)
	if err != nil {
		s.logger.Error("token cleanup failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	result.DeletedTokens = deleted

	return result, firstErr
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	oauthStatePrefix = "oauth_state:"
	oauthStateTTL    = 10 * time.Minute
)

// ErrStateNotFound is returned for unknown, expired or already consumed states
var ErrStateNotFound = errors.New("oauth state not found")

// StateStore keeps OAuth state values in Redis until the callback consumes them
type StateStore struct {
	redis *redis.Client
}

// NewStateStore creates a StateStore
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{redis: client}
}

// Save stores state with an optional value, such as the user id of an account being linked
func (s *StateStore) Save(ctx context.Context, state, value string) error {
	if err := s.redis.Set(ctx, oauthStatePrefix+state, value, oauthStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// Consume returns the value stored for state and deletes it
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	value, err := s.redis.GetDel(ctx, oauthStatePrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStateNotFound
		}
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return value, nil
}

package waiting

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"outputrocks-nodes/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each parked execution as JSON at waiting:<token>. The key
// expires grace after WaitTill.
type RedisStore struct {
	client redis.Cmdable
	grace  time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, grace time.Duration) *RedisStore {
	return &RedisStore{client: client, grace: grace, now: time.Now}
}

func waitingKey(token string) string {
	return "waiting:" + token
}

func (s *RedisStore) Park(ctx context.Context, exec PendingExecution) error {
	if exec.Token == "" {
		return fmt.Errorf("resume token is required")
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("encode pending execution: %w", err)
	}

	var ttl time.Duration
	if !exec.WaitTill.IsZero() {
		ttl = exec.WaitTill.Sub(s.now()) + s.grace
		if ttl <= 0 {
			return fmt.Errorf("wait deadline %s already passed", exec.WaitTill.Format(time.RFC3339))
		}
	}

	if err := s.client.Set(ctx, waitingKey(exec.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("park execution %s: %w", exec.Token, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*PendingExecution, error) {
	return s.decode(token, s.client.Get(ctx, waitingKey(token)))
}

// Take reads and deletes the entry in one GETDEL.
func (s *RedisStore) Take(ctx context.Context, token string) (*PendingExecution, error) {
	return s.decode(token, s.client.GetDel(ctx, waitingKey(token)))
}

func (s *RedisStore) decode(token string, cmd *redis.StringCmd) (*PendingExecution, error) {
	data, err := cmd.Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NewExecutionNotWaitingError(token)
	}
	if err != nil {
		return nil, errors.NewWaitingStoreError(err)
	}

	var exec PendingExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, errors.NewWaitingStoreError(fmt.Errorf("decode pending execution %s: %w", token, err))
	}
	if exec.Expired(s.now()) {
		return nil, errors.NewExecutionNotWaitingError(token)
	}
	return &exec, nil
}

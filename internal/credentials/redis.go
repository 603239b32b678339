package credentials

import (
	"context"
	"fmt"

	"outputrocks-nodes/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each credential in a hash at credentials:<type>:<id>.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(credentialType, id string) string {
	return fmt.Sprintf("credentials:%s:%s", credentialType, id)
}

func (s *RedisStore) Get(ctx context.Context, credentialType, id string) (Data, error) {
	values, err := s.client.HGetAll(ctx, redisKey(credentialType, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load credential %s/%s: %w", credentialType, id, err)
	}
	if len(values) == 0 {
		return nil, errors.NewCredentialNotFoundError(credentialType, id)
	}
	return Data(values), nil
}

// Save replaces the stored hash atomically.
func (s *RedisStore) Save(ctx context.Context, credentialType, id string, data Data) error {
	if err := validate(credentialType, data); err != nil {
		return err
	}

	fields := make(map[string]interface{}, len(data))
	for k, v := range data {
		fields[k] = v
	}

	key := redisKey(credentialType, id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credential %s/%s: %w", credentialType, id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, credentialType, id string) error {
	if err := s.client.Del(ctx, redisKey(credentialType, id)).Err(); err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", credentialType, id, err)
	}
	return nil
}

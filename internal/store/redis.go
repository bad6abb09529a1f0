package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cardioml-web/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cardioml"

// RedisStore keeps each scope's documents under cardioml:<scope>:<key>.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config domain.CacheConfig, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{redis: client, ttl: ttl}, nil
}

func keys(scope string) (result, form, savedAt string) {
	base := keyPrefix + ":" + scope + ":"
	return base + ResultKey, base + FormKey, base + "savedAt"
}

// Save writes both documents in one MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, scope string, record *domain.AssessmentRecord) error {
	e, err := encode(record)
	if err != nil {
		return err
	}

	resultKey, formKey, savedKey := keys(scope)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, resultKey, e.result, s.ttl)
		pipe.Set(ctx, formKey, e.form, s.ttl)
		pipe.Set(ctx, savedKey, e.savedAt.Format(time.RFC3339Nano), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save assessment state: %w", err)
	}
	return nil
}

// Load reads both documents. A partial or corrupted pair is deleted and
// reported as absent.
func (s *RedisStore) Load(ctx context.Context, scope string) (*domain.AssessmentRecord, bool, error) {
	resultKey, formKey, savedKey := keys(scope)

	vals, err := s.redis.MGet(ctx, resultKey, formKey, savedKey).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load assessment state: %w", err)
	}
	if vals[0] == nil && vals[1] == nil {
		return nil, false, nil
	}

	result, _ := vals[0].(string)
	form, _ := vals[1].(string)
	var savedAt time.Time
	if raw, ok := vals[2].(string); ok {
		savedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}

	record, err := decode(encoded{result: []byte(result), form: []byte(form), savedAt: savedAt.UTC()})
	if err != nil {
		if err := s.Clear(ctx, scope); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return record, true, nil
}

// Clear deletes the scope's documents.
func (s *RedisStore) Clear(ctx context.Context, scope string) error {
	resultKey, formKey, savedKey := keys(scope)
	if err := s.redis.Del(ctx, resultKey, formKey, savedKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear assessment state: %w", err)
	}
	return nil
}

// Health pings the Redis server.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

package demo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/taskboards/taskboards/internal/types"
)

// Store holds the demo dataset. Replace swaps the whole collection; there is
// no partial update.
type Store interface {
	Load(ctx context.Context) ([]types.Task, error)
	Replace(ctx context.Context, tasks []types.Task) error
}

// MemoryStore keeps the dataset in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []types.Task
}

// NewMemoryStore creates a store holding a copy of tasks.
func NewMemoryStore(tasks []types.Task) *MemoryStore {
	return &MemoryStore{tasks: types.CloneAll(tasks)}
}

// Load returns a copy of the dataset.
func (m *MemoryStore) Load(context.Context) ([]types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.CloneAll(m.tasks), nil
}

// Replace swaps the dataset for a copy of tasks.
func (m *MemoryStore) Replace(_ context.Context, tasks []types.Task) error {
	next := types.CloneAll(tasks)
	m.mu.Lock()
	m.tasks = next
	m.mu.Unlock()
	return nil
}

// DefaultRedisKey is where RedisStore keeps the dataset.
const DefaultRedisKey = "taskboards:demo:tasks"

// RedisStore shares the dataset between client processes through Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	seed   []types.Task
}

// NewRedisStore creates a Redis-backed store. seed is served and written back
// when the key is missing or holds something that does not decode.
func NewRedisStore(client *redis.Client, seed []types.Task) *RedisStore {
	if client == nil {
		panic("demo.NewRedisStore: redis client is nil")
	}
	return &RedisStore{client: client, key: DefaultRedisKey, seed: types.CloneAll(seed)}
}

// OpenRedisStore connects to url (redis://host:port/db) and pings it.
func OpenRedisStore(ctx context.Context, url string, seed []types.Task) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, seed), nil
}

// Load reads the dataset, seeding the key on first use.
func (r *RedisStore) Load(ctx context.Context) ([]types.Task, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read demo tasks: %w", err)
		}
		return r.reseed(ctx)
	}
	var tasks []types.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = r.client.Del(ctx, r.key).Err()
		return r.reseed(ctx)
	}
	return tasks, nil
}

// Replace overwrites the dataset.
func (r *RedisStore) Replace(ctx context.Context, tasks []types.Task) error {
	if tasks == nil {
		tasks = []types.Task{}
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode demo tasks: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write demo tasks: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) reseed(ctx context.Context) ([]types.Task, error) {
	tasks := types.CloneAll(r.seed)
	if err := r.Replace(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/raphaelgruber/factsheet-go/internal/models"
)

const (
	redisTaskPrefix = "factsheet:task:"
	redisIndexKey   = "factsheet:tasks"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisRecorder keeps each task as a JSON string and indexes ids in a sorted
// set scored by creation time.
type RedisRecorder struct {
	client *redis.Client
}

// NewRedisRecorder connects and pings the server.
func NewRedisRecorder(ctx context.Context, opts RedisOptions) (*RedisRecorder, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRecorder{client: client}, nil
}

func (r *RedisRecorder) Record(ctx context.Context, task models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisTaskPrefix+task.ID, data, 0)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{
			Score:  float64(task.CreatedAt.UnixMilli()),
			Member: task.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	return nil
}

func (r *RedisRecorder) Get(ctx context.Context, id string) (*models.Task, error) {
	data, err := r.client.Get(ctx, redisTaskPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

func (r *RedisRecorder) List(ctx context.Context, limit int) ([]models.Task, error) {
	ids, err := r.client.ZRevRange(ctx, redisIndexKey, 0, int64(listLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	if len(ids) == 0 {
		return []models.Task{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisTaskPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Index entry whose value was removed.
			continue
		}
		var task models.Task
		if err := json.Unmarshal([]byte(s), &task); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *RedisRecorder) Close(context.Context) error {
	return r.client.Close()
}

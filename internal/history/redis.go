package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions holds Redis connection configuration.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	Key        string
	MaxEntries int
}

// RedisRecorder keeps entries in a capped Redis list.
type RedisRecorder struct {
	client     *redis.Client
	key        string
	maxEntries int
}

// NewRedisRecorder connects to Redis and verifies the connection.
func NewRedisRecorder(opts RedisOptions) (*RedisRecorder, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &RedisRecorder{client: client, key: key, maxEntries: maxEntries}, nil
}

// Record pushes e to the head of the list and trims it to the configured
// size in one transaction.
func (r *RedisRecorder) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(stamp(e))
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, 0, int64(r.maxEntries-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first. Entries that fail to decode
// are skipped.
func (r *RedisRecorder) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	vals, err := r.client.LRange(ctx, r.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			slog.Warn("skipping undecodable history entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the Redis connection.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

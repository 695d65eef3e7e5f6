// Package store persists the snapshots tempo's engine works on: schedule
// windows per owner, dependency edges, task definitions and execution state.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/internal/serialization"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Connect parses redisURL, connects and pings the server
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps every record under keys starting with its prefix
type RedisStore struct {
	client *redis.Client
	codec  *serialization.StateCodec
	prefix string

	edgesKey string
	tasksKey string
	stateKey string
}

// New creates a store on client. Keys are namespaced by prefix, and
// execution state is written with codec.
func New(client *redis.Client, prefix string, codec *serialization.StateCodec) *RedisStore {
	if codec == nil {
		codec = serialization.NewStateCodec(serialization.FormatProtobuf)
	}
	p := prefix + ":"
	return &RedisStore{
		client:   client,
		codec:    codec,
		prefix:   p,
		edgesKey: p + "edges",
		tasksKey: p + "tasks",
		stateKey: p + "state",
	}
}

// Client returns the underlying Redis client
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Prefix returns the key prefix including the trailing colon
func (s *RedisStore) Prefix() string {
	return s.prefix
}

func (s *RedisStore) windowsKey(owner string) string {
	return s.prefix + "windows:" + owner
}

func (s *RedisStore) outcomeKey(taskID, outcomeID string) string {
	return s.prefix + "outcome:" + taskID + ":" + outcomeID
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/pkg/execution"
	"github.com/muaviaUsmani/tempo/pkg/retry"
)

// TaskRecord is the persisted definition of a schedulable task. Recurrence
// holds the JSON recurrence document.
type TaskRecord struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Recurrence  json.RawMessage `json:"recurrence,omitempty"`
	OneShotAt   *time.Time      `json:"one_shot_at,omitempty"`
	Retry       retry.Policy    `json:"retry"`
	Timezone    string          `json:"timezone"`
	Enabled     bool            `json:"enabled"`
}

// SaveTask writes a task definition
func (s *RedisStore) SaveTask(ctx context.Context, rec TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := s.client.HSet(ctx, s.tasksKey, rec.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", rec.ID, err)
	}
	return nil
}

// GetTask reads a task definition
func (s *RedisStore) GetTask(ctx context.Context, taskID string) (TaskRecord, error) {
	data, err := s.client.HGet(ctx, s.tasksKey, taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return TaskRecord{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return TaskRecord{}, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}

	var rec TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return TaskRecord{}, fmt.Errorf("failed to unmarshal task %s: %w", taskID, err)
	}
	return rec, nil
}

// ListTasks returns every task definition ordered by ID
func (s *RedisStore) ListTasks(ctx context.Context) ([]TaskRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.tasksKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	records := make([]TaskRecord, 0, len(raw))
	for id, data := range raw {
		var rec TaskRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// DeleteTask removes a task definition together with its execution state
// and outcome tally
func (s *RedisStore) DeleteTask(ctx context.Context, taskID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.HDel(ctx, s.tasksKey, taskID)
	pipe.HDel(ctx, s.stateKey, taskID)
	pipe.Del(ctx, s.tallyKey(taskID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// SaveState writes the execution state of taskID
func (s *RedisStore) SaveState(ctx context.Context, taskID string, st execution.State) error {
	data, err := s.codec.Encode(st)
	if err != nil {
		return fmt.Errorf("failed to encode state of %s: %w", taskID, err)
	}
	if err := s.client.HSet(ctx, s.stateKey, taskID, data).Err(); err != nil {
		return fmt.Errorf("failed to save state of %s: %w", taskID, err)
	}
	return nil
}

// LoadState reads the execution state of taskID. A task that never ran has
// the zero state.
func (s *RedisStore) LoadState(ctx context.Context, taskID string) (execution.State, error) {
	data, err := s.client.HGet(ctx, s.stateKey, taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return execution.State{}, nil
	}
	if err != nil {
		return execution.State{}, fmt.Errorf("failed to load state of %s: %w", taskID, err)
	}

	st, err := s.codec.Decode(data)
	if err != nil {
		return execution.State{}, fmt.Errorf("failed to decode state of %s: %w", taskID, err)
	}
	return st, nil
}

// MarkOutcome records that outcomeID was delivered for taskID. It returns
// false if the outcome was already marked within ttl.
func (s *RedisStore) MarkOutcome(ctx context.Context, taskID, outcomeID string, ttl time.Duration) (bool, error) {
	first, err := s.client.SetNX(ctx, s.outcomeKey(taskID, outcomeID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark outcome %s: %w", outcomeID, err)
	}
	return first, nil
}

// UnmarkOutcome forgets a delivered outcome so a redelivery is processed
// again. Used when applying the outcome failed after it was marked.
func (s *RedisStore) UnmarkOutcome(ctx context.Context, taskID, outcomeID string) error {
	if err := s.client.Del(ctx, s.outcomeKey(taskID, outcomeID)).Err(); err != nil {
		return fmt.Errorf("failed to unmark outcome %s: %w", outcomeID, err)
	}
	return nil
}

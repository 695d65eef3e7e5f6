package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

const durationField = "duration_ns"

// Tally is the persisted outcome history of one task
type Tally struct {
	Counts        execution.Counts
	TotalDuration time.Duration
}

func (s *RedisStore) tallyKey(taskID string) string {
	return s.prefix + "tally:" + taskID
}

// SaveOutcome writes the execution state of taskID and adds o to its tally
// in one transaction, so the two never disagree about whether o was applied
func (s *RedisStore) SaveOutcome(ctx context.Context, taskID string, st execution.State, o execution.Outcome) error {
	data, err := s.codec.Encode(st)
	if err != nil {
		return fmt.Errorf("failed to encode state of %s: %w", taskID, err)
	}

	key := s.tallyKey(taskID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.stateKey, taskID, data)
	pipe.HIncrBy(ctx, key, string(o.Status), 1)
	pipe.HIncrBy(ctx, key, durationField, int64(o.Duration))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save outcome of %s: %w", taskID, err)
	}
	return nil
}

// LoadTally reads the outcome tally of taskID. A task that never ran has the
// zero tally.
func (s *RedisStore) LoadTally(ctx context.Context, taskID string) (Tally, error) {
	raw, err := s.client.HGetAll(ctx, s.tallyKey(taskID)).Result()
	if err != nil {
		return Tally{}, fmt.Errorf("failed to load tally of %s: %w", taskID, err)
	}

	var t Tally
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Tally{}, fmt.Errorf("invalid tally field %s of %s: %w", field, taskID, err)
		}
		switch execution.Status(field) {
		case execution.StatusSuccess:
			t.Counts.Success = int(n)
		case execution.StatusFailed:
			t.Counts.Failed = int(n)
		case execution.StatusTimeout:
			t.Counts.Timeout = int(n)
		case execution.StatusSkipped:
			t.Counts.Skipped = int(n)
		default:
			if field == durationField {
				t.TotalDuration = time.Duration(n)
			}
		}
	}
	return t, nil
}

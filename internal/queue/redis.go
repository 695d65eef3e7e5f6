// Package queue holds armed trigger instants in Redis until they are due.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/muaviaUsmani/tempo/internal/logger"
)

// Kind tells the runtime why an instant was armed
type Kind string

const (
	// KindRun is a regular trigger fire
	KindRun Kind = "run"
	// KindRetry is a retry after a failed or timed out execution
	KindRetry Kind = "retry"
)

// Arm is a single armed instant. A task has at most one pending arm.
type Arm struct {
	ID      string    `json:"id"`
	TaskID  string    `json:"task_id"`
	Kind    Kind      `json:"kind"`
	Attempt int       `json:"attempt,omitempty"`
	At      time.Time `json:"at"`
	ArmedAt time.Time `json:"armed_at"`
}

// popDueScript claims up to ARGV[2] arms scored at or before ARGV[1]. Claimed
// arms leave both keys in the same step so two planners never pop the same one.
var popDueScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
local out = {}
for _, id in ipairs(ids) do
	redis.call("ZREM", KEYS[1], id)
	local data = redis.call("HGET", KEYS[2], id)
	if data then
		redis.call("HDEL", KEYS[2], id)
		table.insert(out, data)
	end
end
return out
`)

// ArmQueue is a sorted set of task IDs scored by due time, with the arm
// payloads kept in a hash beside it
type ArmQueue struct {
	client   *redis.Client
	armedKey string
	dataKey  string
	log      logger.Logger
}

// NewArmQueue creates a queue whose keys start with prefix
func NewArmQueue(client *redis.Client, prefix string) *ArmQueue {
	p := prefix + ":"
	return &ArmQueue{
		client:   client,
		armedKey: p + "armed",
		dataKey:  p + "arms",
		log:      logger.Default().WithComponent(logger.ComponentQueue),
	}
}

// SetLogger replaces the queue's logger
func (q *ArmQueue) SetLogger(l logger.Logger) {
	q.log = l.WithComponent(logger.ComponentQueue)
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Arm schedules a for its At instant, replacing any pending arm of the same
// task. An ID is generated when a has none.
func (q *ArmQueue) Arm(ctx context.Context, a Arm) (Arm, error) {
	if a.TaskID == "" {
		return Arm{}, errors.New("arm requires a task ID")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Kind == "" {
		a.Kind = KindRun
	}
	if a.ArmedAt.IsZero() {
		a.ArmedAt = time.Now().UTC()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return Arm{}, fmt.Errorf("failed to marshal arm: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.dataKey, a.TaskID, data)
	pipe.ZAdd(ctx, q.armedKey, redis.Z{Score: score(a.At), Member: a.TaskID})
	if _, err := pipe.Exec(ctx); err != nil {
		return Arm{}, fmt.Errorf("failed to arm task %s: %w", a.TaskID, err)
	}
	return a, nil
}

// Disarm drops the pending arm of taskID. It reports whether one existed.
func (q *ArmQueue) Disarm(ctx context.Context, taskID string) (bool, error) {
	pipe := q.client.TxPipeline()
	removed := pipe.ZRem(ctx, q.armedKey, taskID)
	pipe.HDel(ctx, q.dataKey, taskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to disarm task %s: %w", taskID, err)
	}
	return removed.Val() > 0, nil
}

// Pending returns the arm waiting for taskID, or nil
func (q *ArmQueue) Pending(ctx context.Context, taskID string) (*Arm, error) {
	data, err := q.client.HGet(ctx, q.dataKey, taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get arm of %s: %w", taskID, err)
	}

	var a Arm
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arm of %s: %w", taskID, err)
	}
	return &a, nil
}

// Len returns the number of pending arms
func (q *ArmQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.armedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count arms: %w", err)
	}
	return n, nil
}

// NextDue returns the earliest pending instant. ok is false when nothing is armed.
func (q *ArmQueue) NextDue(ctx context.Context) (time.Time, bool, error) {
	zs, err := q.client.ZRangeWithScores(ctx, q.armedKey, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read next arm: %w", err)
	}
	if len(zs) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(zs[0].Score)).UTC(), true, nil
}

// Due removes and returns up to limit arms due at or before now, earliest
// first. A payload that cannot be decoded is logged and dropped; the task is
// re-armed by the next RecoverArms.
func (q *ArmQueue) Due(ctx context.Context, now time.Time, limit int) ([]Arm, error) {
	if limit <= 0 {
		limit = 100
	}

	upto := strconv.FormatInt(now.UnixMilli(), 10)
	res, err := popDueScript.Run(ctx, q.client, []string{q.armedKey, q.dataKey}, upto, limit).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to pop due arms: %w", err)
	}

	arms := make([]Arm, 0, len(res))
	for _, data := range res {
		var a Arm
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			q.log.Error("Dropping undecodable arm", "error", err, "payload", data)
			continue
		}
		arms = append(arms, a)
	}
	return arms, nil
}

// ListPublisher hands arms to the timer runtime by pushing them onto a Redis
// list that the runtime consumes with BRPOP
type ListPublisher struct {
	client *redis.Client
	list   string
}

// NewListPublisher creates a publisher pushing to list
func NewListPublisher(client *redis.Client, list string) *ListPublisher {
	return &ListPublisher{client: client, list: list}
}

// Dispatch pushes a onto the list
func (p *ListPublisher) Dispatch(ctx context.Context, a Arm) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal arm: %w", err)
	}
	if err := p.client.LPush(ctx, p.list, data).Err(); err != nil {
		return fmt.Errorf("failed to push arm %s to %s: %w", a.ID, p.list, err)
	}
	return nil
}

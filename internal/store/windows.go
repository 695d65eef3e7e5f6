package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/muaviaUsmani/tempo/pkg/overlap"
)

// WindowRecord is a persisted window with the conflict flags computed when it
// was reserved
type WindowRecord struct {
	Window               overlap.Window `json:"window"`
	HasConflict          bool           `json:"has_conflict"`
	ConflictingSchedules []string       `json:"conflicting_schedules,omitempty"`
}

// SaveWindow writes rec into its owner's window hash, replacing any window
// with the same ID
func (s *RedisStore) SaveWindow(ctx context.Context, rec WindowRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal window: %w", err)
	}
	if err := s.client.HSet(ctx, s.windowsKey(rec.Window.Owner), rec.Window.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save window %s: %w", rec.Window.ID, err)
	}
	return nil
}

// ListWindows returns the owner's windows ordered by start, end and ID
func (s *RedisStore) ListWindows(ctx context.Context, owner string) ([]WindowRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.windowsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list windows for %s: %w", owner, err)
	}

	records := make([]WindowRecord, 0, len(raw))
	for id, data := range raw {
		var rec WindowRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal window %s: %w", id, err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Window, records[j].Window
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})
	return records, nil
}

// Windows returns the plain windows of ListWindows, as fed to the detector
func Windows(records []WindowRecord) []overlap.Window {
	out := make([]overlap.Window, len(records))
	for i, rec := range records {
		out[i] = rec.Window
	}
	return out
}

// DeleteWindow removes a window. It returns ErrNotFound if it did not exist.
func (s *RedisStore) DeleteWindow(ctx context.Context, owner, windowID string) error {
	n, err := s.client.HDel(ctx, s.windowsKey(owner), windowID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete window %s: %w", windowID, err)
	}
	if n == 0 {
		return fmt.Errorf("window %s of %s: %w", windowID, owner, ErrNotFound)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/muaviaUsmani/tempo/pkg/dependency"
)

func edgeField(predecessorID, successorID string) string {
	return predecessorID + "->" + successorID
}

// SaveEdge stores e, replacing an existing edge between the same two tasks
func (s *RedisStore) SaveEdge(ctx context.Context, e dependency.Edge) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}
	if err := s.client.HSet(ctx, s.edgesKey, edgeField(e.PredecessorID, e.SuccessorID), data).Err(); err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

// ListEdges returns a snapshot of every edge, ordered by predecessor then
// successor
func (s *RedisStore) ListEdges(ctx context.Context) ([]dependency.Edge, error) {
	raw, err := s.client.HGetAll(ctx, s.edgesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	edges := make([]dependency.Edge, 0, len(raw))
	for field, data := range raw {
		var e dependency.Edge
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge %s: %w", field, err)
		}
		edges = append(edges, e)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].PredecessorID != edges[j].PredecessorID {
			return edges[i].PredecessorID < edges[j].PredecessorID
		}
		return edges[i].SuccessorID < edges[j].SuccessorID
	})
	return edges, nil
}

// DeleteEdge removes the edge from predecessorID to successorID
func (s *RedisStore) DeleteEdge(ctx context.Context, predecessorID, successorID string) error {
	n, err := s.client.HDel(ctx, s.edgesKey, edgeField(predecessorID, successorID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("edge %s: %w", edgeField(predecessorID, successorID), ErrNotFound)
	}
	return nil
}

// DeleteEdgesInvolving removes every edge with taskID as an endpoint and
// returns how many were removed
func (s *RedisStore) DeleteEdgesInvolving(ctx context.Context, taskID string) (int, error) {
	edges, err := s.ListEdges(ctx)
	if err != nil {
		return 0, err
	}

	var fields []string
	for _, e := range edges {
		if dependency.Involves(e, taskID) {
			fields = append(fields, edgeField(e.PredecessorID, e.SuccessorID))
		}
	}
	if len(fields) == 0 {
		return 0, nil
	}

	n, err := s.client.HDel(ctx, s.edgesKey, fields...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete edges of %s: %w", taskID, err)
	}
	return int(n), nil
}

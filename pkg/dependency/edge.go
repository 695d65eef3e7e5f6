// Package dependency validates ordering dependencies between tasks and
// answers reachability queries over a snapshot of dependency edges.
//
// The dependency type is descriptive metadata; the package does not compute
// start or finish dates from it.
package dependency

import (
	"errors"
	"fmt"
	"strings"
)

// Type names which endpoints of the two tasks a dependency constrains
type Type string

const (
	// FinishToStart: successor may start only after predecessor finishes + lag
	FinishToStart Type = "finish_to_start"
	// StartToStart: successor starts when predecessor starts + lag
	StartToStart Type = "start_to_start"
	// FinishToFinish: successor finishes when predecessor finishes + lag
	FinishToFinish Type = "finish_to_finish"
	// StartToFinish: successor finishes after predecessor starts + lag
	StartToFinish Type = "start_to_finish"
)

// Types lists every dependency type
var Types = []Type{FinishToStart, StartToStart, FinishToFinish, StartToFinish}

// Valid reports whether t is a known dependency type
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType accepts the canonical names, case-insensitively, with either
// underscores or hyphens
func ParseType(s string) (Type, error) {
	t := Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

var (
	// ErrUnknownType is returned for a dependency type outside Types
	ErrUnknownType = errors.New("unknown dependency type")
	// ErrEmptyTaskID is returned when an edge endpoint is empty
	ErrEmptyTaskID = errors.New("dependency endpoint task id is empty")
	// ErrCycle is returned by callers that enforce acyclic graphs
	ErrCycle = errors.New("dependency would create a cycle")
)

// SelfDependencyError is returned for an edge from a task to itself
type SelfDependencyError struct {
	TaskID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
}

// InvalidLagError is returned for a negative lag
type InvalidLagError struct {
	LagDays int
}

func (e *InvalidLagError) Error() string {
	return fmt.Sprintf("invalid dependency lag: %d days (must be >= 0)", e.LagDays)
}

// Edge is a directed ordering constraint from PredecessorID to SuccessorID
type Edge struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          Type   `json:"type"`
	LagDays       int    `json:"lag_days"`
}

// AddEdge validates and returns a new edge. It does not persist anything and
// does not check for cycles; see WouldCreateCycle.
func AddEdge(predecessorID, successorID string, t Type, lagDays int) (Edge, error) {
	if predecessorID == "" || successorID == "" {
		return Edge{}, ErrEmptyTaskID
	}
	if predecessorID == successorID {
		return Edge{}, &SelfDependencyError{TaskID: predecessorID}
	}
	if !t.Valid() {
		return Edge{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if lagDays < 0 {
		return Edge{}, &InvalidLagError{LagDays: lagDays}
	}

	return Edge{
		PredecessorID: predecessorID,
		SuccessorID:   successorID,
		Type:          t,
		LagDays:       lagDays,
	}, nil
}

// Involves reports whether taskID is either endpoint of e
func Involves(e Edge, taskID string) bool {
	return e.PredecessorID == taskID || e.SuccessorID == taskID
}

// Without returns the edges that do not involve taskID. Callers use it to
// cascade edge removal when a task is deleted.
func Without(edges []Edge, taskID string) []Edge {
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if !Involves(e, taskID) {
			kept = append(kept, e)
		}
	}
	return kept
}

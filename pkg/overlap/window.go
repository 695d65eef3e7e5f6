// Package overlap detects time-window conflicts between scheduled items.
//
// Windows are half-open intervals [Start, End): two windows that only touch at
// a boundary do not conflict. A single-instant trigger is a window with
// End == Start.
package overlap

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidWindow is returned for a window whose End is before its Start
var ErrInvalidWindow = errors.New("invalid schedule window")

// Window is a scheduled time range owned by a schedulable entity
type Window struct {
	// ID identifies the window within its owner's snapshot
	ID string `json:"id"`
	// Owner is the entity the window belongs to (user, calendar, resource)
	Owner string `json:"owner,omitempty"`
	// Start is inclusive
	Start time.Time `json:"start"`
	// End is exclusive; equal to Start for an instant
	End time.Time `json:"end"`
}

// IsInstant reports whether the window is a single instant
func (w Window) IsInstant() bool {
	return w.End.Equal(w.Start)
}

// Duration returns End - Start
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks End >= Start
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: window %q ends at %s before it starts at %s",
			ErrInvalidWindow, w.ID, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether a and b share any instant:
// a.Start < b.End && a.End > b.Start. The relation is symmetric.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Result is the outcome of a conflict check
type Result struct {
	Owner     string
	Candidate Window
	// Conflicts are ordered by Start, then End, then ID
	Conflicts []Window
}

// HasConflict reports whether any existing window conflicts with the candidate
func (r Result) HasConflict() bool {
	return len(r.Conflicts) > 0
}

// ConflictIDs returns the IDs of the conflicting windows in result order
func (r Result) ConflictIDs() []string {
	ids := make([]string, 0, len(r.Conflicts))
	for _, w := range r.Conflicts {
		ids = append(ids, w.ID)
	}
	return ids
}

// FindOverlaps returns the windows in existing that conflict with candidate.
//
// Windows belonging to another non-empty owner are ignored, as is the window
// whose ID equals excludeID (editing a window must not conflict with itself).
// The detector is advisory; the caller decides whether to reject, warn or
// persist the conflict flag. Because existing is a caller snapshot, detect and
// create must run under the same transaction or per-owner lock to be safe.
func FindOverlaps(owner string, candidate Window, existing []Window, excludeID string) (Result, error) {
	if err := candidate.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{Owner: owner, Candidate: candidate}
	for _, w := range existing {
		if excludeID != "" && w.ID == excludeID {
			continue
		}
		if w.Owner != "" && owner != "" && w.Owner != owner {
			continue
		}
		if Overlaps(candidate, w) {
			result.Conflicts = append(result.Conflicts, w)
		}
	}

	sort.SliceStable(result.Conflicts, func(i, j int) bool {
		a, b := result.Conflicts[i], result.Conflicts[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})

	return result, nil
}

package overlap

import (
	"errors"
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.October, 15, hour, minute, 0, 0, time.UTC)
}

func window(id string, startH, startM, endH, endM int) Window {
	return Window{ID: id, Owner: "alice", Start: at(startH, startM), End: at(endH, endM)}
}

func TestOverlaps_Semantics(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Window
		expected bool
	}{
		{"partial overlap", window("a", 10, 0, 11, 0), window("b", 10, 30, 11, 30), true},
		{"touching boundary", window("a", 10, 0, 11, 0), window("b", 11, 0, 12, 0), false},
		{"contained", window("a", 9, 0, 12, 0), window("b", 10, 0, 10, 15), true},
		{"identical", window("a", 10, 0, 11, 0), window("b", 10, 0, 11, 0), true},
		{"disjoint", window("a", 8, 0, 9, 0), window("b", 10, 0, 11, 0), false},
		{"instant inside", window("a", 10, 0, 11, 0), window("b", 10, 30, 10, 30), true},
		{"instant at start", window("a", 10, 0, 11, 0), window("b", 10, 0, 10, 0), false},
		{"instant at end", window("a", 10, 0, 11, 0), window("b", 11, 0, 11, 0), false},
		{"equal instants", window("a", 10, 0, 10, 0), window("b", 10, 0, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.expected {
				t.Errorf("expected Overlaps(a,b)=%v, got %v", tt.expected, got)
			}
			if Overlaps(tt.a, tt.b) != Overlaps(tt.b, tt.a) {
				t.Error("expected overlap to be symmetric")
			}
		})
	}
}

func TestOverlaps_SymmetricGrid(t *testing.T) {
	var windows []Window
	for start := 0; start < 6; start++ {
		for length := 0; length < 4; length++ {
			windows = append(windows, Window{
				Start: at(8, start*10),
				End:   at(8, start*10+length*15),
			})
		}
	}

	for _, a := range windows {
		for _, b := range windows {
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("asymmetric result for %v / %v", a, b)
			}
		}
	}
}

func TestFindOverlaps_OrderedConflicts(t *testing.T) {
	existing := []Window{
		window("late", 11, 30, 12, 30),
		window("early", 9, 30, 10, 30),
		window("touching", 12, 0, 13, 0),
		window("middle", 10, 45, 11, 15),
		window("before", 8, 0, 9, 0),
	}
	candidate := window("new", 10, 0, 12, 0)

	result, err := FindOverlaps("alice", candidate, existing, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.HasConflict() {
		t.Fatal("expected conflicts")
	}

	ids := result.ConflictIDs()
	expected := []string{"early", "middle", "late"}
	if len(ids) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, ids)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, ids)
			break
		}
	}
}

func TestFindOverlaps_ExcludeOwnWindow(t *testing.T) {
	existing := []Window{window("mine", 10, 0, 11, 0)}

	// Moving my own window by 15 minutes must not conflict with its old position
	edited := window("mine", 10, 15, 11, 15)
	result, err := FindOverlaps("alice", edited, existing, "mine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasConflict() {
		t.Errorf("expected no conflict, got %v", result.ConflictIDs())
	}

	result, _ = FindOverlaps("alice", edited, existing, "")
	if !result.HasConflict() {
		t.Error("expected conflict when nothing is excluded")
	}
}

func TestFindOverlaps_IgnoresOtherOwners(t *testing.T) {
	other := window("bob-1", 10, 0, 11, 0)
	other.Owner = "bob"
	unowned := window("shared", 10, 0, 11, 0)
	unowned.Owner = ""

	result, err := FindOverlaps("alice", window("new", 10, 0, 11, 0), []Window{other, unowned}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := result.ConflictIDs()
	if len(ids) != 1 || ids[0] != "shared" {
		t.Errorf("expected only the unowned window, got %v", ids)
	}
}

func TestFindOverlaps_InvalidCandidate(t *testing.T) {
	_, err := FindOverlaps("alice", window("bad", 11, 0, 10, 0), nil, "")
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestFindOverlaps_EmptySnapshot(t *testing.T) {
	result, err := FindOverlaps("alice", window("new", 10, 0, 11, 0), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasConflict() {
		t.Error("expected no conflicts against an empty snapshot")
	}
	if len(result.ConflictIDs()) != 0 {
		t.Error("expected empty conflict id list")
	}
}

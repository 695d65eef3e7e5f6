package trigger

import (
	"errors"
	"testing"
	"time"
)

func TestCompileTrigger_Literals(t *testing.T) {
	tests := []struct {
		name     string
		spec     Recurrence
		expected Expression
	}{
		{"daily", Daily{Hour: 9, Minute: 0}, "0 9 * * *"},
		{"weekly", Weekly{DayOfWeek: 1, Hour: 10, Minute: 30}, "30 10 * * 1"},
		{"monthly", Monthly{DayOfMonth: 15, Hour: 14, Minute: 30}, "30 14 15 * *"},
		{"every 15 minutes", EveryNMinutes{Minutes: 15}, "*/15 * * * *"},
		{"every 2 hours at :05", EveryNHours{Hours: 2, StartMinute: 5}, "5 */2 * * *"},
		{"custom", Custom{Expression: "  0  8 * *   1-5 "}, "0 8 * * 1-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := CompileTrigger(tt.spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if expr != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, expr)
			}
			if !IsValidExpression(expr.String()) {
				t.Errorf("compiled expression %q does not validate", expr)
			}
		})
	}
}

func TestCompileTrigger_None(t *testing.T) {
	for _, spec := range []Recurrence{None{}, nil} {
		expr, err := CompileTrigger(spec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !expr.IsZero() {
			t.Errorf("expected empty expression, got %q", expr)
		}
	}
}

func TestCompileTrigger_RangeErrors(t *testing.T) {
	tests := []struct {
		name       string
		spec       Recurrence
		field      string
		validRange string
	}{
		{"hour too large", Daily{Hour: 24, Minute: 0}, "hour", "[0,23]"},
		{"negative minute", Daily{Hour: 1, Minute: -1}, "minute", "[0,59]"},
		{"day of week 7", Weekly{DayOfWeek: 7, Hour: 1, Minute: 0}, "dayOfWeek", "[0,6]"},
		{"day of month 0", Monthly{DayOfMonth: 0, Hour: 1, Minute: 0}, "dayOfMonth", "[1,31]"},
		{"day of month 32", Monthly{DayOfMonth: 32, Hour: 1, Minute: 0}, "dayOfMonth", "[1,31]"},
		{"zero minute step", EveryNMinutes{Minutes: 0}, "minutes", "[1,59]"},
		{"minute step 60", EveryNMinutes{Minutes: 60}, "minutes", "[1,59]"},
		{"hour step 24", EveryNHours{Hours: 24}, "hours", "[1,23]"},
		{"start minute 60", EveryNHours{Hours: 3, StartMinute: 60}, "startMinute", "[0,59]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileTrigger(tt.spec)
			var rangeErr *InvalidRecurrenceError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected InvalidRecurrenceError, got %v", err)
			}
			if rangeErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, rangeErr.Field)
			}
			if rangeErr.ValidRange != tt.validRange {
				t.Errorf("expected range %s, got %s", tt.validRange, rangeErr.ValidRange)
			}
		})
	}
}

func TestCompileTrigger_InvalidCustom(t *testing.T) {
	_, err := CompileTrigger(Custom{Expression: "every monday"})
	var exprErr *InvalidTriggerExpressionError
	if !errors.As(err, &exprErr) {
		t.Fatalf("expected InvalidTriggerExpressionError, got %v", err)
	}
}

func TestCompileOneShot(t *testing.T) {
	at := time.Date(2026, time.November, 3, 14, 5, 0, 0, time.UTC)
	if got := CompileOneShot(at); got != "5 14 3 11 * 2026" {
		t.Errorf("expected %q, got %q", "5 14 3 11 * 2026", got)
	}

	// Sub-minute instants round up so the trigger never fires early
	late := time.Date(2026, time.December, 31, 23, 59, 30, 0, time.UTC)
	if got := CompileOneShot(late); got != "0 0 1 1 * 2027" {
		t.Errorf("expected rollover to 2027, got %q", got)
	}

	// Non-UTC instants are normalised to UTC
	loc := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2026, time.March, 1, 1, 0, 0, 0, loc)
	if got := CompileOneShot(local); got != "0 23 28 2 * 2026" {
		t.Errorf("expected UTC conversion, got %q", got)
	}

	if !CompileOneShot(at).HasYear() {
		t.Error("expected one-shot expression to carry a year")
	}
}

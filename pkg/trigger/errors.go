package trigger

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a recurrence document fails schema validation
var ErrInvalidDocument = errors.New("invalid recurrence document")

// InvalidRecurrenceError reports a recurrence field outside its valid range
type InvalidRecurrenceError struct {
	Field      string
	Value      int
	ValidRange string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence: %s=%d outside valid range %s", e.Field, e.Value, e.ValidRange)
}

// InvalidTriggerExpressionError reports a malformed trigger expression
type InvalidTriggerExpressionError struct {
	Expression string
	Reason     string
}

func (e *InvalidTriggerExpressionError) Error() string {
	return fmt.Sprintf("invalid trigger expression %q: %s", e.Expression, e.Reason)
}

func checkRange(field string, value, lo, hi int) error {
	if value < lo || value > hi {
		return &InvalidRecurrenceError{
			Field:      field,
			Value:      value,
			ValidRange: fmt.Sprintf("[%d,%d]", lo, hi),
		}
	}
	return nil
}

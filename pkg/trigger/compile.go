package trigger

import (
	"fmt"
	"time"
)

// CompileTrigger converts a recurrence into a trigger expression.
//
// None compiles to the empty expression with a nil error; callers should treat
// an empty expression as "nothing to arm". Custom expressions are checked
// structurally with ValidateExpression.
//
// Examples:
//
//	Daily{Hour: 9, Minute: 0}                   -> "0 9 * * *"
//	Weekly{DayOfWeek: 1, Hour: 10, Minute: 30}  -> "30 10 * * 1"
//	Monthly{DayOfMonth: 15, Hour: 14, Minute: 30} -> "30 14 15 * *"
//	EveryNMinutes{Minutes: 15}                  -> "*/15 * * * *"
//	EveryNHours{Hours: 2, StartMinute: 5}       -> "5 */2 * * *"
func CompileTrigger(r Recurrence) (Expression, error) {
	switch spec := r.(type) {
	case nil, None:
		return "", nil

	case Daily:
		if err := checkTimeOfDay(spec.Hour, spec.Minute); err != nil {
			return "", err
		}
		return Expression(fmt.Sprintf("%d %d * * *", spec.Minute, spec.Hour)), nil

	case Weekly:
		if err := checkRange("dayOfWeek", spec.DayOfWeek, 0, 6); err != nil {
			return "", err
		}
		if err := checkTimeOfDay(spec.Hour, spec.Minute); err != nil {
			return "", err
		}
		return Expression(fmt.Sprintf("%d %d * * %d", spec.Minute, spec.Hour, spec.DayOfWeek)), nil

	case Monthly:
		if err := checkRange("dayOfMonth", spec.DayOfMonth, 1, 31); err != nil {
			return "", err
		}
		if err := checkTimeOfDay(spec.Hour, spec.Minute); err != nil {
			return "", err
		}
		return Expression(fmt.Sprintf("%d %d %d * *", spec.Minute, spec.Hour, spec.DayOfMonth)), nil

	case EveryNMinutes:
		if err := checkRange("minutes", spec.Minutes, 1, 59); err != nil {
			return "", err
		}
		return Expression(fmt.Sprintf("*/%d * * * *", spec.Minutes)), nil

	case EveryNHours:
		if err := checkRange("hours", spec.Hours, 1, 23); err != nil {
			return "", err
		}
		if err := checkRange("startMinute", spec.StartMinute, 0, 59); err != nil {
			return "", err
		}
		return Expression(fmt.Sprintf("%d */%d * * *", spec.StartMinute, spec.Hours)), nil

	case Custom:
		if err := ValidateExpression(spec.Expression); err != nil {
			return "", err
		}
		return Expression(spec.Expression).normalize(), nil

	default:
		return "", fmt.Errorf("unsupported recurrence type %T", r)
	}
}

// CompileOneShot builds a fully qualified expression (including the year) that
// fires once at the given instant. The instant is converted to UTC and rounded
// up to the next whole minute, so the trigger never fires early.
func CompileOneShot(at time.Time) Expression {
	at = at.UTC()
	if truncated := at.Truncate(time.Minute); !truncated.Equal(at) {
		at = truncated.Add(time.Minute)
	}
	return Expression(fmt.Sprintf("%d %d %d %d * %d",
		at.Minute(), at.Hour(), at.Day(), int(at.Month()), at.Year()))
}

func checkTimeOfDay(hour, minute int) error {
	if err := checkRange("hour", hour, 0, 23); err != nil {
		return err
	}
	return checkRange("minute", minute, 0, 59)
}

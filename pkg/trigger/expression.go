package trigger

import (
	"fmt"
	"regexp"
	"strings"
)

// Expression is a cron-style trigger string
type Expression string

var (
	// fieldPattern is the structural alphabet accepted for every field
	fieldPattern = regexp.MustCompile(`^[0-9,\-*/]+$`)

	fieldNames = [...]string{"minute", "hour", "day-of-month", "month", "day-of-week", "year"}
)

// String returns the expression text
func (e Expression) String() string {
	return string(e)
}

// IsZero reports whether the expression is empty (nothing to arm)
func (e Expression) IsZero() bool {
	return strings.TrimSpace(string(e)) == ""
}

// Fields splits the expression on whitespace
func (e Expression) Fields() []string {
	return strings.Fields(string(e))
}

// HasYear reports whether the expression carries the optional year field
func (e Expression) HasYear() bool {
	return len(e.Fields()) == 6
}

func (e Expression) normalize() Expression {
	return Expression(strings.Join(e.Fields(), " "))
}

// ValidateExpression checks the structure of a trigger expression: 5 or 6
// whitespace-separated fields, each made only of digits and ",-*/".
//
// The check is structural only. Semantically unreachable expressions such as
// "0 0 30 2 *" (February 30) pass; NextFire reports them as never firing.
func ValidateExpression(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) < 5 || len(fields) > 6 {
		return &InvalidTriggerExpressionError{
			Expression: expr,
			Reason:     fmt.Sprintf("expected 5 or 6 fields, got %d", len(fields)),
		}
	}

	for i, field := range fields {
		if !fieldPattern.MatchString(field) {
			return &InvalidTriggerExpressionError{
				Expression: expr,
				Reason:     fmt.Sprintf("%s field %q contains characters outside [0-9,-*/]", fieldNames[i], field),
			}
		}
	}

	return nil
}

// IsValidExpression reports whether expr passes ValidateExpression
func IsValidExpression(expr string) bool {
	return ValidateExpression(expr) == nil
}

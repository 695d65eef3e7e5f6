package trigger

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts the standard five cron fields; the optional year is handled here
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextFire returns the first instant strictly after `after` at which expr
// fires, evaluated in loc (UTC when nil).
//
// ok is false when the expression can never fire again: a one-shot whose year
// has passed, or a date that does not exist in any reachable year (Feb 30).
func NextFire(expr Expression, after time.Time, loc *time.Location) (next time.Time, ok bool, err error) {
	if err := ValidateExpression(string(expr)); err != nil {
		return time.Time{}, false, err
	}

	fields := expr.Fields()
	schedule, err := parser.Parse(strings.Join(fields[:5], " "))
	if err != nil {
		return time.Time{}, false, &InvalidTriggerExpressionError{Expression: string(expr), Reason: err.Error()}
	}

	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc)

	if len(fields) == 5 {
		next = schedule.Next(t)
		return next, !next.IsZero(), nil
	}

	years, err := parseYearField(fields[5])
	if err != nil {
		return time.Time{}, false, &InvalidTriggerExpressionError{Expression: string(expr), Reason: err.Error()}
	}

	for {
		next = schedule.Next(t)
		if next.IsZero() {
			return time.Time{}, false, nil
		}
		year := next.Year()
		if years.matches(year) {
			return next, true, nil
		}
		candidate, found := years.after(year)
		if !found {
			return time.Time{}, false, nil
		}
		// Resume the search just before the first instant of the next allowed year
		t = time.Date(candidate, time.January, 1, 0, 0, 0, 0, loc).Add(-time.Second)
	}
}

// yearSet is the parsed year field of a six-field expression
type yearSet struct {
	any    bool
	values []int // sorted, deduplicated
}

func (y yearSet) matches(year int) bool {
	if y.any {
		return true
	}
	i := sort.SearchInts(y.values, year)
	return i < len(y.values) && y.values[i] == year
}

// after returns the smallest allowed year strictly greater than year
func (y yearSet) after(year int) (int, bool) {
	if y.any {
		if year == math.MaxInt {
			return 0, false
		}
		return year + 1, true
	}
	i := sort.SearchInts(y.values, year+1)
	if i == len(y.values) {
		return 0, false
	}
	return y.values[i], true
}

// maxYearSpan bounds year ranges so a typo cannot allocate unbounded memory
const maxYearSpan = 1000

// parseYearField accepts "*", single years, comma lists and ranges ("2026-2028").
func parseYearField(field string) (yearSet, error) {
	if field == "*" {
		return yearSet{any: true}, nil
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return yearSet{}, fmt.Errorf("empty entry in year field %q", field)
		}
		if strings.Contains(part, "/") || strings.Contains(part, "*") {
			return yearSet{}, fmt.Errorf("year field %q: steps and wildcards inside lists are not supported", field)
		}

		lo, hi := part, part
		if idx := strings.Index(part, "-"); idx >= 0 {
			lo, hi = part[:idx], part[idx+1:]
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return yearSet{}, fmt.Errorf("year field %q: %w", field, err)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return yearSet{}, fmt.Errorf("year field %q: %w", field, err)
		}
		if end < start {
			return yearSet{}, fmt.Errorf("year field %q: range end before start", field)
		}
		if end-start > maxYearSpan {
			return yearSet{}, fmt.Errorf("year field %q: range wider than %d years", field, maxYearSpan)
		}
		for year := start; year <= end; year++ {
			seen[year] = struct{}{}
		}
	}

	values := make([]int, 0, len(seen))
	for year := range seen {
		values = append(values, year)
	}
	sort.Ints(values)
	return yearSet{values: values}, nil
}

// Package trigger compiles recurrence specifications into cron-style trigger
// expressions and evaluates them.
//
// Expressions use the fields "minute hour day-of-month month day-of-week"
// with an optional trailing year for one-shot triggers.
package trigger

// Kind identifies a recurrence variant
type Kind string

const (
	// KindNone marks a task that does not recur
	KindNone Kind = "none"
	// KindDaily fires every day at a fixed time
	KindDaily Kind = "daily"
	// KindWeekly fires once a week on a fixed day
	KindWeekly Kind = "weekly"
	// KindMonthly fires once a month on a fixed day
	KindMonthly Kind = "monthly"
	// KindEveryNMinutes fires on a minute step
	KindEveryNMinutes Kind = "every_n_minutes"
	// KindEveryNHours fires on an hour step at a fixed minute
	KindEveryNHours Kind = "every_n_hours"
	// KindCustom carries a caller-supplied trigger expression
	KindCustom Kind = "custom"
)

// Recurrence is a recurrence specification. The set of implementations is
// closed: None, Daily, Weekly, Monthly, EveryNMinutes, EveryNHours and Custom.
type Recurrence interface {
	Kind() Kind
	isRecurrence()
}

// None is the absence of recurrence
type None struct{}

// Daily fires every day at Hour:Minute
type Daily struct {
	Hour   int
	Minute int
}

// Weekly fires every week on DayOfWeek (0 = Sunday) at Hour:Minute
type Weekly struct {
	DayOfWeek int
	Hour      int
	Minute    int
}

// Monthly fires every month on DayOfMonth at Hour:Minute
type Monthly struct {
	DayOfMonth int
	Hour       int
	Minute     int
}

// EveryNMinutes fires every Minutes minutes
type EveryNMinutes struct {
	Minutes int
}

// EveryNHours fires every Hours hours at StartMinute past the hour
type EveryNHours struct {
	Hours       int
	StartMinute int
}

// Custom wraps a trigger expression written by the caller
type Custom struct {
	Expression string
}

func (None) Kind() Kind          { return KindNone }
func (Daily) Kind() Kind         { return KindDaily }
func (Weekly) Kind() Kind        { return KindWeekly }
func (Monthly) Kind() Kind       { return KindMonthly }
func (EveryNMinutes) Kind() Kind { return KindEveryNMinutes }
func (EveryNHours) Kind() Kind   { return KindEveryNHours }
func (Custom) Kind() Kind        { return KindCustom }

func (None) isRecurrence()          {}
func (Daily) isRecurrence()         {}
func (Weekly) isRecurrence()        {}
func (Monthly) isRecurrence()       {}
func (EveryNMinutes) isRecurrence() {}
func (EveryNHours) isRecurrence()   {}
func (Custom) isRecurrence()        {}

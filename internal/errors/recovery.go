package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic recovered from a dispatch callback
type PanicError struct {
	Value      interface{}
	Stacktrace string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// FromPanic wraps a value returned by recover() as a *PanicError. It returns
// nil for a nil value.
func FromPanic(r interface{}) error {
	if r == nil {
		return nil
	}
	return &PanicError{
		Value:      r,
		Stacktrace: string(debug.Stack()),
	}
}

// SafeCall runs fn and returns its error, or a *PanicError if fn panics
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FromPanic(r)
		}
	}()
	return fn()
}

// FormatPanicForLog returns the panic value and stack trace as one string
func FormatPanicForLog(panicErr *PanicError) string {
	return fmt.Sprintf("PANIC: %v\n\nStack Trace:\n%s", panicErr.Value, panicErr.Stacktrace)
}

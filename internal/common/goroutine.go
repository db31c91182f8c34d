package common

import (
	"fmt"
	"runtime"

	"github.com/ternarybob/arbor"
)

// PanicError is a recovered panic turned into an error
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeCall runs fn and converts a panic into a *PanicError so one bad
// subject cannot take down the rest of a run.
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			pe := &PanicError{Name: name, Value: r, Stack: string(buf[:n])}

			if logger != nil {
				logger.Error().
					Str("call", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", pe.Stack).
					Msg("Recovered from panic")
			}
			err = pe
		}
	}()
	return fn()
}

// SafeGo runs fn in a goroutine, logging and discarding any panic
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		_ = SafeCall(logger, name, func() error {
			fn()
			return nil
		})
	}()
}

package engine

import (
	"fmt"

	"ssakit/internal/errors"
)

// Fault is a runtime error raised while executing a module: a bad memory
// access, division by zero, an unresolved external and so on. Execution
// stops at the first fault.
type Fault struct {
	Function string
	Block    string
	Reason   string
}

func (f *Fault) Error() string {
	loc := errors.Location{Function: f.Function, Block: f.Block}
	if loc.IsZero() {
		return "runtime fault: " + f.Reason
	}
	return fmt.Sprintf("runtime fault in %s: %s", loc, f.Reason)
}

func faultf(format string, args ...any) *Fault {
	return &Fault{Reason: fmt.Sprintf(format, args...)}
}

// at fills in the location of a fault raised below the block level
func at(err error, fn, block string) error {
	if f, ok := err.(*Fault); ok && f.Function == "" {
		f.Function, f.Block = fn, block
	}
	return err
}

// InitError is returned when an engine cannot be created
type InitError struct {
	Diagnostic errors.Diagnostic
}

func (e *InitError) Error() string { return e.Diagnostic.String() }

func initError(code, format string, args ...any) *InitError {
	return &InitError{Diagnostic: errors.NewDiagnostic(code, fmt.Sprintf(format, args...)).Build()}
}

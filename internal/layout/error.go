package layout

import (
	"fmt"
	"strings"

	"ssakit/internal/ir"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrIncomplete is a named struct whose body was never assigned.
	LayoutErrIncomplete LayoutErrorKind = iota + 1
	// LayoutErrRecursive is a struct that contains itself by value.
	LayoutErrRecursive
	// LayoutErrUnsized is a type without storage: void, label, function.
	LayoutErrUnsized
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  ir.Type
	Cycle []ir.Type // for LayoutErrRecursive
	Err   error
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrIncomplete:
		return fmt.Sprintf("struct %s has no body", e.Type)
	case LayoutErrRecursive:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (%s)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, t := range e.Cycle {
			parts = append(parts, t.String())
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrUnsized:
		if e.Err != nil {
			return fmt.Sprintf("type %s has no size: %v", e.Type, e.Err)
		}
		return fmt.Sprintf("type %s has no size", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type %s", e.Kind, e.Type)
	}
}

func (e *LayoutError) Unwrap() error { return e.Err }

package ir

import "fmt"

// ContractViolation is the panic value raised when the construction API is
// misused: an out-of-range parameter or field index, phi incoming lists of
// different lengths, emitting without an insertion position. These are
// defects in the caller's construction logic, so they abort instead of
// producing a half-built module. Ill-formed IR is never reported this way;
// it is found by Verify.
type ContractViolation struct {
	Op     string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("ir: contract violation in %s: %s", e.Op, e.Reason)
}

func violate(op, format string, args ...any) {
	panic(&ContractViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
}

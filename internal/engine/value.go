package engine

import (
	"fmt"
	"math"
)

// ValueKind tags a GenericValue
type ValueKind uint8

const (
	VoidValue ValueKind = iota
	IntKind
	PointerKind
	FloatKind
	DoubleKind
	AggregateKind
)

// GenericValue is a width- and kind-tagged value passed to and returned
// from executed functions
type GenericValue struct {
	kind  ValueKind
	width uint32
	bits  uint64
	agg   []GenericValue
}

// IntValue encodes an integer of the given bit width. Bits above the width
// are discarded.
func IntValue(width uint32, v uint64) GenericValue {
	return GenericValue{kind: IntKind, width: width, bits: v & mask(width)}
}

// SIntValue encodes a signed integer of the given bit width
func SIntValue(width uint32, v int64) GenericValue {
	return IntValue(width, uint64(v))
}

func PointerValue(addr uint64) GenericValue {
	return GenericValue{kind: PointerKind, width: 64, bits: addr}
}

func FloatValue(f float32) GenericValue {
	return GenericValue{kind: FloatKind, width: 32, bits: uint64(math.Float32bits(f))}
}

func DoubleValue(f float64) GenericValue {
	return GenericValue{kind: DoubleKind, width: 64, bits: math.Float64bits(f)}
}

func (g GenericValue) Kind() ValueKind  { return g.kind }
func (g GenericValue) IntWidth() uint32 { return g.width }
func (g GenericValue) IsVoid() bool     { return g.kind == VoidValue }

// Int returns the value zero-extended to 64 bits
func (g GenericValue) Int() uint64 { return g.bits }

// IntAs returns the value truncated or zero-extended to width bits
func (g GenericValue) IntAs(width uint32) uint64 { return g.bits & mask(width) }

// SInt returns the value sign-extended from its width
func (g GenericValue) SInt() int64 { return signExtend(g.bits, g.width) }

func (g GenericValue) Pointer() uint64 { return g.bits }

// Float returns the value at single precision; doubles are rounded
func (g GenericValue) Float() float32 {
	if g.kind == DoubleKind {
		return float32(math.Float64frombits(g.bits))
	}
	return math.Float32frombits(uint32(g.bits))
}

// Double returns the value at double precision; floats are widened
func (g GenericValue) Double() float64 {
	if g.kind == FloatKind {
		return float64(math.Float32frombits(uint32(g.bits)))
	}
	return math.Float64frombits(g.bits)
}

// Fields returns the elements of an aggregate result
func (g GenericValue) Fields() []GenericValue {
	return append([]GenericValue(nil), g.agg...)
}

func (g GenericValue) String() string {
	switch g.kind {
	case IntKind:
		return fmt.Sprintf("i%d %d", g.width, g.bits)
	case PointerKind:
		return fmt.Sprintf("ptr 0x%x", g.bits)
	case FloatKind:
		return fmt.Sprintf("float %g", g.Float())
	case DoubleKind:
		return fmt.Sprintf("double %g", g.Double())
	case AggregateKind:
		return fmt.Sprintf("aggregate(%d)", len(g.agg))
	default:
		return "void"
	}
}

func mask(width uint32) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func signExtend(v uint64, width uint32) int64 {
	if width == 0 || width >= 64 {
		return int64(v)
	}
	shift := 64 - width
	return int64(v<<shift) >> shift
}

package ir

import (
	"fmt"
	"strings"

	"ssakit/internal/intern"
)

// TypeKind classifies a Type
type TypeKind uint8

const (
	VoidKind TypeKind = iota
	LabelKind
	IntegerKind
	FloatKind
	DoubleKind
	PointerKind
	FunctionKind
	StructKind
)

func (k TypeKind) String() string {
	switch k {
	case VoidKind:
		return "void"
	case LabelKind:
		return "label"
	case IntegerKind:
		return "integer"
	case FloatKind:
		return "float"
	case DoubleKind:
		return "double"
	case PointerKind:
		return "pointer"
	case FunctionKind:
		return "function"
	case StructKind:
		return "struct"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// TypeID is the index of a type in its Context's type arena
type TypeID uint32

// Type is implemented by every IR type. Types are interned per Context:
// two structurally equal types obtained from the same Context are the same
// pointer, so types compare with ==.
type Type interface {
	Kind() TypeKind
	ID() TypeID
	Context() *Context
	String() string
	isType()
}

type typeBase struct {
	ctx *Context
	id  TypeID
}

func (t *typeBase) ID() TypeID        { return t.id }
func (t *typeBase) Context() *Context { return t.ctx }
func (t *typeBase) isType()           {}

// VoidType is the type of instructions that produce no value
type VoidType struct{ typeBase }

func (*VoidType) Kind() TypeKind { return VoidKind }
func (*VoidType) String() string { return "void" }

// LabelType is the type of basic block references
type LabelType struct{ typeBase }

func (*LabelType) Kind() TypeKind { return LabelKind }
func (*LabelType) String() string { return "label" }

// IntType is an integer of a fixed bit width
type IntType struct {
	typeBase
	bits uint32
}

func (*IntType) Kind() TypeKind   { return IntegerKind }
func (t *IntType) Bits() uint32   { return t.bits }
func (t *IntType) String() string { return fmt.Sprintf("i%d", t.bits) }

// Mask returns the bit mask covering the type's width
func (t *IntType) Mask() uint64 {
	if t.bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << t.bits) - 1
}

// FloatType is a single or double precision IEEE float
type FloatType struct {
	typeBase
	kind TypeKind
}

func (t *FloatType) Kind() TypeKind { return t.kind }

func (t *FloatType) String() string {
	if t.kind == FloatKind {
		return "float"
	}
	return "double"
}

// PointerType points at values of its element type. The element may be an
// opaque struct.
type PointerType struct {
	typeBase
	elem Type
}

func (*PointerType) Kind() TypeKind   { return PointerKind }
func (t *PointerType) Elem() Type     { return t.elem }
func (t *PointerType) String() string { return t.elem.String() + "*" }

// FuncType is a function signature
type FuncType struct {
	typeBase
	ret      Type
	params   []Type
	variadic bool
}

func (*FuncType) Kind() TypeKind    { return FunctionKind }
func (t *FuncType) Return() Type    { return t.ret }
func (t *FuncType) ParamCount() int { return len(t.params) }
func (t *FuncType) IsVariadic() bool {
	return t.variadic
}

// Params returns a copy of the parameter types
func (t *FuncType) Params() []Type {
	return append([]Type(nil), t.params...)
}

// Param returns the i-th parameter type
func (t *FuncType) Param(i int) Type {
	if i < 0 || i >= len(t.params) {
		violate("FuncType.Param", "index %d out of range [0, %d)", i, len(t.params))
	}
	return t.params[i]
}

func (t *FuncType) String() string {
	parts := make([]string, 0, len(t.params)+1)
	for _, p := range t.params {
		parts = append(parts, p.String())
	}
	if t.variadic {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s (%s)", t.ret, strings.Join(parts, ", "))
}

// StructType is either anonymous (structurally interned, body fixed at
// creation) or named. A named struct starts opaque: pointers to it can be
// formed immediately and its body is assigned later with SetBody.
type StructType struct {
	typeBase
	name      intern.Handle
	named     bool
	fields    []Type
	packed    bool
	bodyCount int
}

func (*StructType) Kind() TypeKind { return StructKind }

// Name returns the struct's name, or "" for anonymous structs
func (t *StructType) Name() string {
	if !t.named {
		return ""
	}
	return t.ctx.names.String(t.name)
}

func (t *StructType) IsNamed() bool  { return t.named }
func (t *StructType) IsPacked() bool { return t.packed }

// IsOpaque reports whether the struct still has no body
func (t *StructType) IsOpaque() bool { return t.bodyCount == 0 }

// BodyAssignments is how many times a body has been assigned. Anything
// other than one for a named struct in use is a verification error.
func (t *StructType) BodyAssignments() int { return t.bodyCount }

func (t *StructType) FieldCount() int { return len(t.fields) }

// Fields returns a copy of the field types
func (t *StructType) Fields() []Type {
	return append([]Type(nil), t.fields...)
}

// Field returns the i-th field type; the index must be in range
func (t *StructType) Field(i int) Type {
	if i < 0 || i >= len(t.fields) {
		violate("StructType.Field", "field index %d out of range for %s with %d fields", i, t, len(t.fields))
	}
	return t.fields[i]
}

// SetBody assigns the field list of a named struct. It is meant to be
// called exactly once; repeated calls replace the body and are reported
// by module verification.
func (t *StructType) SetBody(fields []Type, packed bool) {
	if !t.named {
		violate("StructType.SetBody", "anonymous struct %s already has a body", t)
	}
	t.fields = append([]Type(nil), fields...)
	t.packed = packed
	t.bodyCount++
}

func (t *StructType) String() string {
	if t.named {
		return "%" + t.Name()
	}
	return t.BodyString()
}

// BodyString renders the field list, e.g. "{ i32, %Pair* }"
func (t *StructType) BodyString() string {
	if t.named && t.bodyCount == 0 {
		return "opaque"
	}
	parts := make([]string, len(t.fields))
	for i, f := range t.fields {
		parts[i] = f.String()
	}
	body := "{ " + strings.Join(parts, ", ") + " }"
	if len(t.fields) == 0 {
		body = "{}"
	}
	if t.packed {
		return "<" + body + ">"
	}
	return body
}

// IsSized reports whether values of t have a known layout. Opaque structs,
// structs that contain themselves by value, void, labels and function
// types are unsized.
func IsSized(t Type) bool {
	return isSized(t, map[*StructType]bool{})
}

func isSized(t Type, visiting map[*StructType]bool) bool {
	switch t := t.(type) {
	case *IntType, *FloatType, *PointerType:
		return true
	case *StructType:
		if t.IsOpaque() || visiting[t] {
			return false
		}
		visiting[t] = true
		defer delete(visiting, t)
		for _, f := range t.fields {
			if !isSized(f, visiting) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsInteger reports whether t is an integer type, optionally of the given width
func IsInteger(t Type, bits ...uint32) bool {
	it, ok := t.(*IntType)
	if !ok {
		return false
	}
	return len(bits) == 0 || it.bits == bits[0]
}

// IsFloat reports whether t is float or double
func IsFloat(t Type) bool {
	_, ok := t.(*FloatType)
	return ok
}

// IsPointer reports whether t is a pointer type
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

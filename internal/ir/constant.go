package ir

import (
	"math"
	"strconv"
	"strings"
)

// ConstKind classifies a constant
type ConstKind uint8

const (
	ConstIntKind ConstKind = iota
	ConstFloatKind
	ConstNullKind
	ConstUndefKind
	ConstStructKind
)

// Const is an interned compile-time constant
type Const struct {
	typ    Type
	kind   ConstKind
	bits   uint64
	signed bool
	fields []*Const
}

type constKey struct {
	typ    TypeID
	kind   ConstKind
	bits   uint64
	signed bool
	fields string
}

func (c *Const) Type() Type      { return c.typ }
func (c *Const) Name() string    { return "" }
func (c *Const) Kind() ConstKind { return c.kind }
func (*Const) valueNode()        {}

// IsSigned reports whether the constant was created as signed. It only
// affects how the value is rendered.
func (c *Const) IsSigned() bool { return c.signed }

// ZExtValue returns the stored bit pattern
func (c *Const) ZExtValue() uint64 { return c.bits }

// SExtValue returns the bit pattern sign-extended from the type's width
func (c *Const) SExtValue() int64 {
	it, ok := c.typ.(*IntType)
	if !ok || it.bits >= 64 {
		return int64(c.bits)
	}
	shift := 64 - it.bits
	return int64(c.bits<<shift) >> shift
}

// Float returns the value of a floating constant
func (c *Const) Float() float64 { return math.Float64frombits(c.bits) }

// Fields returns the elements of a struct constant
func (c *Const) Fields() []*Const { return append([]*Const(nil), c.fields...) }

func (c *Const) String() string {
	switch c.kind {
	case ConstIntKind:
		if IsInteger(c.typ, 1) {
			if c.bits != 0 {
				return "true"
			}
			return "false"
		}
		if c.signed {
			return strconv.FormatInt(c.SExtValue(), 10)
		}
		return strconv.FormatUint(c.bits, 10)
	case ConstFloatKind:
		return strconv.FormatFloat(c.Float(), 'e', -1, 64)
	case ConstNullKind:
		return "null"
	case ConstUndefKind:
		return "undef"
	case ConstStructKind:
		parts := make([]string, len(c.fields))
		for i, f := range c.fields {
			parts[i] = f.typ.String() + " " + f.String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	return "?"
}

func (ctx *Context) constant(key constKey, make func() *Const) *Const {
	if c, ok := ctx.consts[key]; ok {
		return c
	}
	c := make()
	ctx.consts[key] = c
	return c
}

// ConstInt creates an integer constant. v is truncated to the width of t;
// signed only selects signed rendering, the stored bits are identical.
func (ctx *Context) ConstInt(t *IntType, v uint64, signed bool) *Const {
	ctx.own("Context.ConstInt", t)
	bits := v & t.Mask()
	key := constKey{typ: t.id, kind: ConstIntKind, bits: bits, signed: signed}
	return ctx.constant(key, func() *Const {
		return &Const{typ: t, kind: ConstIntKind, bits: bits, signed: signed}
	})
}

// SInt creates a signed integer constant of the given width
func (ctx *Context) SInt(bits uint32, v int64) *Const {
	return ctx.ConstInt(ctx.IntType(bits), uint64(v), true)
}

// UInt creates an unsigned integer constant of the given width
func (ctx *Context) UInt(bits uint32, v uint64) *Const {
	return ctx.ConstInt(ctx.IntType(bits), v, false)
}

// Bool creates an i1 constant
func (ctx *Context) Bool(b bool) *Const {
	if b {
		return ctx.UInt(1, 1)
	}
	return ctx.UInt(1, 0)
}

// ConstFloat creates a float or double constant. Single precision values
// are rounded to float32 on creation.
func (ctx *Context) ConstFloat(t *FloatType, v float64) *Const {
	ctx.own("Context.ConstFloat", t)
	if t.kind == FloatKind {
		v = float64(float32(v))
	}
	bits := math.Float64bits(v)
	key := constKey{typ: t.id, kind: ConstFloatKind, bits: bits}
	return ctx.constant(key, func() *Const {
		return &Const{typ: t, kind: ConstFloatKind, bits: bits}
	})
}

// ConstNull creates the null pointer of type t
func (ctx *Context) ConstNull(t *PointerType) *Const {
	ctx.own("Context.ConstNull", t)
	key := constKey{typ: t.id, kind: ConstNullKind}
	return ctx.constant(key, func() *Const {
		return &Const{typ: t, kind: ConstNullKind}
	})
}

// Undef creates an undefined value of type t
func (ctx *Context) Undef(t Type) *Const {
	ctx.own("Context.Undef", t)
	key := constKey{typ: t.ID(), kind: ConstUndefKind}
	return ctx.constant(key, func() *Const {
		return &Const{typ: t, kind: ConstUndefKind}
	})
}

// ConstStruct creates a constant of the anonymous struct type matching the
// element types
func (ctx *Context) ConstStruct(elems []*Const, packed bool) *Const {
	fields := make([]Type, len(elems))
	for i, e := range elems {
		fields[i] = e.typ
	}
	return ctx.ConstNamedStruct(ctx.StructType(fields, packed), elems)
}

// ConstNamedStruct creates a struct constant of type t. The element count
// must match the struct's body.
func (ctx *Context) ConstNamedStruct(t *StructType, elems []*Const) *Const {
	ctx.own("Context.ConstNamedStruct", t)
	if len(elems) != len(t.fields) {
		violate("Context.ConstNamedStruct", "%d elements for %s with %d fields", len(elems), t, len(t.fields))
	}
	var key strings.Builder
	for _, e := range elems {
		key.WriteString(strconv.FormatUint(uint64(e.typ.ID()), 16))
		key.WriteByte(':')
		key.WriteString(e.String())
		key.WriteByte(';')
	}
	k := constKey{typ: t.id, kind: ConstStructKind, fields: key.String()}
	return ctx.constant(k, func() *Const {
		return &Const{typ: t, kind: ConstStructKind, fields: append([]*Const(nil), elems...)}
	})
}

package ir

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"ssakit/internal/intern"
)

var log = commonlog.GetLogger("ssakit.ir")

// Context is a build session. It interns types and constants, owns the
// string arena every name is routed through, and creates modules and
// builders. A Context is not safe for concurrent use; concurrent sessions
// each need their own Context, Module and Builder.
type Context struct {
	names   *intern.Arena
	nameErr error
	global  bool

	types  []Type
	void   *VoidType
	label  *LabelType
	float  *FloatType
	double *FloatType
	ints   map[uint32]*IntType
	ptrs   map[TypeID]*PointerType
	funcs  map[string]*FuncType
	anon   map[string]*StructType
	named  map[string]*StructType

	consts map[constKey]*Const
}

var (
	globalOnce sync.Once
	globalCtx  *Context
)

// GlobalContext returns the process-wide shared context. It lives for the
// whole process and Dispose on it does nothing.
func GlobalContext() *Context {
	globalOnce.Do(func() {
		globalCtx = NewContext()
		globalCtx.global = true
	})
	return globalCtx
}

// NewContext creates an independent session. The caller disposes it.
func NewContext() *Context {
	c := &Context{names: intern.New()}
	c.init()
	return c
}

func (c *Context) init() {
	c.types = nil
	c.ints = make(map[uint32]*IntType)
	c.ptrs = make(map[TypeID]*PointerType)
	c.funcs = make(map[string]*FuncType)
	c.anon = make(map[string]*StructType)
	c.named = make(map[string]*StructType)
	c.consts = make(map[constKey]*Const)

	c.void = &VoidType{c.base()}
	c.register(c.void)
	c.label = &LabelType{c.base()}
	c.register(c.label)
	c.float = &FloatType{typeBase: c.base(), kind: FloatKind}
	c.register(c.float)
	c.double = &FloatType{typeBase: c.base(), kind: DoubleKind}
	c.register(c.double)
}

func (c *Context) base() typeBase {
	return typeBase{ctx: c, id: TypeID(len(c.types))}
}

func (c *Context) register(t Type) {
	c.types = append(c.types, t)
}

// IsGlobal reports whether c is the process-wide context
func (c *Context) IsGlobal() bool { return c.global }

// Dispose releases the session's string arena and type tables. Values,
// modules and types created from c must not be used afterwards.
func (c *Context) Dispose() {
	if c.global {
		return
	}
	c.names.Release()
	c.nameErr = nil
	c.init()
}

// Err returns the first naming failure of the session, if any
func (c *Context) Err() error { return c.nameErr }

// Names exposes the session's string arena
func (c *Context) Names() *intern.Arena { return c.names }

// intern routes a name through the session arena. A failure is logged
// right away, kept for Err and reported again by module verification; the
// name is dropped rather than truncated.
func (c *Context) intern(name string) intern.Handle {
	h, err := c.names.Intern(name)
	if err != nil {
		log.Errorf("cannot name value %q: %s", name, err)
		if c.nameErr == nil {
			c.nameErr = fmt.Errorf("name %q: %w", name, err)
		}
		return intern.Empty
	}
	return h
}

func (c *Context) str(h intern.Handle) string {
	return c.names.String(h)
}

// TypeByID returns the type with the given arena index
func (c *Context) TypeByID(id TypeID) Type {
	if int(id) >= len(c.types) {
		return nil
	}
	return c.types[id]
}

func (c *Context) VoidType() *VoidType   { return c.void }
func (c *Context) LabelType() *LabelType { return c.label }
func (c *Context) FloatType() *FloatType { return c.float }
func (c *Context) DoubleType() *FloatType {
	return c.double
}

// IntType returns the integer type of the given width
func (c *Context) IntType(bits uint32) *IntType {
	if bits == 0 {
		violate("Context.IntType", "integer width must be positive")
	}
	if t, ok := c.ints[bits]; ok {
		return t
	}
	t := &IntType{typeBase: c.base(), bits: bits}
	c.register(t)
	c.ints[bits] = t
	return t
}

func (c *Context) Int1Type() *IntType  { return c.IntType(1) }
func (c *Context) Int8Type() *IntType  { return c.IntType(8) }
func (c *Context) Int16Type() *IntType { return c.IntType(16) }
func (c *Context) Int32Type() *IntType { return c.IntType(32) }
func (c *Context) Int64Type() *IntType { return c.IntType(64) }

// PointerType returns the type of pointers to elem
func (c *Context) PointerType(elem Type) *PointerType {
	c.own("Context.PointerType", elem)
	if t, ok := c.ptrs[elem.ID()]; ok {
		return t
	}
	t := &PointerType{typeBase: c.base(), elem: elem}
	c.register(t)
	c.ptrs[elem.ID()] = t
	return t
}

// Int8PointerType is the C "char *" type
func (c *Context) Int8PointerType() *PointerType {
	return c.PointerType(c.Int8Type())
}

// FunctionType returns the signature ret(params...), variadic if asked
func (c *Context) FunctionType(ret Type, params []Type, variadic bool) *FuncType {
	c.own("Context.FunctionType", ret)
	for _, p := range params {
		c.own("Context.FunctionType", p)
	}
	key := typeListKey(append([]Type{ret}, params...))
	if variadic {
		key += ",..."
	}
	if t, ok := c.funcs[key]; ok {
		return t
	}
	t := &FuncType{typeBase: c.base(), ret: ret, params: append([]Type(nil), params...), variadic: variadic}
	c.register(t)
	c.funcs[key] = t
	return t
}

// StructType returns the anonymous struct with the given body
func (c *Context) StructType(fields []Type, packed bool) *StructType {
	for _, f := range fields {
		c.own("Context.StructType", f)
	}
	key := typeListKey(fields)
	if packed {
		key = "<" + key + ">"
	}
	if t, ok := c.anon[key]; ok {
		return t
	}
	t := &StructType{typeBase: c.base(), fields: append([]Type(nil), fields...), packed: packed, bodyCount: 1}
	c.register(t)
	c.anon[key] = t
	return t
}

// NamedStruct declares an opaque named struct. A taken name gets a numeric
// suffix, so every call returns a distinct type.
func (c *Context) NamedStruct(name string) *StructType {
	unique := name
	for i := 1; ; i++ {
		if _, taken := c.named[unique]; !taken {
			break
		}
		unique = name + "." + strconv.Itoa(i)
	}
	t := &StructType{typeBase: c.base(), name: c.intern(unique), named: true}
	c.register(t)
	c.named[unique] = t
	return t
}

// LookupStruct finds a named struct by name
func (c *Context) LookupStruct(name string) *StructType {
	return c.named[name]
}

// NamedStructs returns all named structs in declaration order
func (c *Context) NamedStructs() []*StructType {
	var out []*StructType
	for _, t := range c.types {
		if st, ok := t.(*StructType); ok && st.named {
			out = append(out, st)
		}
	}
	return out
}

// own panics if t belongs to a different context
func (c *Context) own(op string, t Type) {
	if t == nil {
		violate(op, "nil type")
	}
	if t.Context() != c {
		violate(op, "type %s belongs to another context", t)
	}
}

func typeListKey(ts []Type) string {
	var b strings.Builder
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(t.ID()), 10))
	}
	return b.String()
}

// NewModule creates an empty module bound to this context
func (c *Context) NewModule(name string) *Module {
	return newModule(c, name)
}

// NewBuilder creates a builder with no insertion position
func (c *Context) NewBuilder() *Builder {
	return &Builder{ctx: c}
}

package ir

import "ssakit/internal/intern"

// Value is anything that can appear as an instruction operand. The set of
// implementations is closed: *Const, *Param, *Instr, *Function and *Global.
// Basic blocks are deliberately not values; branch targets are passed as
// *BasicBlock.
type Value interface {
	Type() Type
	// Name returns the value's interned name, "" for unnamed values.
	Name() string
	valueNode()
}

// present turns a typed nil into a nil Value, so a missing operand is
// reported as missing rather than dereferenced
func present(v Value) Value {
	switch x := v.(type) {
	case *Const:
		if x == nil {
			return nil
		}
	case *Param:
		if x == nil {
			return nil
		}
	case *Instr:
		if x == nil {
			return nil
		}
	case *Function:
		if x == nil {
			return nil
		}
	case *Global:
		if x == nil {
			return nil
		}
	}
	return v
}

// Param is a formal parameter of a function
type Param struct {
	fn    *Function
	index int
	typ   Type
	name  intern.Handle
}

func (p *Param) Type() Type          { return p.typ }
func (p *Param) Name() string        { return p.fn.module.ctx.str(p.name) }
func (p *Param) Index() int          { return p.index }
func (p *Param) Function() *Function { return p.fn }
func (*Param) valueNode()            {}

// SetName renames the parameter
func (p *Param) SetName(name string) {
	p.name = p.fn.module.ctx.intern(name)
}

// Global is a module-level constant. Its value is the address of the data,
// so its type is always a pointer to the initializer's type. String globals
// hold raw bytes (NUL included) and are typed i8*.
type Global struct {
	module *Module
	name   intern.Handle
	typ    *PointerType
	init   *Const
	data   []byte
}

func (g *Global) Type() Type      { return g.typ }
func (g *Global) Name() string    { return g.module.ctx.str(g.name) }
func (g *Global) Module() *Module { return g.module }
func (*Global) valueNode()        {}

// Elem is the type of the data the global points at
func (g *Global) Elem() Type { return g.typ.elem }

// Init returns the initializer of a constant global, nil for strings
func (g *Global) Init() *Const { return g.init }

// Data returns a copy of a string global's bytes, including the NUL
func (g *Global) Data() []byte { return append([]byte(nil), g.data...) }

// IsString reports whether g was created with AddGlobalString
func (g *Global) IsString() bool { return g.init == nil }

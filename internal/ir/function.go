package ir

import (
	"fmt"

	"ssakit/internal/intern"
)

// Function is a named symbol with a signature. A function without blocks
// is a declaration, resolved externally when executed.
type Function struct {
	module *Module
	name   intern.Handle
	sig    *FuncType
	ptr    *PointerType
	params []*Param
	blocks []*BasicBlock
}

func newFunction(m *Module, name string, sig *FuncType) *Function {
	f := &Function{
		module: m,
		name:   m.ctx.intern(name),
		sig:    sig,
		ptr:    m.ctx.PointerType(sig),
	}
	f.params = make([]*Param, len(sig.params))
	for i, t := range sig.params {
		f.params[i] = &Param{fn: f, index: i, typ: t}
	}
	return f
}

// Type is a pointer to the signature; a function used as a value is its
// address.
func (f *Function) Type() Type           { return f.ptr }
func (f *Function) Name() string         { return f.module.ctx.str(f.name) }
func (f *Function) Signature() *FuncType { return f.sig }
func (f *Function) Module() *Module      { return f.module }
func (f *Function) ParamCount() int      { return len(f.params) }
func (f *Function) IsDeclaration() bool  { return len(f.blocks) == 0 }
func (*Function) valueNode()             {}

// Param returns the i-th parameter. The index must satisfy
// 0 <= i < ParamCount().
func (f *Function) Param(i int) *Param {
	if i < 0 || i >= len(f.params) {
		violate("Function.Param", "index %d out of range for @%s with %d parameters", i, f.Name(), len(f.params))
	}
	return f.params[i]
}

func (f *Function) Params() []*Param {
	return append([]*Param(nil), f.params...)
}

// AppendBlock adds a new empty block at the end of the function
func (f *Function) AppendBlock(name string) *BasicBlock {
	b := &BasicBlock{name: f.module.ctx.intern(name), parent: f}
	f.blocks = append(f.blocks, b)
	return b
}

func (f *Function) Blocks() []*BasicBlock {
	return append([]*BasicBlock(nil), f.blocks...)
}

// Entry returns the first block, nil for declarations
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// SignatureMismatchError is returned by GetOrAddFunction when the name is
// already bound to a function with a different signature
type SignatureMismatchError struct {
	Name      string
	Existing  *FuncType
	Requested *FuncType
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("function @%s already declared as %s, requested %s", e.Name, e.Existing, e.Requested)
}

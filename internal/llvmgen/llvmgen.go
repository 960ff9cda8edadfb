// Package llvmgen converts verified modules to github.com/llir/llvm so they
// can be written out as LLVM assembly and handed to llc or lli.
package llvmgen

import (
	"fmt"
	"io"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/tliron/commonlog"

	"ssakit/internal/ir"
)

var log = commonlog.GetLogger("ssakit.llvmgen")

// Emit verifies m and writes it to w as LLVM assembly
func Emit(w io.Writer, m *ir.Module) error {
	lm, err := Lower(m)
	if err != nil {
		return err
	}
	_, err = lm.WriteTo(w)
	return err
}

// Lower verifies m and converts it. Heap instructions become calls to the
// C library's malloc and free.
func Lower(m *ir.Module) (*llir.Module, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}
	g := &generator{
		src:     m,
		out:     llir.NewModule(),
		types:   make(map[ir.TypeID]types.Type),
		funcs:   make(map[*ir.Function]*llir.Func),
		globals: make(map[*ir.Global]constant.Constant),
	}
	g.out.SourceFilename = m.Name()

	for _, gl := range m.Globals() {
		g.global(gl)
	}
	for _, f := range m.Functions() {
		g.declare(f)
	}
	for _, f := range m.Functions() {
		if f.IsDeclaration() {
			continue
		}
		if err := g.define(f); err != nil {
			return nil, fmt.Errorf("llvmgen: @%s: %w", f.Name(), err)
		}
	}
	log.Debugf("lowered module %q: %d functions, %d globals", m.Name(), len(g.out.Funcs), len(g.out.Globals))
	return g.out, nil
}

type generator struct {
	src     *ir.Module
	out     *llir.Module
	types   map[ir.TypeID]types.Type
	funcs   map[*ir.Function]*llir.Func
	globals map[*ir.Global]constant.Constant

	mallocFn, freeFn *llir.Func
}

func (g *generator) typ(t ir.Type) types.Type {
	if lt, ok := g.types[t.ID()]; ok {
		return lt
	}
	var lt types.Type
	switch t := t.(type) {
	case *ir.VoidType:
		lt = types.Void
	case *ir.LabelType:
		lt = types.Label
	case *ir.IntType:
		lt = types.NewInt(uint64(t.Bits()))
	case *ir.FloatType:
		if t.Kind() == ir.FloatKind {
			lt = types.Float
		} else {
			lt = types.Double
		}
	case *ir.PointerType:
		lt = types.NewPointer(g.typ(t.Elem()))
	case *ir.FuncType:
		params := make([]types.Type, t.ParamCount())
		for i, p := range t.Params() {
			params[i] = g.typ(p)
		}
		ft := types.NewFunc(g.typ(t.Return()), params...)
		ft.Variadic = t.IsVariadic()
		lt = ft
	case *ir.StructType:
		st := types.NewStruct()
		st.Packed = t.IsPacked()
		if t.IsNamed() {
			g.out.NewTypeDef(t.Name(), st)
			// registered before the fields so self references resolve
			g.types[t.ID()] = st
			st.Opaque = t.IsOpaque()
		}
		for _, f := range t.Fields() {
			st.Fields = append(st.Fields, g.typ(f))
		}
		lt = st
	default:
		panic(fmt.Sprintf("llvmgen: unknown type %s", t))
	}
	g.types[t.ID()] = lt
	return lt
}

func (g *generator) constant(c *ir.Const) constant.Constant {
	switch c.Kind() {
	case ir.ConstIntKind:
		return constant.NewInt(g.typ(c.Type()).(*types.IntType), c.SExtValue())
	case ir.ConstFloatKind:
		return constant.NewFloat(g.typ(c.Type()).(*types.FloatType), c.Float())
	case ir.ConstNullKind:
		return constant.NewNull(g.typ(c.Type()).(*types.PointerType))
	case ir.ConstStructKind:
		fields := c.Fields()
		elems := make([]constant.Constant, len(fields))
		for i, f := range fields {
			elems[i] = g.constant(f)
		}
		return constant.NewStruct(g.typ(c.Type()).(*types.StructType), elems...)
	}
	return constant.NewUndef(g.typ(c.Type()))
}

// global defines gl. String globals are [N x i8] arrays used through an
// i8* to their first byte.
func (g *generator) global(gl *ir.Global) {
	if gl.IsString() {
		data := constant.NewCharArray(gl.Data())
		def := g.out.NewGlobalDef(gl.Name(), data)
		def.Linkage = enum.LinkagePrivate
		def.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
		def.Immutable = true
		zero := constant.NewInt(types.I64, 0)
		gep := constant.NewGetElementPtr(data.Typ, def, zero, zero)
		gep.InBounds = true
		g.globals[gl] = gep
		return
	}
	def := g.out.NewGlobalDef(gl.Name(), g.constant(gl.Init()))
	def.Linkage = enum.LinkagePrivate
	g.globals[gl] = def
}

func (g *generator) declare(f *ir.Function) {
	sig := f.Signature()
	params := make([]*llir.Param, f.ParamCount())
	for i, p := range f.Params() {
		params[i] = llir.NewParam(p.Name(), g.typ(p.Type()))
	}
	lf := g.out.NewFunc(f.Name(), g.typ(sig.Return()), params...)
	lf.Sig.Variadic = sig.IsVariadic()
	g.funcs[f] = lf
}

// libc returns the declaration of malloc or free, reusing one the module
// already has
func (g *generator) libc(name string) *llir.Func {
	cached := &g.mallocFn
	if name == "free" {
		cached = &g.freeFn
	}
	if *cached != nil {
		return *cached
	}
	if f := g.src.NamedFunction(name); f != nil {
		*cached = g.funcs[f]
		return *cached
	}
	if name == "malloc" {
		*cached = g.out.NewFunc("malloc", types.I8Ptr, llir.NewParam("", types.I64))
	} else {
		*cached = g.out.NewFunc("free", types.Void, llir.NewParam("", types.I8Ptr))
	}
	return *cached
}

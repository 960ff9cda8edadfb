package engine

import (
	"fmt"

	"ssakit/internal/errors"
	"ssakit/internal/ir"
)

// program is the engine's private snapshot of a module. Nothing in it
// points back into the ir package except the *ir.Function keys used to
// look functions up, so the module can change or go away afterwards.
type program struct {
	name    string
	funcs   []*fnCode
	byIR    map[*ir.Function]*fnCode
	byName  map[string]*fnCode
	globals []globalData
}

type globalData struct {
	name  string
	data  []byte // string globals
	shape *shape // constant globals
	init  val
}

type fnCode struct {
	name     string
	src      *ir.Function
	addr     uint64
	params   []*shape
	ret      *shape
	variadic bool

	decl bool
	ext  external

	nslots   int
	template []val // constant slots, copied into every frame
	blocks   []*blockCode

	jit []*jitBlock
}

type blockCode struct {
	name string
	body []op
	term *op
	phis map[int][]move // keyed by predecessor block index
}

type move struct{ dst, src int }

// op is one lowered instruction. Operands are register slots.
type op struct {
	code  ir.Opcode
	dst   int // -1 when the instruction has no result
	args  []int
	shape *shape // element, loaded, stored or aggregate shape

	bits   uint32 // operand width
	toBits uint32 // cast result width
	pred   uint8
	field  int
	off    uint64 // constant byte offset of address computations
	stride uint64 // gep element size

	callee    *fnCode
	argShapes []*shape
	tailRet   bool

	targets []int
	cases   []uint64
}

// frame allocates the registers of one activation
func (f *fnCode) frame(args []val) []val {
	regs := make([]val, f.nslots)
	copy(regs, f.template)
	copy(regs, args)
	return regs
}

type lowerer struct {
	prog    *program
	shapes  *shaper
	mem     *memory
	globals map[*ir.Global]uint64
}

// lower snapshots m, placing its globals in mem
func lower(m *ir.Module, mem *memory) (*program, error) {
	l := &lowerer{
		prog: &program{
			name:   m.Name(),
			byIR:   make(map[*ir.Function]*fnCode),
			byName: make(map[string]*fnCode),
		},
		shapes:  newShaper(),
		mem:     mem,
		globals: make(map[*ir.Global]uint64),
	}

	for _, g := range m.Globals() {
		if err := l.global(g); err != nil {
			return nil, err
		}
	}

	funcs := m.Functions()
	for i, f := range funcs {
		fc := &fnCode{name: f.Name(), src: f, addr: FuncBase + uint64(i)*16, decl: f.IsDeclaration()}
		sig := f.Signature()
		fc.variadic = sig.IsVariadic()
		for _, p := range sig.Params() {
			sh, err := l.shapes.of(p)
			if err != nil {
				return nil, l.fail(f, err)
			}
			fc.params = append(fc.params, sh)
		}
		ret, err := l.shapes.of(sig.Return())
		if err != nil {
			return nil, l.fail(f, err)
		}
		fc.ret = ret
		if fc.decl {
			fc.ext = externals[fc.name]
		}
		l.prog.funcs = append(l.prog.funcs, fc)
		l.prog.byIR[f] = fc
		l.prog.byName[fc.name] = fc
	}

	for _, fc := range l.prog.funcs {
		if fc.decl {
			continue
		}
		if err := l.function(fc); err != nil {
			return nil, l.fail(fc.src, err)
		}
	}
	return l.prog, nil
}

func (l *lowerer) fail(f *ir.Function, err error) error {
	return initError(errors.ErrorEngineInit, "cannot prepare @%s: %v", f.Name(), err)
}

func (l *lowerer) global(g *ir.Global) error {
	gd := globalData{name: g.Name()}
	var addr uint64
	var err error
	if g.IsString() {
		gd.data = g.Data()
		addr, err = l.mem.global(len(gd.data), 1)
		if err == nil {
			copy(l.mustBytes(addr, len(gd.data)), gd.data)
		}
	} else {
		sh, serr := l.shapes.of(g.Elem())
		if serr != nil {
			return initError(errors.ErrorEngineInit, "global @%s: %v", g.Name(), serr)
		}
		if sh.kind == shVoid {
			return initError(errors.ErrorEngineInit, "global @%s has unsized type %s", g.Name(), g.Elem())
		}
		gd.shape = sh
		gd.init = l.constVal(g.Init())
		addr, err = l.mem.global(sh.size, sh.align)
		if err == nil {
			err = l.mem.store(addr, sh, gd.init)
		}
	}
	if err != nil {
		return initError(errors.ErrorEngineInit, "global @%s: %v", g.Name(), err)
	}
	l.globals[g] = addr
	l.prog.globals = append(l.prog.globals, gd)
	return nil
}

func (l *lowerer) mustBytes(addr uint64, n int) []byte {
	b, _ := l.mem.bytes(addr, n)
	return b
}

func (l *lowerer) constVal(c *ir.Const) val {
	switch c.Kind() {
	case ir.ConstIntKind, ir.ConstNullKind:
		return val{u: c.ZExtValue()}
	case ir.ConstFloatKind:
		if c.Type().Kind() == ir.FloatKind {
			return val{u: u32(float32(c.Float()))}
		}
		return val{u: u64(c.Float())}
	case ir.ConstStructKind:
		fields := c.Fields()
		v := val{agg: make([]val, len(fields))}
		for i, f := range fields {
			v.agg[i] = l.constVal(f)
		}
		return v
	}
	sh, err := l.shapes.of(c.Type())
	if err != nil {
		return val{}
	}
	return sh.zero()
}

type fnLowerer struct {
	*lowerer
	fc     *fnCode
	slots  map[ir.Value]int
	blocks map[*ir.BasicBlock]int
}

func (l *lowerer) function(fc *fnCode) error {
	fl := &fnLowerer{
		lowerer: l,
		fc:      fc,
		slots:   make(map[ir.Value]int),
		blocks:  make(map[*ir.BasicBlock]int),
	}
	f := fc.src
	for i, p := range f.Params() {
		fl.slots[p] = i
	}
	fc.nslots = f.ParamCount()
	fc.template = make([]val, fc.nslots)

	blocks := f.Blocks()
	for i, b := range blocks {
		fl.blocks[b] = i
		for _, in := range b.Instrs() {
			if in.ProducesValue() {
				fl.slots[in] = fc.nslots
				fc.nslots++
				fc.template = append(fc.template, val{})
			}
		}
	}

	for _, b := range blocks {
		bc, err := fl.block(b)
		if err != nil {
			return fmt.Errorf("block %%%s: %w", b.Name(), err)
		}
		fc.blocks = append(fc.blocks, bc)
	}
	return nil
}

// slot returns the register holding v, allocating constant slots on first
// use
func (fl *fnLowerer) slot(v ir.Value) (int, error) {
	if s, ok := fl.slots[v]; ok {
		return s, nil
	}
	var k val
	switch v := v.(type) {
	case *ir.Const:
		k = fl.constVal(v)
	case *ir.Global:
		addr, ok := fl.globals[v]
		if !ok {
			return 0, fmt.Errorf("global @%s is not part of the module", v.Name())
		}
		k = val{u: addr}
	case *ir.Function:
		callee, ok := fl.prog.byIR[v]
		if !ok {
			return 0, fmt.Errorf("function @%s is not part of the module", v.Name())
		}
		k = val{u: callee.addr}
	case nil:
		return 0, fmt.Errorf("missing operand")
	default:
		return 0, fmt.Errorf("operand %s is not defined in this function", v.Name())
	}
	s := fl.fc.nslots
	fl.fc.nslots++
	fl.fc.template = append(fl.fc.template, k)
	fl.slots[v] = s
	return s, nil
}

func (fl *fnLowerer) block(b *ir.BasicBlock) (*blockCode, error) {
	bc := &blockCode{name: b.Name(), phis: make(map[int][]move)}
	instrs := b.Instrs()
	for i, in := range instrs {
		if in.Opcode() == ir.OpPhi {
			if err := fl.phi(bc, in); err != nil {
				return nil, err
			}
			continue
		}
		o, err := fl.instr(in)
		if err != nil {
			return nil, err
		}
		if in.IsTerminator() {
			if i == len(instrs)-1 {
				bc.term = &o
			}
			continue
		}
		if in.Opcode() == ir.OpCall && in.IsTailCall() && i+1 < len(instrs) {
			o.tailRet = isReturnOf(instrs[i+1], in) && !o.callee.decl
		}
		bc.body = append(bc.body, o)
	}
	return bc, nil
}

// isReturnOf reports whether next returns the result of call
func isReturnOf(next, call *ir.Instr) bool {
	if next.Opcode() != ir.OpRet {
		return false
	}
	if !call.ProducesValue() {
		return next.NumOperands() == 0
	}
	return next.NumOperands() == 1 && next.Operand(0) == ir.Value(call)
}

func (fl *fnLowerer) phi(bc *blockCode, in *ir.Instr) error {
	dst := fl.slots[in]
	preds := in.Targets()
	for i, v := range in.Operands() {
		pi, ok := fl.blocks[preds[i]]
		if !ok {
			return fmt.Errorf("phi refers to a block outside the function")
		}
		src, err := fl.slot(v)
		if err != nil {
			return err
		}
		bc.phis[pi] = append(bc.phis[pi], move{dst: dst, src: src})
	}
	return nil
}

func (fl *fnLowerer) shapeOf(t ir.Type) (*shape, error) {
	return fl.shapes.of(t)
}

func width(t ir.Type) uint32 {
	switch t := t.(type) {
	case *ir.IntType:
		return t.Bits()
	case *ir.FloatType:
		if t.Kind() == ir.FloatKind {
			return 32
		}
		return 64
	case *ir.PointerType:
		return 64
	}
	return 0
}

func (fl *fnLowerer) instr(in *ir.Instr) (op, error) {
	o := op{code: in.Opcode(), dst: -1}
	if in.ProducesValue() {
		o.dst = fl.slots[in]
	}
	for _, v := range in.Operands() {
		s, err := fl.slot(v)
		if err != nil {
			return o, err
		}
		o.args = append(o.args, s)
	}
	if n := in.NumOperands(); n > 0 && in.Operand(0) != nil {
		o.bits = width(in.Operand(0).Type())
	}
	o.toBits = width(in.Type())

	var err error
	switch in.Opcode() {
	case ir.OpAlloca, ir.OpMalloc:
		o.shape, err = fl.shapeOf(in.ElemType())
		if err == nil && o.shape.kind == shVoid {
			err = fmt.Errorf("cannot allocate unsized type %s", in.ElemType())
		}
	case ir.OpLoad:
		o.shape, err = fl.shapeOf(in.Type())
	case ir.OpStore:
		o.shape, err = fl.shapeOf(in.Operand(0).Type())
	case ir.OpStructGEP:
		st, ok := in.ElemType().(*ir.StructType)
		if !ok || st.IsOpaque() {
			return o, fmt.Errorf("field address into incomplete type")
		}
		var sh *shape
		if sh, err = fl.shapeOf(st); err == nil {
			if sh.kind != shStruct {
				return o, fmt.Errorf("struct %s has no layout", st)
			}
			o.off = uint64(sh.offsets[in.Indices()[0]])
		}
	case ir.OpGEP:
		err = fl.gep(&o, in)
	case ir.OpExtractValue, ir.OpInsertValue:
		o.field = in.Indices()[0]
		o.shape, err = fl.shapeOf(in.Operand(0).Type())
	case ir.OpICmp:
		o.pred = uint8(in.IntPredicate())
	case ir.OpFCmp:
		o.pred = uint8(in.FloatPredicate())
	case ir.OpCall:
		o.callee = fl.prog.byIR[in.Callee()]
		if o.callee == nil {
			return o, fmt.Errorf("call to @%s outside the module", in.Callee().Name())
		}
		for _, a := range in.Operands() {
			sh, serr := fl.shapeOf(a.Type())
			if serr != nil {
				return o, serr
			}
			o.argShapes = append(o.argShapes, sh)
		}
		o.shape, err = fl.shapeOf(in.Type())
	case ir.OpBr, ir.OpCondBr, ir.OpSwitch:
		for _, t := range in.Targets() {
			idx, ok := fl.blocks[t]
			if !ok {
				return o, fmt.Errorf("branch to a block outside the function")
			}
			o.targets = append(o.targets, idx)
		}
		for _, c := range in.Cases() {
			o.cases = append(o.cases, c.Value.ZExtValue())
		}
	}
	return o, err
}

func (fl *fnLowerer) gep(o *op, in *ir.Instr) error {
	elem, err := fl.shapeOf(in.ElemType())
	if err != nil {
		return err
	}
	if elem.kind == shVoid {
		return fmt.Errorf("getelementptr over unsized type %s", in.ElemType())
	}
	o.stride = uint64(elem.size)
	if in.NumOperands() > 1 {
		o.bits = width(in.Operand(1).Type())
	}
	cur := elem
	for _, f := range in.Indices() {
		if cur.kind != shStruct {
			return fmt.Errorf("getelementptr index into non-struct")
		}
		o.off += uint64(cur.offsets[f])
		cur = cur.fields[f]
	}
	return nil
}

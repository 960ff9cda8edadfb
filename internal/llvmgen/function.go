package llvmgen

import (
	"fmt"
	"strconv"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"ssakit/internal/ir"
)

var intPreds = [...]enum.IPred{
	ir.IntEQ: enum.IPredEQ, ir.IntNE: enum.IPredNE,
	ir.IntUGT: enum.IPredUGT, ir.IntUGE: enum.IPredUGE, ir.IntULT: enum.IPredULT, ir.IntULE: enum.IPredULE,
	ir.IntSGT: enum.IPredSGT, ir.IntSGE: enum.IPredSGE, ir.IntSLT: enum.IPredSLT, ir.IntSLE: enum.IPredSLE,
}

var floatPreds = [...]enum.FPred{
	ir.FloatFalse: enum.FPredFalse,
	ir.FloatOEQ:   enum.FPredOEQ, ir.FloatOGT: enum.FPredOGT, ir.FloatOGE: enum.FPredOGE,
	ir.FloatOLT: enum.FPredOLT, ir.FloatOLE: enum.FPredOLE, ir.FloatONE: enum.FPredONE,
	ir.FloatORD: enum.FPredORD, ir.FloatUNO: enum.FPredUNO,
	ir.FloatUEQ: enum.FPredUEQ, ir.FloatUGT: enum.FPredUGT, ir.FloatUGE: enum.FPredUGE,
	ir.FloatULT: enum.FPredULT, ir.FloatULE: enum.FPredULE, ir.FloatUNE: enum.FPredUNE,
	ir.FloatTrue: enum.FPredTrue,
}

type funcGen struct {
	*generator
	fn     *llir.Func
	blocks map[*ir.BasicBlock]*llir.Block
	values map[*ir.Instr]value.Value
	phis   map[*ir.Instr]*llir.InstPhi
	names  map[string]int
}

func (g *generator) define(f *ir.Function) error {
	fg := &funcGen{
		generator: g,
		fn:        g.funcs[f],
		blocks:    make(map[*ir.BasicBlock]*llir.Block),
		values:    make(map[*ir.Instr]value.Value),
		phis:      make(map[*ir.Instr]*llir.InstPhi),
		names:     make(map[string]int),
	}
	for _, p := range fg.fn.Params {
		if p.LocalName != "" {
			p.SetName(fg.unique(p.LocalName))
		}
	}
	for _, b := range f.Blocks() {
		fg.blocks[b] = fg.fn.NewBlock(fg.unique(b.Name()))
	}

	// definitions dominate their uses, so reverse postorder sees every
	// non-phi operand before it is used
	for _, b := range order(f) {
		if err := fg.block(b); err != nil {
			return fmt.Errorf("block %%%s: %w", b.Name(), err)
		}
	}
	for in, phi := range fg.phis {
		blocks := in.Targets()
		for i, v := range in.Operands() {
			x, err := fg.value(v)
			if err != nil {
				return err
			}
			phi.Incs = append(phi.Incs, llir.NewIncoming(x, fg.blocks[blocks[i]]))
		}
	}
	return nil
}

// order lists the blocks of f in reverse postorder, followed by the
// unreachable ones
func order(f *ir.Function) []*ir.BasicBlock {
	blocks := f.Blocks()
	seen := make(map[*ir.BasicBlock]bool, len(blocks))
	var post []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		seen[b] = true
		for _, s := range b.Successors() {
			if !seen[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(f.Entry())

	out := make([]*ir.BasicBlock, 0, len(blocks))
	for i := len(post) - 1; i >= 0; i-- {
		out = append(out, post[i])
	}
	for _, b := range blocks {
		if !seen[b] {
			out = append(out, b)
		}
	}
	return out
}

func (fg *funcGen) unique(name string) string {
	if name == "" {
		return ""
	}
	n, taken := fg.names[name]
	fg.names[name] = n + 1
	if !taken {
		return name
	}
	return fg.unique(name + strconv.Itoa(n))
}

func (fg *funcGen) value(v ir.Value) (value.Value, error) {
	switch v := v.(type) {
	case *ir.Const:
		return fg.constant(v), nil
	case *ir.Param:
		return fg.fn.Params[v.Index()], nil
	case *ir.Global:
		return fg.globals[v], nil
	case *ir.Function:
		return fg.funcs[v], nil
	case *ir.Instr:
		if x, ok := fg.values[v]; ok {
			return x, nil
		}
		return nil, fmt.Errorf("%s is used before it is defined", v)
	}
	return nil, fmt.Errorf("unsupported operand %T", v)
}

func (fg *funcGen) operands(in *ir.Instr) ([]value.Value, error) {
	ops := make([]value.Value, in.NumOperands())
	for i, v := range in.Operands() {
		x, err := fg.value(v)
		if err != nil {
			return nil, err
		}
		ops[i] = x
	}
	return ops, nil
}

func (fg *funcGen) block(b *ir.BasicBlock) error {
	out := fg.blocks[b]
	for _, in := range b.Instrs() {
		if in.Opcode() == ir.OpPhi {
			phi := &llir.InstPhi{Typ: fg.typ(in.Type())}
			out.Insts = append(out.Insts, phi)
			fg.phis[in] = phi
			fg.result(in, phi)
			continue
		}
		ops, err := fg.operands(in)
		if err != nil {
			return err
		}
		x, err := fg.instr(out, in, ops)
		if err != nil {
			return err
		}
		if x != nil {
			fg.result(in, x)
		}
	}
	return nil
}

type named interface {
	value.Value
	SetName(name string)
}

func (fg *funcGen) result(in *ir.Instr, x value.Value) {
	fg.values[in] = x
	if nv, ok := x.(named); ok && in.ProducesValue() && in.Name() != "" {
		nv.SetName(fg.unique(in.Name()))
	}
}

func i32(n int) constant.Constant { return constant.NewInt(types.I32, int64(n)) }

func (fg *funcGen) instr(out *llir.Block, in *ir.Instr, ops []value.Value) (value.Value, error) {
	switch in.Opcode() {
	case ir.OpAlloca:
		a := out.NewAlloca(fg.typ(in.ElemType()))
		if len(ops) > 0 {
			a.NElems = ops[0]
		}
		return a, nil
	case ir.OpMalloc:
		return fg.malloc(out, in, ops), nil
	case ir.OpFree:
		p := out.NewBitCast(ops[0], types.I8Ptr)
		out.NewCall(fg.libc("free"), p)
		return nil, nil
	case ir.OpLoad:
		return out.NewLoad(fg.typ(in.Type()), ops[0]), nil
	case ir.OpStore:
		out.NewStore(ops[0], ops[1])
		return nil, nil
	case ir.OpStructGEP:
		gep := out.NewGetElementPtr(fg.typ(in.ElemType()), ops[0], i32(0), i32(in.Indices()[0]))
		gep.InBounds = true
		return gep, nil
	case ir.OpGEP:
		gep := out.NewGetElementPtr(fg.typ(in.ElemType()), ops[0], ops[1:]...)
		gep.InBounds = true
		return gep, nil
	case ir.OpAdd:
		return out.NewAdd(ops[0], ops[1]), nil
	case ir.OpSub:
		return out.NewSub(ops[0], ops[1]), nil
	case ir.OpMul:
		return out.NewMul(ops[0], ops[1]), nil
	case ir.OpUDiv:
		return out.NewUDiv(ops[0], ops[1]), nil
	case ir.OpSDiv:
		return out.NewSDiv(ops[0], ops[1]), nil
	case ir.OpURem:
		return out.NewURem(ops[0], ops[1]), nil
	case ir.OpSRem:
		return out.NewSRem(ops[0], ops[1]), nil
	case ir.OpAnd:
		return out.NewAnd(ops[0], ops[1]), nil
	case ir.OpOr:
		return out.NewOr(ops[0], ops[1]), nil
	case ir.OpXor:
		return out.NewXor(ops[0], ops[1]), nil
	case ir.OpShl:
		return out.NewShl(ops[0], ops[1]), nil
	case ir.OpAShr:
		return out.NewAShr(ops[0], ops[1]), nil
	case ir.OpLShr:
		return out.NewLShr(ops[0], ops[1]), nil
	case ir.OpFAdd:
		return out.NewFAdd(ops[0], ops[1]), nil
	case ir.OpFSub:
		return out.NewFSub(ops[0], ops[1]), nil
	case ir.OpFMul:
		return out.NewFMul(ops[0], ops[1]), nil
	case ir.OpFDiv:
		return out.NewFDiv(ops[0], ops[1]), nil
	case ir.OpFNeg:
		return out.NewFNeg(ops[0]), nil
	case ir.OpICmp:
		return out.NewICmp(intPreds[in.IntPredicate()], ops[0], ops[1]), nil
	case ir.OpFCmp:
		return out.NewFCmp(floatPreds[in.FloatPredicate()], ops[0], ops[1]), nil
	case ir.OpExtractValue:
		return out.NewExtractValue(ops[0], uint64(in.Indices()[0])), nil
	case ir.OpInsertValue:
		return out.NewInsertValue(ops[0], ops[1], uint64(in.Indices()[0])), nil
	case ir.OpSelect:
		return out.NewSelect(ops[0], ops[1], ops[2]), nil
	case ir.OpCall:
		call := out.NewCall(fg.funcs[in.Callee()], ops...)
		if in.IsTailCall() {
			call.Tail = enum.TailTail
		}
		if !in.ProducesValue() {
			return nil, nil
		}
		return call, nil
	case ir.OpBr:
		out.NewBr(fg.blocks[in.Targets()[0]])
		return nil, nil
	case ir.OpCondBr:
		t := in.Targets()
		out.NewCondBr(ops[0], fg.blocks[t[0]], fg.blocks[t[1]])
		return nil, nil
	case ir.OpSwitch:
		var cases []*llir.Case
		for _, c := range in.Cases() {
			cases = append(cases, llir.NewCase(fg.constant(c.Value), fg.blocks[c.Target]))
		}
		out.NewSwitch(ops[0], fg.blocks[in.Targets()[0]], cases...)
		return nil, nil
	case ir.OpRet:
		if len(ops) == 0 {
			out.NewRet(nil)
		} else {
			out.NewRet(ops[0])
		}
		return nil, nil
	case ir.OpUnreachable:
		out.NewUnreachable()
		return nil, nil
	}
	if in.Opcode().IsCast() {
		return fg.cast(out, in.Opcode(), ops[0], fg.typ(in.Type())), nil
	}
	return nil, fmt.Errorf("cannot lower %s", in.Opcode())
}

func (fg *funcGen) cast(out *llir.Block, op ir.Opcode, x value.Value, to types.Type) value.Value {
	switch op {
	case ir.OpZExt:
		return out.NewZExt(x, to)
	case ir.OpSExt:
		return out.NewSExt(x, to)
	case ir.OpTrunc:
		return out.NewTrunc(x, to)
	case ir.OpIntToPtr:
		return out.NewIntToPtr(x, to)
	case ir.OpPtrToInt:
		return out.NewPtrToInt(x, to)
	case ir.OpFPTrunc:
		return out.NewFPTrunc(x, to)
	case ir.OpFPExt:
		return out.NewFPExt(x, to)
	case ir.OpSIToFP:
		return out.NewSIToFP(x, to)
	case ir.OpFPToSI:
		return out.NewFPToSI(x, to)
	}
	return out.NewBitCast(x, to)
}

// malloc computes the allocation size with the null-gep idiom, calls
// malloc and casts the result to the element pointer type
func (fg *funcGen) malloc(out *llir.Block, in *ir.Instr, ops []value.Value) value.Value {
	elem := fg.typ(in.ElemType())
	one := constant.NewGetElementPtr(elem, constant.NewNull(types.NewPointer(elem)), i32(1))
	var size value.Value = constant.NewPtrToInt(one, types.I64)
	if len(ops) > 0 {
		count := ops[0]
		if it, ok := count.Type().(*types.IntType); ok && it.BitSize < 64 {
			count = out.NewZExt(count, types.I64)
		} else if ok && it.BitSize > 64 {
			count = out.NewTrunc(count, types.I64)
		}
		size = out.NewMul(size, count)
	}
	raw := out.NewCall(fg.libc("malloc"), size)
	return out.NewBitCast(raw, types.NewPointer(elem))
}

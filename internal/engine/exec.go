package engine

import (
	"bufio"
	"io"
	"math"

	"fortio.org/safecast"

	"ssakit/internal/ir"
)

// machine is the state shared by both engine kinds: memory, I/O and
// limits
type machine struct {
	prog     *program
	mem      *memory
	out      io.Writer
	in       *bufio.Reader
	maxDepth int
}

func gather(regs []val, slots []int) []val {
	args := make([]val, len(slots))
	for i, s := range slots {
		args[i] = regs[s]
	}
	return args
}

// enter performs the phi moves of the edge prev -> b
func (b *blockCode) enter(prev int, regs []val) error {
	if len(b.phis) == 0 {
		return nil
	}
	moves, ok := b.phis[prev]
	if !ok {
		return faultf("phi in %%%s has no value for the incoming edge", b.name)
	}
	tmp := make([]val, len(moves))
	for i, mv := range moves {
		tmp[i] = regs[mv.src]
	}
	for i, mv := range moves {
		regs[mv.dst] = tmp[i]
	}
	return nil
}

// branch evaluates a terminator other than ret and unreachable
func branch(o *op, regs []val) (int, error) {
	switch o.code {
	case ir.OpBr:
		return o.targets[0], nil
	case ir.OpCondBr:
		if regs[o.args[0]].u&1 != 0 {
			return o.targets[0], nil
		}
		return o.targets[1], nil
	case ir.OpSwitch:
		v := regs[o.args[0]].u
		for i, c := range o.cases {
			if c == v {
				return o.targets[i+1], nil
			}
		}
		return o.targets[0], nil
	}
	return 0, faultf("unexpected terminator %s", o.code)
}

// external calls a libc routine provided by the engine. Defined functions
// go through the engine-specific call path.
func (m *machine) external(fn *fnCode, args []val, shapes []*shape) (val, error) {
	if fn.ext == nil {
		return val{}, faultf("unresolved external symbol @%s", fn.name)
	}
	return fn.ext(m, &callSite{args: args, shapes: shapes, ret: fn.ret})
}

func (m *machine) elems(o *op, regs []val) (int, error) {
	n := uint64(1)
	if len(o.args) > 0 {
		n = regs[o.args[0]].u
	}
	count, err := safecast.Conv[int](n)
	if err != nil || o.shape.size > 0 && count > math.MaxInt32/o.shape.size {
		return 0, faultf("allocation of %d x %s is too large", n, o.shape.name)
	}
	return count * o.shape.size, nil
}

// exec runs one non-terminator, non-call instruction
func (m *machine) exec(o *op, r []val) error {
	switch o.code {
	case ir.OpAlloca:
		size, err := m.elems(o, r)
		if err != nil {
			return err
		}
		addr, err := m.mem.alloca(size, o.shape.align)
		if err != nil {
			return err
		}
		r[o.dst] = val{u: addr}
	case ir.OpMalloc:
		size, err := m.elems(o, r)
		if err != nil {
			return err
		}
		addr, ok := m.mem.malloc(uint64(size))
		if !ok {
			return faultf("out of memory allocating %d bytes", size)
		}
		r[o.dst] = val{u: addr}
	case ir.OpFree:
		return m.mem.release(r[o.args[0]].u)
	case ir.OpLoad:
		v, err := m.mem.load(r[o.args[0]].u, o.shape)
		if err != nil {
			return err
		}
		r[o.dst] = v
	case ir.OpStore:
		return m.mem.store(r[o.args[1]].u, o.shape, r[o.args[0]])
	case ir.OpStructGEP:
		r[o.dst] = val{u: r[o.args[0]].u + o.off}
	case ir.OpGEP:
		r[o.dst] = val{u: gepAddr(o, r)}
	case ir.OpExtractValue:
		r[o.dst] = r[o.args[0]].agg[o.field]
	case ir.OpInsertValue:
		r[o.dst] = insertField(r[o.args[0]], o.field, r[o.args[1]])
	case ir.OpSelect:
		if r[o.args[0]].u&1 != 0 {
			r[o.dst] = r[o.args[1]]
		} else {
			r[o.dst] = r[o.args[2]]
		}
	case ir.OpICmp:
		r[o.dst] = boolVal(icmp(ir.IntPredicate(o.pred), o.bits, r[o.args[0]].u, r[o.args[1]].u))
	case ir.OpFCmp:
		r[o.dst] = boolVal(fcmp(ir.FloatPredicate(o.pred), o.bits, r[o.args[0]].u, r[o.args[1]].u))
	case ir.OpFNeg:
		r[o.dst] = val{u: fneg(o.bits, r[o.args[0]].u)}
	default:
		if o.code.IsCast() {
			r[o.dst] = val{u: cast(o.code, o.bits, o.toBits, r[o.args[0]].u)}
			return nil
		}
		if o.code.IsBinary() {
			v, err := binary(o.code, o.bits, r[o.args[0]].u, r[o.args[1]].u)
			if err != nil {
				return err
			}
			r[o.dst] = val{u: v}
			return nil
		}
		return faultf("cannot execute %s", o.code)
	}
	return nil
}

func gepAddr(o *op, r []val) uint64 {
	addr := r[o.args[0]].u + o.off
	if len(o.args) > 1 {
		addr += uint64(signExtend(r[o.args[1]].u, o.bits)) * o.stride
	}
	return addr
}

func insertField(agg val, field int, v val) val {
	out := val{agg: append([]val(nil), agg.agg...)}
	out.agg[field] = v
	return out
}

func boolVal(b bool) val {
	if b {
		return val{u: 1}
	}
	return val{}
}

// binary evaluates integer and floating arithmetic on raw bits
func binary(code ir.Opcode, bits uint32, a, b uint64) (uint64, error) {
	mk := mask(bits)
	switch code {
	case ir.OpAdd:
		return (a + b) & mk, nil
	case ir.OpSub:
		return (a - b) & mk, nil
	case ir.OpMul:
		return (a * b) & mk, nil
	case ir.OpUDiv, ir.OpURem:
		if b == 0 {
			return 0, faultf("division by zero")
		}
		if code == ir.OpUDiv {
			return a / b, nil
		}
		return a % b, nil
	case ir.OpSDiv, ir.OpSRem:
		x, y := signExtend(a, bits), signExtend(b, bits)
		if y == 0 {
			return 0, faultf("division by zero")
		}
		if y == -1 && x == signExtend(uint64(1)<<(bits-1), bits) {
			return 0, faultf("signed division overflow")
		}
		if code == ir.OpSDiv {
			return uint64(x/y) & mk, nil
		}
		return uint64(x%y) & mk, nil
	case ir.OpAnd:
		return a & b, nil
	case ir.OpOr:
		return a | b, nil
	case ir.OpXor:
		return a ^ b, nil
	case ir.OpShl:
		if b >= uint64(bits) {
			return 0, nil
		}
		return (a << b) & mk, nil
	case ir.OpLShr:
		if b >= uint64(bits) {
			return 0, nil
		}
		return a >> b, nil
	case ir.OpAShr:
		if b >= uint64(bits) {
			b = uint64(bits) - 1
		}
		return uint64(signExtend(a, bits)>>b) & mk, nil
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		if bits == 32 {
			return u32(float32(fbinary(code, float64(f32(a)), float64(f32(b))))), nil
		}
		return u64(fbinary(code, f64(a), f64(b))), nil
	}
	return 0, faultf("unknown arithmetic %s", code)
}

func fbinary(code ir.Opcode, a, b float64) float64 {
	switch code {
	case ir.OpFAdd:
		return a + b
	case ir.OpFSub:
		return a - b
	case ir.OpFMul:
		return a * b
	default:
		return a / b
	}
}

func fneg(bits uint32, a uint64) uint64 {
	if bits == 32 {
		return a ^ (1 << 31)
	}
	return a ^ (1 << 63)
}

func icmp(pred ir.IntPredicate, bits uint32, a, b uint64) bool {
	x, y := signExtend(a, bits), signExtend(b, bits)
	switch pred {
	case ir.IntEQ:
		return a == b
	case ir.IntNE:
		return a != b
	case ir.IntUGT:
		return a > b
	case ir.IntUGE:
		return a >= b
	case ir.IntULT:
		return a < b
	case ir.IntULE:
		return a <= b
	case ir.IntSGT:
		return x > y
	case ir.IntSGE:
		return x >= y
	case ir.IntSLT:
		return x < y
	case ir.IntSLE:
		return x <= y
	}
	return false
}

func fcmp(pred ir.FloatPredicate, bits uint32, a, b uint64) bool {
	var x, y float64
	if bits == 32 {
		x, y = float64(f32(a)), float64(f32(b))
	} else {
		x, y = f64(a), f64(b)
	}
	uno := math.IsNaN(x) || math.IsNaN(y)
	switch pred {
	case ir.FloatFalse:
		return false
	case ir.FloatTrue:
		return true
	case ir.FloatORD:
		return !uno
	case ir.FloatUNO:
		return uno
	case ir.FloatOEQ:
		return !uno && x == y
	case ir.FloatOGT:
		return !uno && x > y
	case ir.FloatOGE:
		return !uno && x >= y
	case ir.FloatOLT:
		return !uno && x < y
	case ir.FloatOLE:
		return !uno && x <= y
	case ir.FloatONE:
		return !uno && x != y
	case ir.FloatUEQ:
		return uno || x == y
	case ir.FloatUGT:
		return uno || x > y
	case ir.FloatUGE:
		return uno || x >= y
	case ir.FloatULT:
		return uno || x < y
	case ir.FloatULE:
		return uno || x <= y
	case ir.FloatUNE:
		return uno || x != y
	}
	return false
}

func cast(code ir.Opcode, from, to uint32, v uint64) uint64 {
	switch code {
	case ir.OpSExt:
		return uint64(signExtend(v, from)) & mask(to)
	case ir.OpZExt, ir.OpTrunc, ir.OpPtrToInt, ir.OpIntToPtr, ir.OpBitCast:
		return v & mask(to)
	case ir.OpFPTrunc:
		return u32(float32(f64(v)))
	case ir.OpFPExt:
		return u64(float64(f32(v)))
	case ir.OpSIToFP:
		x := signExtend(v, from)
		if to == 32 {
			return u32(float32(x))
		}
		return u64(float64(x))
	case ir.OpFPToSI:
		var x float64
		if from == 32 {
			x = float64(f32(v))
		} else {
			x = f64(v)
		}
		return uint64(int64(x)) & mask(to)
	}
	return v
}

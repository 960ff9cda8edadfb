package ir

// Builder is a cursor that appends instructions at the end of one basic
// block. It is not safe for concurrent use and must be positioned before
// emitting.
//
// Emission never checks operand types: an ill-typed module is built
// without complaint and rejected later by Verify. A name the session arena
// refuses (one holding a NUL byte) leaves the value unnamed; the failure is
// logged at the call and is available from Context.Err as soon as the
// emitting call returns.
type Builder struct {
	ctx   *Context
	block *BasicBlock
}

// PositionAtEnd moves the cursor to the end of block
func (b *Builder) PositionAtEnd(block *BasicBlock) {
	if block == nil {
		violate("Builder.PositionAtEnd", "nil block")
	}
	if block.parent.module.ctx != b.ctx {
		violate("Builder.PositionAtEnd", "block %%%s belongs to another context", block.Name())
	}
	b.block = block
}

// ClearPosition unsets the cursor
func (b *Builder) ClearPosition() { b.block = nil }

// Block returns the block at the cursor, nil if unpositioned
func (b *Builder) Block() *BasicBlock { return b.block }

// Function returns the function at the cursor, nil if unpositioned
func (b *Builder) Function() *Function {
	if b.block == nil {
		return nil
	}
	return b.block.parent
}

func (b *Builder) emit(op string, in *Instr, name string) *Instr {
	if b.block == nil {
		violate("Builder."+op, "builder has no insertion position")
	}
	if in.typ == nil {
		in.typ = b.ctx.void
	}
	for i, v := range in.operands {
		in.operands[i] = present(v)
	}
	if name != "" && in.typ != b.ctx.void {
		in.name = b.ctx.intern(name)
	}
	b.block.append(in)
	return in
}

// pointee returns the element type of a pointer-typed value, nil otherwise
func pointee(v Value) Type {
	if p, ok := v.Type().(*PointerType); ok {
		return p.elem
	}
	return nil
}

// Memory

// Alloca reserves stack space for one t in the current frame
func (b *Builder) Alloca(t Type, name string) *Instr {
	b.ctx.own("Builder.Alloca", t)
	return b.emit("Alloca", &Instr{op: OpAlloca, typ: b.ctx.PointerType(t), elem: t}, name)
}

// ArrayAlloca reserves stack space for count values of type t
func (b *Builder) ArrayAlloca(t Type, count Value, name string) *Instr {
	b.ctx.own("Builder.ArrayAlloca", t)
	return b.emit("ArrayAlloca", &Instr{op: OpAlloca, typ: b.ctx.PointerType(t), elem: t, operands: []Value{count}}, name)
}

// Malloc allocates one t on the heap
func (b *Builder) Malloc(t Type, name string) *Instr {
	b.ctx.own("Builder.Malloc", t)
	return b.emit("Malloc", &Instr{op: OpMalloc, typ: b.ctx.PointerType(t), elem: t}, name)
}

// ArrayMalloc allocates count values of type t on the heap
func (b *Builder) ArrayMalloc(t Type, count Value, name string) *Instr {
	b.ctx.own("Builder.ArrayMalloc", t)
	return b.emit("ArrayMalloc", &Instr{op: OpMalloc, typ: b.ctx.PointerType(t), elem: t, operands: []Value{count}}, name)
}

// Free releases heap memory obtained from Malloc or ArrayMalloc
func (b *Builder) Free(ptr Value) *Instr {
	return b.emit("Free", &Instr{op: OpFree, operands: []Value{ptr}}, "")
}

// Load reads the value ptr points at
func (b *Builder) Load(ptr Value, name string) *Instr {
	t := pointee(ptr)
	if t == nil {
		t = b.ctx.void
	}
	return b.emit("Load", &Instr{op: OpLoad, typ: t, elem: t, operands: []Value{ptr}}, name)
}

// Store writes val to the memory ptr points at
func (b *Builder) Store(val, ptr Value) *Instr {
	return b.emit("Store", &Instr{op: OpStore, operands: []Value{val, ptr}}, "")
}

// StructGEP computes the address of field idx of the struct ptr points at.
// When the struct has a body the index must be in range. An opaque struct
// yields an unusable void result that verification reports.
func (b *Builder) StructGEP(ptr Value, idx int, name string) *Instr {
	in := &Instr{op: OpStructGEP, operands: []Value{ptr}, indices: []int{idx}}
	if st, ok := pointee(ptr).(*StructType); ok {
		in.elem = st
		if !st.IsOpaque() {
			if idx < 0 || idx >= len(st.fields) {
				violate("Builder.StructGEP", "field index %d out of range for %s with %d fields", idx, st, len(st.fields))
			}
			in.typ = b.ctx.PointerType(st.fields[idx])
		}
	}
	return b.emit("StructGEP", in, name)
}

// InBoundsGEP offsets ptr by indices[0] elements, then descends into struct
// fields for each further constant index
func (b *Builder) InBoundsGEP(ptr Value, indices []Value, name string) *Instr {
	elem := pointee(ptr)
	in := &Instr{op: OpGEP, elem: elem, operands: append([]Value{ptr}, indices...)}
	cur := elem
	for _, ix := range indices[min(1, len(indices)):] {
		st, ok := cur.(*StructType)
		c, isConst := ix.(*Const)
		if !ok || !isConst || st.IsOpaque() {
			cur = nil
			break
		}
		field := int(c.SExtValue())
		if field < 0 || field >= len(st.fields) {
			violate("Builder.InBoundsGEP", "field index %d out of range for %s with %d fields", field, st, len(st.fields))
		}
		in.indices = append(in.indices, field)
		cur = st.fields[field]
	}
	if cur != nil {
		in.typ = b.ctx.PointerType(cur)
	}
	return b.emit("InBoundsGEP", in, name)
}

// Arithmetic and bitwise

func (b *Builder) binary(op Opcode, lhs, rhs Value, name string) *Instr {
	return b.emit(op.String(), &Instr{op: op, typ: lhs.Type(), operands: []Value{lhs, rhs}}, name)
}

func (b *Builder) Add(lhs, rhs Value, name string) *Instr  { return b.binary(OpAdd, lhs, rhs, name) }
func (b *Builder) Sub(lhs, rhs Value, name string) *Instr  { return b.binary(OpSub, lhs, rhs, name) }
func (b *Builder) Mul(lhs, rhs Value, name string) *Instr  { return b.binary(OpMul, lhs, rhs, name) }
func (b *Builder) SDiv(lhs, rhs Value, name string) *Instr { return b.binary(OpSDiv, lhs, rhs, name) }
func (b *Builder) UDiv(lhs, rhs Value, name string) *Instr { return b.binary(OpUDiv, lhs, rhs, name) }
func (b *Builder) SRem(lhs, rhs Value, name string) *Instr { return b.binary(OpSRem, lhs, rhs, name) }
func (b *Builder) URem(lhs, rhs Value, name string) *Instr { return b.binary(OpURem, lhs, rhs, name) }
func (b *Builder) And(lhs, rhs Value, name string) *Instr  { return b.binary(OpAnd, lhs, rhs, name) }
func (b *Builder) Or(lhs, rhs Value, name string) *Instr   { return b.binary(OpOr, lhs, rhs, name) }
func (b *Builder) Xor(lhs, rhs Value, name string) *Instr  { return b.binary(OpXor, lhs, rhs, name) }
func (b *Builder) Shl(lhs, rhs Value, name string) *Instr  { return b.binary(OpShl, lhs, rhs, name) }
func (b *Builder) AShr(lhs, rhs Value, name string) *Instr { return b.binary(OpAShr, lhs, rhs, name) }
func (b *Builder) LShr(lhs, rhs Value, name string) *Instr { return b.binary(OpLShr, lhs, rhs, name) }
func (b *Builder) FAdd(lhs, rhs Value, name string) *Instr { return b.binary(OpFAdd, lhs, rhs, name) }
func (b *Builder) FSub(lhs, rhs Value, name string) *Instr { return b.binary(OpFSub, lhs, rhs, name) }
func (b *Builder) FMul(lhs, rhs Value, name string) *Instr { return b.binary(OpFMul, lhs, rhs, name) }
func (b *Builder) FDiv(lhs, rhs Value, name string) *Instr { return b.binary(OpFDiv, lhs, rhs, name) }

// Not is emitted as xor with all ones
func (b *Builder) Not(v Value, name string) *Instr {
	return b.binary(OpXor, v, b.allOnes(v.Type()), name)
}

// Neg is emitted as subtraction from zero
func (b *Builder) Neg(v Value, name string) *Instr {
	return b.binary(OpSub, b.zero(v.Type()), v, name)
}

func (b *Builder) FNeg(v Value, name string) *Instr {
	return b.emit("FNeg", &Instr{op: OpFNeg, typ: v.Type(), operands: []Value{v}}, name)
}

func (b *Builder) allOnes(t Type) Value {
	if it, ok := t.(*IntType); ok {
		return b.ctx.ConstInt(it, ^uint64(0), false)
	}
	return b.ctx.Undef(t)
}

func (b *Builder) zero(t Type) Value {
	switch t := t.(type) {
	case *IntType:
		return b.ctx.ConstInt(t, 0, false)
	case *PointerType:
		return b.ctx.ConstNull(t)
	}
	return b.ctx.Undef(t)
}

// Comparisons

func (b *Builder) ICmp(pred IntPredicate, lhs, rhs Value, name string) *Instr {
	in := &Instr{op: OpICmp, typ: b.ctx.Int1Type(), pred: uint8(pred), operands: []Value{lhs, rhs}}
	return b.emit("ICmp", in, name)
}

func (b *Builder) FCmp(pred FloatPredicate, lhs, rhs Value, name string) *Instr {
	in := &Instr{op: OpFCmp, typ: b.ctx.Int1Type(), pred: uint8(pred), operands: []Value{lhs, rhs}}
	return b.emit("FCmp", in, name)
}

// IsNull compares v against null, or zero for integers
func (b *Builder) IsNull(v Value, name string) *Instr {
	return b.ICmp(IntEQ, v, b.zero(v.Type()), name)
}

// IsNotNull is the negation of IsNull
func (b *Builder) IsNotNull(v Value, name string) *Instr {
	return b.ICmp(IntNE, v, b.zero(v.Type()), name)
}

// Select yields a when cond is true, otherwise c
func (b *Builder) Select(cond, a, c Value, name string) *Instr {
	return b.emit("Select", &Instr{op: OpSelect, typ: a.Type(), operands: []Value{cond, a, c}}, name)
}

// Conversions

func (b *Builder) cast(op Opcode, v Value, to Type, name string) *Instr {
	b.ctx.own("Builder."+op.String(), to)
	return b.emit(op.String(), &Instr{op: op, typ: to, operands: []Value{v}}, name)
}

func (b *Builder) ZExt(v Value, to Type, name string) *Instr  { return b.cast(OpZExt, v, to, name) }
func (b *Builder) SExt(v Value, to Type, name string) *Instr  { return b.cast(OpSExt, v, to, name) }
func (b *Builder) Trunc(v Value, to Type, name string) *Instr { return b.cast(OpTrunc, v, to, name) }
func (b *Builder) BitCast(v Value, to Type, name string) *Instr {
	return b.cast(OpBitCast, v, to, name)
}
func (b *Builder) IntToPtr(v Value, to Type, name string) *Instr {
	return b.cast(OpIntToPtr, v, to, name)
}
func (b *Builder) PtrToInt(v Value, to Type, name string) *Instr {
	return b.cast(OpPtrToInt, v, to, name)
}
func (b *Builder) FPTrunc(v Value, to Type, name string) *Instr {
	return b.cast(OpFPTrunc, v, to, name)
}
func (b *Builder) FPExt(v Value, to Type, name string) *Instr  { return b.cast(OpFPExt, v, to, name) }
func (b *Builder) SIToFP(v Value, to Type, name string) *Instr { return b.cast(OpSIToFP, v, to, name) }
func (b *Builder) FPToSI(v Value, to Type, name string) *Instr { return b.cast(OpFPToSI, v, to, name) }

// TruncOrBitCast truncates integers to a narrower integer type and
// bitcasts everything else
func (b *Builder) TruncOrBitCast(v Value, to Type, name string) *Instr {
	src, ok1 := v.Type().(*IntType)
	dst, ok2 := to.(*IntType)
	if ok1 && ok2 && dst.bits < src.bits {
		return b.cast(OpTrunc, v, to, name)
	}
	return b.cast(OpBitCast, v, to, name)
}

// Aggregates

func (b *Builder) fieldOf(op string, agg Value, idx int) Type {
	st, ok := agg.Type().(*StructType)
	if !ok || st.IsOpaque() {
		return nil
	}
	if idx < 0 || idx >= len(st.fields) {
		violate(op, "field index %d out of range for %s with %d fields", idx, st, len(st.fields))
	}
	return st.fields[idx]
}

// ExtractValue reads field idx of a struct value
func (b *Builder) ExtractValue(agg Value, idx int, name string) *Instr {
	in := &Instr{op: OpExtractValue, typ: b.fieldOf("Builder.ExtractValue", agg, idx), operands: []Value{agg}, indices: []int{idx}}
	return b.emit("ExtractValue", in, name)
}

// InsertValue returns agg with field idx replaced by v
func (b *Builder) InsertValue(agg, v Value, idx int, name string) *Instr {
	b.fieldOf("Builder.InsertValue", agg, idx)
	in := &Instr{op: OpInsertValue, typ: agg.Type(), operands: []Value{agg, v}, indices: []int{idx}}
	return b.emit("InsertValue", in, name)
}

// Control flow

func (b *Builder) Br(dest *BasicBlock) *Instr {
	return b.emit("Br", &Instr{op: OpBr, targets: []*BasicBlock{dest}}, "")
}

func (b *Builder) CondBr(cond Value, then, els *BasicBlock) *Instr {
	return b.emit("CondBr", &Instr{op: OpCondBr, operands: []Value{cond}, targets: []*BasicBlock{then, els}}, "")
}

// Switch jumps to the first case whose value equals v, or to def
func (b *Builder) Switch(v Value, def *BasicBlock, cases []SwitchCase) *Instr {
	in := &Instr{op: OpSwitch, operands: []Value{v}, targets: []*BasicBlock{def}}
	for _, c := range cases {
		in.operands = append(in.operands, c.Value)
		in.targets = append(in.targets, c.Target)
	}
	return b.emit("Switch", in, "")
}

func (b *Builder) Ret(v Value) *Instr {
	return b.emit("Ret", &Instr{op: OpRet, operands: []Value{v}}, "")
}

func (b *Builder) RetVoid() *Instr {
	return b.emit("RetVoid", &Instr{op: OpRet}, "")
}

func (b *Builder) Unreachable() *Instr {
	return b.emit("Unreachable", &Instr{op: OpUnreachable}, "")
}

// Call calls fn with args
func (b *Builder) Call(fn *Function, args []Value, name string) *Instr {
	return b.call("Call", fn, args, name, false)
}

// TailCall is a call marked as eligible for frame reuse. The marking only
// takes effect when the call's result is returned immediately.
func (b *Builder) TailCall(fn *Function, args []Value, name string) *Instr {
	return b.call("TailCall", fn, args, name, true)
}

func (b *Builder) call(op string, fn *Function, args []Value, name string, tail bool) *Instr {
	if fn == nil {
		violate("Builder."+op, "nil callee")
	}
	in := &Instr{op: OpCall, typ: fn.sig.ret, callee: fn, operands: append([]Value(nil), args...), tail: tail}
	return b.emit(op, in, name)
}

// Phi creates a merge point of type t at the cursor
func (b *Builder) Phi(t Type, name string) *Phi {
	b.ctx.own("Builder.Phi", t)
	return &Phi{in: b.emit("Phi", &Instr{op: OpPhi, typ: t}, name)}
}

// GlobalStringPtr adds a string constant to the current module and returns
// its address as an i8*
func (b *Builder) GlobalStringPtr(text, name string) *Global {
	if b.block == nil {
		violate("Builder.GlobalStringPtr", "builder has no insertion position")
	}
	return b.block.parent.module.AddGlobalString(name, text)
}

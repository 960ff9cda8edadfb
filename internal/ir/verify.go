package ir

import (
	"fmt"

	"ssakit/internal/errors"
)

// VerifyError lists everything wrong with a module
type VerifyError struct {
	Diagnostics errors.List
}

func (e *VerifyError) Error() string {
	return "module verification failed:\n" + e.Diagnostics.Error()
}

// Verify checks m for well-formedness and returns nil or a *VerifyError. It
// reads the module only, so it can be called any number of times.
func Verify(m *Module) error {
	v := &verifier{m: m}
	v.run()
	if len(v.diags) == 0 {
		return nil
	}
	return &VerifyError{Diagnostics: v.diags}
}

type verifier struct {
	m     *Module
	diags errors.List

	// current function state
	fn    *Function
	p     *Printer
	preds map[*BasicBlock][]*BasicBlock
	dom   *domTree
	index map[*Instr]int
}

func (v *verifier) report(code string, loc errors.Location, format string, args ...any) {
	v.diags = append(v.diags, errors.NewDiagnostic(code, fmt.Sprintf(format, args...)).In(loc).Build())
}

func (v *verifier) at(b *BasicBlock, in *Instr) errors.Location {
	loc := errors.Location{Function: v.fn.Name(), Block: b.Name()}
	if in != nil {
		loc.Instr = v.p.instr(in)
	}
	return loc
}

func (v *verifier) run() {
	if err := v.m.ctx.Err(); err != nil {
		v.report(errors.ErrorInvalidName, errors.Location{}, "%v", err)
	}
	for _, st := range v.m.ctx.NamedStructs() {
		if st.BodyAssignments() > 1 {
			v.report(errors.ErrorStructRedefined, errors.Location{},
				"struct %s body assigned %d times", st, st.BodyAssignments())
		}
	}
	for _, g := range v.m.globals {
		if g.init != nil && !IsSized(g.init.Type()) {
			v.report(errors.ErrorIncompleteStruct, errors.Location{},
				"global @%s has incomplete type %s", g.Name(), g.init.Type())
		}
	}
	for _, f := range v.m.funcs {
		v.function(f)
	}
}

func (v *verifier) function(f *Function) {
	if f.IsDeclaration() {
		return
	}
	v.fn = f
	v.p = newPrinter()
	v.p.numberFunction(f)
	fnLoc := errors.Location{Function: f.Name()}

	sig := f.sig
	if _, ok := sig.ret.(*StructType); ok && !IsSized(sig.ret) {
		v.report(errors.ErrorIncompleteStruct, fnLoc, "return type %s has no complete layout", sig.ret)
	}
	for i, t := range sig.params {
		if _, ok := t.(*StructType); ok && !IsSized(t) {
			v.report(errors.ErrorIncompleteStruct, fnLoc, "parameter %d has incomplete type %s", i, t)
		}
	}

	succs := make(map[*BasicBlock][]*BasicBlock, len(f.blocks))
	v.preds = make(map[*BasicBlock][]*BasicBlock, len(f.blocks))
	v.index = make(map[*Instr]int)
	for _, b := range f.blocks {
		for i, in := range b.instrs {
			v.index[in] = i
		}
		var targets []*BasicBlock
		for _, s := range b.Successors() {
			if s.parent == f {
				targets = append(targets, s)
			}
		}
		succs[b] = targets
		for _, s := range targets {
			v.preds[s] = append(v.preds[s], b)
		}
	}
	v.dom = newDomTree(f, succs, v.preds)

	if len(v.preds[f.Entry()]) > 0 {
		v.report(errors.ErrorEntryHasPredecessors, v.at(f.Entry(), nil), "entry block has predecessors")
	}

	for _, b := range f.blocks {
		v.block(b)
	}
}

func (v *verifier) block(b *BasicBlock) {
	if len(b.instrs) == 0 {
		v.report(errors.ErrorMissingTerminator, v.at(b, nil), "block is empty")
		return
	}
	last := len(b.instrs) - 1
	if !b.instrs[last].IsTerminator() {
		v.report(errors.ErrorMissingTerminator, v.at(b, b.instrs[last]), "block does not end in a terminator")
	}

	seenNonPhi := false
	for i, in := range b.instrs {
		if in.IsTerminator() && i != last {
			v.report(errors.ErrorMisplacedTerminator, v.at(b, in), "terminator in the middle of a block")
		}
		if in.op == OpPhi {
			if seenNonPhi {
				v.report(errors.ErrorMisplacedPhi, v.at(b, in), "phi after a non-phi instruction")
			}
			v.phi(b, in)
		} else {
			seenNonPhi = true
		}
		v.operands(b, in)
		v.types(b, in)
	}
}

func (v *verifier) phi(b *BasicBlock, in *Instr) {
	preds := v.preds[b]
	want := make(map[*BasicBlock]bool, len(preds))
	for _, p := range preds {
		want[p] = true
	}

	if len(in.targets) == 0 && len(preds) == 0 {
		v.report(errors.ErrorPhiPredecessors, v.at(b, in), "phi has no incoming values")
		return
	}

	got := make(map[*BasicBlock]Value, len(in.targets))
	for i, blk := range in.targets {
		val := in.operands[i]
		if prev, dup := got[blk]; dup && prev != val {
			v.report(errors.ErrorPhiPredecessors, v.at(b, in),
				"phi has conflicting values for predecessor %s", v.p.label(blk))
		}
		got[blk] = val
		if !want[blk] {
			v.report(errors.ErrorPhiPredecessors, v.at(b, in),
				"phi incoming block %s is not a predecessor", v.p.label(blk))
		}
		if val != nil && val.Type() != in.typ {
			v.report(errors.ErrorTypeMismatch, v.at(b, in),
				"phi incoming value %s has type %s, expected %s", v.p.ref(val), val.Type(), in.typ)
		}
	}
	for _, p := range preds {
		if _, ok := got[p]; !ok {
			v.report(errors.ErrorPhiPredecessors, v.at(b, in),
				"phi has no incoming value for predecessor %s", v.p.label(p))
		}
	}
}

// operands checks ownership, void use and dominance
func (v *verifier) operands(b *BasicBlock, in *Instr) {
	for _, t := range in.targets {
		if t == nil || t.parent != v.fn {
			v.report(errors.ErrorForeignReference, v.at(b, in), "block reference outside @%s", v.fn.Name())
		}
	}
	if in.callee != nil && in.callee.module != v.m {
		v.report(errors.ErrorForeignReference, v.at(b, in), "call to @%s of another module", in.callee.Name())
	}

	for n, op := range in.operands {
		switch op := op.(type) {
		case nil:
			v.report(errors.ErrorInvalidOperand, v.at(b, in), "operand %d is missing", n)
		case *Const:
			if op.typ.Context() != v.m.ctx {
				v.report(errors.ErrorForeignReference, v.at(b, in), "constant from another context")
			}
		case *Function:
			if op.module != v.m {
				v.report(errors.ErrorForeignReference, v.at(b, in), "reference to @%s of another module", op.Name())
			}
		case *Global:
			if op.module != v.m {
				v.report(errors.ErrorForeignReference, v.at(b, in), "reference to @%s of another module", op.Name())
			}
		case *Param:
			if op.fn != v.fn {
				v.report(errors.ErrorForeignReference, v.at(b, in), "parameter of @%s used in @%s", op.fn.Name(), v.fn.Name())
			}
		case *Instr:
			if op.parent == nil || op.parent.parent != v.fn {
				v.report(errors.ErrorForeignReference, v.at(b, in), "instruction of another function used as operand")
				continue
			}
			if !op.ProducesValue() {
				v.report(errors.ErrorInvalidOperand, v.at(b, in), "void value used as operand %d", n)
				continue
			}
			v.dominance(b, in, n, op)
		}
	}
}

func (v *verifier) dominance(b *BasicBlock, use *Instr, n int, def *Instr) {
	useBlock := b
	if use.op == OpPhi {
		useBlock = use.targets[n]
		if useBlock == nil || !v.dom.reachable(useBlock) {
			return
		}
		if def.parent == useBlock || v.dom.dominates(def.parent, useBlock) {
			return
		}
	} else {
		if !v.dom.reachable(b) {
			return
		}
		if def.parent == b {
			if v.index[def] < v.index[use] {
				return
			}
		} else if v.dom.dominates(def.parent, b) {
			return
		}
	}
	v.report(errors.ErrorUndominatedUse, v.at(b, use),
		"operand %s does not dominate this use", v.p.ref(def))
}

func (v *verifier) mismatch(b *BasicBlock, in *Instr, format string, args ...any) {
	v.report(errors.ErrorTypeMismatch, v.at(b, in), format, args...)
}

func (v *verifier) incomplete(b *BasicBlock, in *Instr, t Type) bool {
	if t == nil || IsSized(t) {
		return false
	}
	v.report(errors.ErrorIncompleteStruct, v.at(b, in), "%s has no complete layout", t)
	return true
}

func typeOf(v Value) Type {
	if v == nil {
		return nil
	}
	return v.Type()
}

// types applies the per-opcode typing rules
func (v *verifier) types(b *BasicBlock, in *Instr) {
	ops := in.operands
	for _, op := range ops {
		if op == nil || op.Type().Kind() == VoidKind {
			return
		}
	}

	switch {
	case in.op >= OpAdd && in.op <= OpLShr:
		if ops[0].Type() != ops[1].Type() || !IsInteger(ops[0].Type()) {
			v.mismatch(b, in, "%s needs two integers of one type, got %s and %s", in.op, ops[0].Type(), ops[1].Type())
		}
		return
	case in.op >= OpFAdd && in.op <= OpFDiv:
		if ops[0].Type() != ops[1].Type() || !IsFloat(ops[0].Type()) {
			v.mismatch(b, in, "%s needs two floats of one type, got %s and %s", in.op, ops[0].Type(), ops[1].Type())
		}
		return
	case in.op.IsCast():
		v.cast(b, in)
		return
	}

	switch in.op {
	case OpAlloca, OpMalloc:
		v.incomplete(b, in, in.elem)
		if len(ops) > 0 && !IsInteger(ops[0].Type()) {
			v.mismatch(b, in, "element count must be an integer, got %s", ops[0].Type())
		}
	case OpFree:
		if !IsPointer(ops[0].Type()) {
			v.mismatch(b, in, "free of non-pointer %s", ops[0].Type())
		}
	case OpLoad:
		elem := pointee(ops[0])
		if elem == nil {
			v.mismatch(b, in, "load from non-pointer %s", ops[0].Type())
			return
		}
		v.incomplete(b, in, elem)
	case OpStore:
		elem := pointee(ops[1])
		if elem == nil {
			v.mismatch(b, in, "store to non-pointer %s", ops[1].Type())
			return
		}
		if v.incomplete(b, in, ops[0].Type()) {
			return
		}
		if elem != ops[0].Type() {
			v.mismatch(b, in, "store of %s through %s", ops[0].Type(), ops[1].Type())
		}
	case OpStructGEP:
		st, ok := pointee(ops[0]).(*StructType)
		if !ok {
			v.report(errors.ErrorInvalidOperand, v.at(b, in), "field address of non-struct pointer %s", ops[0].Type())
			return
		}
		v.incomplete(b, in, st)
	case OpGEP:
		if !IsPointer(ops[0].Type()) {
			v.report(errors.ErrorInvalidOperand, v.at(b, in), "getelementptr base %s is not a pointer", ops[0].Type())
			return
		}
		for _, ix := range ops[1:] {
			if !IsInteger(ix.Type()) {
				v.mismatch(b, in, "getelementptr index of type %s", ix.Type())
				return
			}
		}
		if in.typ.Kind() == VoidKind {
			v.report(errors.ErrorInvalidIndex, v.at(b, in), "getelementptr indices do not select a field")
			return
		}
		v.incomplete(b, in, in.elem)
	case OpFNeg:
		if !IsFloat(ops[0].Type()) {
			v.mismatch(b, in, "fneg of non-float %s", ops[0].Type())
		}
	case OpICmp:
		t := ops[0].Type()
		if t != ops[1].Type() || !(IsInteger(t) || IsPointer(t)) {
			v.mismatch(b, in, "icmp needs two integers or pointers of one type, got %s and %s", t, ops[1].Type())
		}
	case OpFCmp:
		if ops[0].Type() != ops[1].Type() || !IsFloat(ops[0].Type()) {
			v.mismatch(b, in, "fcmp needs two floats of one type, got %s and %s", ops[0].Type(), ops[1].Type())
		}
	case OpExtractValue, OpInsertValue:
		st, ok := ops[0].Type().(*StructType)
		if !ok {
			v.report(errors.ErrorInvalidOperand, v.at(b, in), "%s on non-struct %s", in.op, ops[0].Type())
			return
		}
		if v.incomplete(b, in, st) {
			return
		}
		idx := in.indices[0]
		if idx < 0 || idx >= len(st.fields) {
			v.report(errors.ErrorInvalidIndex, v.at(b, in), "field index %d out of range for %s", idx, st)
			return
		}
		if in.op == OpInsertValue && ops[1].Type() != st.fields[idx] {
			v.mismatch(b, in, "inserting %s into field of type %s", ops[1].Type(), st.fields[idx])
		}
	case OpSelect:
		if !IsInteger(ops[0].Type(), 1) {
			v.mismatch(b, in, "select condition must be i1, got %s", ops[0].Type())
		}
		if ops[1].Type() != ops[2].Type() {
			v.mismatch(b, in, "select arms differ: %s and %s", ops[1].Type(), ops[2].Type())
		}
	case OpCall:
		v.call(b, in)
	case OpCondBr:
		if !IsInteger(ops[0].Type(), 1) {
			v.mismatch(b, in, "branch condition must be i1, got %s", ops[0].Type())
		}
	case OpSwitch:
		v.switchCases(b, in)
	case OpRet:
		ret := v.fn.sig.ret
		switch {
		case len(ops) == 0 && ret.Kind() != VoidKind:
			v.mismatch(b, in, "ret void in function returning %s", ret)
		case len(ops) > 0 && ops[0].Type() != ret:
			v.mismatch(b, in, "returning %s from function returning %s", ops[0].Type(), ret)
		}
	}
}

func (v *verifier) cast(b *BasicBlock, in *Instr) {
	from, to := in.operands[0].Type(), in.typ
	fi, fromInt := from.(*IntType)
	ti, toInt := to.(*IntType)
	ok := false
	switch in.op {
	case OpZExt, OpSExt:
		ok = fromInt && toInt && ti.bits > fi.bits
	case OpTrunc:
		ok = fromInt && toInt && ti.bits < fi.bits
	case OpBitCast:
		ok = (IsPointer(from) && IsPointer(to)) || bitWidth(from) != 0 && bitWidth(from) == bitWidth(to)
	case OpIntToPtr:
		ok = fromInt && IsPointer(to)
	case OpPtrToInt:
		ok = IsPointer(from) && toInt
	case OpFPTrunc:
		ok = from.Kind() == DoubleKind && to.Kind() == FloatKind
	case OpFPExt:
		ok = from.Kind() == FloatKind && to.Kind() == DoubleKind
	case OpSIToFP:
		ok = fromInt && IsFloat(to)
	case OpFPToSI:
		ok = IsFloat(from) && toInt
	}
	if !ok {
		v.mismatch(b, in, "invalid %s from %s to %s", in.op, from, to)
	}
}

// bitWidth is the width of first-class non-pointer scalars, 0 otherwise
func bitWidth(t Type) uint32 {
	switch t := t.(type) {
	case *IntType:
		return t.bits
	case *FloatType:
		if t.kind == FloatKind {
			return 32
		}
		return 64
	}
	return 0
}

func (v *verifier) call(b *BasicBlock, in *Instr) {
	sig := in.callee.sig
	args := in.operands
	if len(args) < len(sig.params) || len(args) > len(sig.params) && !sig.variadic {
		want := fmt.Sprintf("%d", len(sig.params))
		if sig.variadic {
			want = "at least " + want
		}
		v.report(errors.ErrorCallArity, v.at(b, in), "call to @%s passes %d arguments, expected %s",
			in.callee.Name(), len(args), want)
		return
	}
	for i, t := range sig.params {
		if args[i].Type() != t {
			v.mismatch(b, in, "argument %d to @%s has type %s, expected %s", i, in.callee.Name(), args[i].Type(), t)
		}
	}
	for _, a := range args[len(sig.params):] {
		if a.Type().Kind() == VoidKind || a.Type().Kind() == LabelKind {
			v.mismatch(b, in, "variadic argument of type %s", a.Type())
		}
	}
}

func (v *verifier) switchCases(b *BasicBlock, in *Instr) {
	t := in.operands[0].Type()
	if !IsInteger(t) {
		v.mismatch(b, in, "switch on non-integer %s", t)
		return
	}
	seen := make(map[uint64]bool)
	for _, c := range in.operands[1:] {
		k, ok := c.(*Const)
		if !ok || k.kind != ConstIntKind {
			v.report(errors.ErrorInvalidOperand, v.at(b, in), "switch case %s is not an integer constant", v.p.ref(c))
			continue
		}
		if k.typ != t {
			v.mismatch(b, in, "switch case %s has type %s, expected %s", k, k.typ, t)
			continue
		}
		if seen[k.bits] {
			v.report(errors.ErrorDuplicateCase, v.at(b, in), "duplicate switch case %s", k)
		}
		seen[k.bits] = true
	}
}

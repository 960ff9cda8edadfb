package ir

import (
	"fmt"

	"ssakit/internal/intern"
)

// Opcode identifies an instruction
type Opcode uint8

const (
	OpAlloca Opcode = iota
	OpLoad
	OpStore
	OpStructGEP
	OpGEP
	OpMalloc
	OpFree

	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpAShr
	OpLShr
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	OpICmp
	OpFCmp

	OpZExt
	OpSExt
	OpTrunc
	OpBitCast
	OpIntToPtr
	OpPtrToInt
	OpFPTrunc
	OpFPExt
	OpSIToFP
	OpFPToSI

	OpExtractValue
	OpInsertValue
	OpSelect
	OpPhi
	OpCall

	OpBr
	OpCondBr
	OpSwitch
	OpRet
	OpUnreachable
)

var opcodeNames = [...]string{
	OpAlloca: "alloca", OpLoad: "load", OpStore: "store", OpStructGEP: "getelementptr",
	OpGEP: "getelementptr inbounds", OpMalloc: "malloc", OpFree: "free",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSDiv: "sdiv", OpUDiv: "udiv",
	OpSRem: "srem", OpURem: "urem", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpAShr: "ashr", OpLShr: "lshr",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv", OpFNeg: "fneg",
	OpICmp: "icmp", OpFCmp: "fcmp",
	OpZExt: "zext", OpSExt: "sext", OpTrunc: "trunc", OpBitCast: "bitcast",
	OpIntToPtr: "inttoptr", OpPtrToInt: "ptrtoint", OpFPTrunc: "fptrunc",
	OpFPExt: "fpext", OpSIToFP: "sitofp", OpFPToSI: "fptosi",
	OpExtractValue: "extractvalue", OpInsertValue: "insertvalue", OpSelect: "select",
	OpPhi: "phi", OpCall: "call",
	OpBr: "br", OpCondBr: "br", OpSwitch: "switch", OpRet: "ret", OpUnreachable: "unreachable",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// IsTerminator reports whether op ends a basic block
func (op Opcode) IsTerminator() bool {
	return op >= OpBr
}

// IsBinary reports whether op is a two-operand arithmetic or bitwise op
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpFDiv
}

// IsCast reports whether op is a conversion
func (op Opcode) IsCast() bool {
	return op >= OpZExt && op <= OpFPToSI
}

// IntPredicate is the condition of an integer comparison
type IntPredicate uint8

const (
	IntEQ IntPredicate = iota
	IntNE
	IntUGT
	IntUGE
	IntULT
	IntULE
	IntSGT
	IntSGE
	IntSLT
	IntSLE
)

var intPredNames = [...]string{"eq", "ne", "ugt", "uge", "ult", "ule", "sgt", "sge", "slt", "sle"}

func (p IntPredicate) String() string {
	if int(p) < len(intPredNames) {
		return intPredNames[p]
	}
	return fmt.Sprintf("ipred(%d)", uint8(p))
}

// FloatPredicate is the condition of a floating comparison. The O forms are
// false when either operand is NaN, the U forms are true.
type FloatPredicate uint8

const (
	FloatFalse FloatPredicate = iota
	FloatOEQ
	FloatOGT
	FloatOGE
	FloatOLT
	FloatOLE
	FloatONE
	FloatORD
	FloatUNO
	FloatUEQ
	FloatUGT
	FloatUGE
	FloatULT
	FloatULE
	FloatUNE
	FloatTrue
)

var floatPredNames = [...]string{
	"false", "oeq", "ogt", "oge", "olt", "ole", "one", "ord",
	"uno", "ueq", "ugt", "uge", "ult", "ule", "une", "true",
}

func (p FloatPredicate) String() string {
	if int(p) < len(floatPredNames) {
		return floatPredNames[p]
	}
	return fmt.Sprintf("fpred(%d)", uint8(p))
}

// SwitchCase is one (value, target) arm of a switch
type SwitchCase struct {
	Value  *Const
	Target *BasicBlock
}

// Instr is an emitted instruction. Instructions that produce no value have
// void type and must not be used as operands.
type Instr struct {
	op       Opcode
	typ      Type
	name     intern.Handle
	parent   *BasicBlock
	operands []Value
	targets  []*BasicBlock

	// alloca/malloc element type, load result type, gep source element
	elem    Type
	pred    uint8
	indices []int
	callee  *Function
	tail    bool
}

func (i *Instr) Type() Type { return i.typ }

func (i *Instr) Name() string {
	return i.parent.parent.module.ctx.str(i.name)
}

func (*Instr) valueNode() {}

func (i *Instr) Opcode() Opcode      { return i.op }
func (i *Instr) Parent() *BasicBlock { return i.parent }
func (i *Instr) NumOperands() int    { return len(i.operands) }
func (i *Instr) Operand(n int) Value { return i.operands[n] }
func (i *Instr) IsTerminator() bool  { return i.op.IsTerminator() }
func (i *Instr) ProducesValue() bool { return i.typ.Kind() != VoidKind }
func (i *Instr) ElemType() Type      { return i.elem }
func (i *Instr) Callee() *Function   { return i.callee }
func (i *Instr) IsTailCall() bool    { return i.tail }

func (i *Instr) IntPredicate() IntPredicate {
	return IntPredicate(i.pred)
}
func (i *Instr) FloatPredicate() FloatPredicate {
	return FloatPredicate(i.pred)
}

// Operands returns a copy of the operand list
func (i *Instr) Operands() []Value {
	return append([]Value(nil), i.operands...)
}

// Targets returns the blocks an instruction refers to: branch targets in
// order (the switch default first), or a phi's incoming blocks.
func (i *Instr) Targets() []*BasicBlock {
	return append([]*BasicBlock(nil), i.targets...)
}

// Indices returns the constant field indices of extractvalue, insertvalue
// and struct field address instructions
func (i *Instr) Indices() []int {
	return append([]int(nil), i.indices...)
}

// Cases returns the arms of a switch, excluding the default
func (i *Instr) Cases() []SwitchCase {
	if i.op != OpSwitch {
		return nil
	}
	cases := make([]SwitchCase, 0, len(i.targets)-1)
	for n := 1; n < len(i.targets); n++ {
		c, _ := i.operands[n].(*Const)
		cases = append(cases, SwitchCase{Value: c, Target: i.targets[n]})
	}
	return cases
}

// SetName renames the instruction's result
func (i *Instr) SetName(name string) {
	i.name = i.parent.parent.module.ctx.intern(name)
}

func (i *Instr) String() string {
	p := newPrinter()
	p.numberFunction(i.parent.parent)
	return p.instr(i)
}

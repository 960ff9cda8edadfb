// Package fib builds the recursive Fibonacci demo module
package fib

import (
	"ssakit/internal/ir"
)

// DefaultN is the argument main passes to fib
const DefaultN = 10

// Build returns a module with fib(i64) i64 and a main that prints
// fib(DefaultN) with printf
func Build(ctx *ir.Context) *ir.Module {
	return BuildN(ctx, DefaultN)
}

// BuildN is Build with a chosen argument
func BuildN(ctx *ir.Context, n uint64) *ir.Module {
	i64 := ctx.Int64Type()
	m := ctx.NewModule("fib_example")

	printf := m.AddFunction("printf", ctx.FunctionType(ctx.Int32Type(), []ir.Type{ctx.Int8PointerType()}, true))
	fib := m.AddFunction("fib", ctx.FunctionType(i64, []ir.Type{i64}, false))
	fib.Param(0).SetName("n")
	arg := fib.Param(0)

	entry := fib.AppendBlock("entry")
	then0 := fib.AppendBlock("then0")
	else0 := fib.AppendBlock("else0")
	end := fib.AppendBlock("end")

	b := ctx.NewBuilder()
	b.PositionAtEnd(entry)
	b.CondBr(b.ICmp(ir.IntEQ, arg, ctx.UInt(64, 0), "is0"), then0, else0)

	b.PositionAtEnd(then0)
	b.Br(end)

	b.PositionAtEnd(else0)
	then1 := fib.AppendBlock("then1")
	else1 := fib.AppendBlock("else1")
	b.CondBr(b.ICmp(ir.IntEQ, arg, ctx.UInt(64, 1), "is1"), then1, else1)

	b.PositionAtEnd(then1)
	b.Br(end)

	b.PositionAtEnd(else1)
	a := b.TailCall(fib, []ir.Value{b.Sub(arg, ctx.UInt(64, 2), "n2")}, "f2")
	c := b.TailCall(fib, []ir.Value{b.Sub(arg, ctx.UInt(64, 1), "n1")}, "f1")
	sum := b.Add(a, c, "sum")
	b.Br(end)

	b.PositionAtEnd(end)
	phi := b.Phi(i64, "r")
	phi.AddIncoming(ctx.UInt(64, 0), then0)
	phi.AddIncoming(ctx.UInt(64, 1), then1)
	phi.AddIncoming(sum, else1)
	b.Ret(phi.Value())

	main := m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))
	b.PositionAtEnd(main.AppendBlock("entry"))
	r := b.Call(fib, []ir.Value{ctx.UInt(64, n)}, "r")
	format := b.GlobalStringPtr("%lu\n", "fmt")
	b.Call(printf, []ir.Value{format, r}, "")
	b.RetVoid()
	return m
}

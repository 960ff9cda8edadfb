// Package samples holds small reference modules. They are built from
// scratch in a caller-supplied Context so several can be built and run
// concurrently, each in its own session.
package samples

import (
	"ssakit/internal/ir"
)

// Sample describes a reference module and what running it produces
type Sample struct {
	Name   string
	Build  func(ctx *ir.Context) *ir.Module
	Entry  string // function to run, taking no arguments
	Result int64  // expected integer result, when Entry returns one
	Output string // expected standard output
}

// All returns every sample
func All() []Sample {
	return []Sample{
		{Name: "sum", Build: Sum, Entry: "sum", Result: 48},
		{Name: "list", Build: LinkedList, Entry: "list_sum", Result: 10},
		{Name: "countdown", Build: func(ctx *ir.Context) *ir.Module { return Countdown(ctx, 100000) }, Entry: "main", Result: 1},
		{Name: "hello", Build: Hello, Entry: "main", Output: "Hello\n"},
	}
}

// Sum allocates two locals, stores 32 and 16 in them and returns their sum
func Sum(ctx *ir.Context) *ir.Module {
	i32 := ctx.Int32Type()
	m := ctx.NewModule("sum")
	f := m.AddFunction("sum", ctx.FunctionType(i32, nil, false))

	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	x := b.Alloca(i32, "x")
	y := b.Alloca(i32, "y")
	b.Store(ctx.SInt(32, 32), x)
	b.Store(ctx.SInt(32, 16), y)
	b.Ret(b.Add(b.Load(x, "a"), b.Load(y, "b"), "sum"))
	return m
}

// LinkedList builds the list (0 1 2 3 4) out of a self-referential
// %Pair = { i32, %Pair* } in a stack array and returns the sum of its
// values
func LinkedList(ctx *ir.Context) *ir.Module {
	i32 := ctx.Int32Type()
	m := ctx.NewModule("list")

	pair := ctx.NamedStruct("Pair")
	pairPtr := ctx.PointerType(pair)
	pair.SetBody([]ir.Type{i32, pairPtr}, false)

	f := m.AddFunction("list_sum", ctx.FunctionType(i32, nil, false))
	entry := f.AppendBlock("entry")
	loop := f.AppendBlock("loop")
	body := f.AppendBlock("body")
	exit := f.AppendBlock("exit")

	b := ctx.NewBuilder()
	b.PositionAtEnd(entry)
	buf := b.ArrayAlloca(pair, ctx.SInt(32, 5), "buf")
	nodes := make([]ir.Value, 5)
	for i := range nodes {
		nodes[i] = b.InBoundsGEP(buf, []ir.Value{ctx.UInt(32, uint64(i))}, "node")
	}
	for i, node := range nodes {
		b.Store(ctx.SInt(32, int64(i)), b.StructGEP(node, 0, "value"))
		var next ir.Value = ctx.ConstNull(pairPtr)
		if i+1 < len(nodes) {
			next = nodes[i+1]
		}
		b.Store(next, b.StructGEP(node, 1, "next"))
	}
	b.Br(loop)

	b.PositionAtEnd(loop)
	cur := b.Phi(pairPtr, "cur")
	acc := b.Phi(i32, "acc")
	b.CondBr(b.IsNull(cur.Value(), "done"), exit, body)

	b.PositionAtEnd(body)
	v := b.Load(b.StructGEP(cur.Value(), 0, "vp"), "v")
	total := b.Add(acc.Value(), v, "total")
	next := b.Load(b.StructGEP(cur.Value(), 1, "np"), "next")
	b.Br(loop)

	cur.AddIncomings([]ir.Value{nodes[0], next}, []*ir.BasicBlock{entry, body})
	acc.AddIncomings([]ir.Value{ctx.SInt(32, 0), total}, []*ir.BasicBlock{entry, body})

	b.PositionAtEnd(exit)
	b.Ret(acc.Value())
	return m
}

// Countdown calls countdown(n), which tail-calls itself with n-1 until it
// reaches 1 and returns 1
func Countdown(ctx *ir.Context, n uint64) *ir.Module {
	i32 := ctx.Int32Type()
	m := ctx.NewModule("countdown")
	f := m.AddFunction("countdown", ctx.FunctionType(i32, []ir.Type{i32}, false))
	f.Param(0).SetName("x")

	b := ctx.NewBuilder()
	b.PositionAtEnd(f.AppendBlock("entry"))
	then := f.AppendBlock("then")
	els := f.AppendBlock("else")
	slot := b.Alloca(i32, "slot")
	b.Store(f.Param(0), slot)
	x := b.Load(slot, "x")
	b.CondBr(b.ICmp(ir.IntEQ, x, ctx.UInt(32, 1), "one"), then, els)

	b.PositionAtEnd(els)
	r := b.TailCall(f, []ir.Value{b.Sub(x, ctx.UInt(32, 1), "dec")}, "r")
	b.Ret(r)

	b.PositionAtEnd(then)
	b.Ret(ctx.SInt(32, 1))

	main := m.AddFunction("main", ctx.FunctionType(i32, nil, false))
	b.PositionAtEnd(main.AppendBlock("entry"))
	b.Ret(b.Call(f, []ir.Value{ctx.UInt(32, n)}, "res"))
	return m
}

// Hello writes "Hello\n" into a stack buffer byte by byte and prints it
// with printf
func Hello(ctx *ir.Context) *ir.Module {
	m := ctx.NewModule("hello")
	printf := m.AddFunction("printf", ctx.FunctionType(ctx.Int32Type(), []ir.Type{ctx.Int8PointerType()}, true))
	main := m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))

	b := ctx.NewBuilder()
	b.PositionAtEnd(main.AppendBlock("entry"))
	buf := b.ArrayAlloca(ctx.Int8Type(), ctx.SInt(32, 7), "buf")
	for i, c := range []byte("Hello\n\x00") {
		p := b.InBoundsGEP(buf, []ir.Value{ctx.SInt(32, int64(i))}, "p")
		b.Store(ctx.UInt(8, uint64(c)), p)
	}
	b.Call(printf, []ir.Value{buf}, "")
	b.RetVoid()
	return m
}

// Package brainhack compiles the eight-command tape language into an IR
// module whose main allocates the tape, runs the program and frees it.
package brainhack

import (
	"fmt"

	"ssakit/grammar"
	"ssakit/internal/ir"
)

// DefaultTapeSize is the number of cells main allocates
const DefaultTapeSize = 30000

type Options struct {
	TapeSize uint64
}

// Compile builds the module for program with the default tape
func Compile(ctx *ir.Context, name string, program *grammar.Program) (*ir.Module, error) {
	return CompileWith(ctx, name, program, Options{})
}

// CompileWith builds the module for program. The result is not verified.
func CompileWith(ctx *ir.Context, name string, program *grammar.Program, opts Options) (*ir.Module, error) {
	if program == nil {
		return nil, fmt.Errorf("brainhack: nil program")
	}
	if opts.TapeSize == 0 {
		opts.TapeSize = DefaultTapeSize
	}

	c := &compiler{ctx: ctx, b: ctx.NewBuilder(), m: ctx.NewModule(name)}
	if err := c.declare(); err != nil {
		return nil, err
	}
	c.main = c.m.AddFunction("main", ctx.FunctionType(ctx.VoidType(), nil, false))
	c.b.PositionAtEnd(c.main.AppendBlock("entry"))

	data := c.initTape(opts.TapeSize)
	c.items(program.Items)
	c.b.Call(c.free, []ir.Value{c.b.Load(data, "tape")}, "")
	c.b.RetVoid()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.m, nil
}

type compiler struct {
	ctx  *ir.Context
	b    *ir.Builder
	m    *ir.Module
	main *ir.Function
	ptr  ir.Value

	calloc, free, putchar, getchar *ir.Function
}

func (c *compiler) declare() error {
	ctx := c.ctx
	i8p := ctx.Int8PointerType()
	i32 := ctx.Int32Type()
	i64 := ctx.Int64Type()

	decls := []struct {
		fn   **ir.Function
		name string
		sig  *ir.FuncType
	}{
		{&c.calloc, "calloc", ctx.FunctionType(i8p, []ir.Type{i64, i64}, false)},
		{&c.free, "free", ctx.FunctionType(ctx.VoidType(), []ir.Type{i8p}, false)},
		{&c.putchar, "putchar", ctx.FunctionType(i32, []ir.Type{i32}, false)},
		{&c.getchar, "getchar", ctx.FunctionType(i32, nil, false)},
	}
	for _, d := range decls {
		fn, err := c.m.GetOrAddFunction(d.name, d.sig)
		if err != nil {
			return fmt.Errorf("brainhack: declare %s: %w", d.name, err)
		}
		*d.fn = fn
	}
	return nil
}

// initTape stores the calloc'd tape in two stack slots: data keeps the
// start for free, ptr is the moving head
func (c *compiler) initTape(size uint64) ir.Value {
	i8p := c.ctx.Int8PointerType()
	data := c.b.Alloca(i8p, "data")
	ptr := c.b.Alloca(i8p, "ptr")
	tape := c.b.Call(c.calloc, []ir.Value{c.ctx.UInt(64, size), c.ctx.UInt(64, 1)}, "mem")
	c.b.Store(tape, data)
	c.b.Store(tape, ptr)
	c.ptr = ptr
	return data
}

func (c *compiler) items(items []*grammar.Item) {
	for _, it := range items {
		switch {
		case it.Run != nil:
			c.run(it.Run)
		case it.Output:
			c.put()
		case it.Input:
			c.get()
		case it.Loop != nil:
			c.loop(it.Loop)
		}
	}
}

func (c *compiler) run(r *grammar.Run) {
	n := int64(r.Count())
	switch r.Op() {
	case '>':
		c.move(n)
	case '<':
		c.move(-n)
	case '+':
		c.add(n)
	case '-':
		c.add(-n)
	}
}

func (c *compiler) move(diff int64) {
	head := c.b.Load(c.ptr, "head")
	next := c.b.InBoundsGEP(head, []ir.Value{c.ctx.SInt(32, diff)}, "head")
	c.b.Store(next, c.ptr)
}

// add wraps modulo 256 like the cells themselves
func (c *compiler) add(diff int64) {
	head := c.b.Load(c.ptr, "head")
	cell := c.b.Load(head, "cell")
	sum := c.b.Add(cell, c.ctx.SInt(8, int64(int8(diff))), "cell")
	c.b.Store(sum, head)
}

func (c *compiler) put() {
	cell := c.b.Load(c.b.Load(c.ptr, "head"), "cell")
	c.b.Call(c.putchar, []ir.Value{c.b.SExt(cell, c.ctx.Int32Type(), "ch")}, "")
}

// get stores the next input byte; end of input stores 0
func (c *compiler) get() {
	ch := c.b.Call(c.getchar, nil, "ch")
	eof := c.b.ICmp(ir.IntEQ, ch, c.ctx.SInt(32, -1), "eof")
	v := c.b.Select(eof, c.ctx.UInt(32, 0), ch, "in")
	c.b.Store(c.b.Trunc(v, c.ctx.Int8Type(), "byte"), c.b.Load(c.ptr, "head"))
}

func (c *compiler) loop(l *grammar.Loop) {
	cond := c.main.AppendBlock("while_cond")
	body := c.main.AppendBlock("while_body")
	end := c.main.AppendBlock("while_end")

	c.b.Br(cond)
	c.b.PositionAtEnd(cond)
	cell := c.b.Load(c.b.Load(c.ptr, "head"), "cell")
	c.b.CondBr(c.b.ICmp(ir.IntNE, cell, c.ctx.UInt(8, 0), "nz"), body, end)

	c.b.PositionAtEnd(body)
	c.items(l.Body)
	c.b.Br(cond)

	c.b.PositionAtEnd(end)
}

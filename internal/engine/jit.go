package engine

import (
	"ssakit/internal/errors"
	"ssakit/internal/ir"
)

// step is one compiled instruction
type step func(r []val, depth int) error

// outcome is how a compiled block hands control back to the dispatcher
type outcome struct {
	next  int
	ret   bool
	value val
	tail  *fnCode
	args  []val
}

type jitBlock struct {
	steps []step
	term  func(r []val) (outcome, error)
}

// compile turns every defined function of the program into closures.
// External symbols are bound here, so a call to an unknown one fails the
// whole compilation.
func (m *machine) compile() error {
	for _, fn := range m.prog.funcs {
		if fn.decl {
			continue
		}
		fn.jit = make([]*jitBlock, len(fn.blocks))
		for i, bc := range fn.blocks {
			jb, err := m.compileBlock(bc)
			if err != nil {
				return err
			}
			fn.jit[i] = jb
		}
	}
	return nil
}

func (m *machine) compileBlock(bc *blockCode) (*jitBlock, error) {
	jb := &jitBlock{}
	for i := range bc.body {
		o := &bc.body[i]
		if o.code == ir.OpCall && o.callee.decl && o.callee.ext == nil {
			return nil, initError(errors.ErrorUnresolvedSymbol, "unresolved external symbol @%s", o.callee.name)
		}
		if o.tailRet {
			callee, slots := o.callee, o.args
			jb.term = func(r []val) (outcome, error) {
				return outcome{tail: callee, args: gather(r, slots)}, nil
			}
			return jb, nil
		}
		jb.steps = append(jb.steps, m.compileOp(o))
	}
	jb.term = compileTerm(bc.term)
	return jb, nil
}

func (m *machine) compileOp(o *op) step {
	d, a := o.dst, o.args
	switch o.code {
	case ir.OpAdd:
		mk := mask(o.bits)
		return func(r []val, _ int) error {
			r[d] = val{u: (r[a[0]].u + r[a[1]].u) & mk}
			return nil
		}
	case ir.OpSub:
		mk := mask(o.bits)
		return func(r []val, _ int) error {
			r[d] = val{u: (r[a[0]].u - r[a[1]].u) & mk}
			return nil
		}
	case ir.OpMul:
		mk := mask(o.bits)
		return func(r []val, _ int) error {
			r[d] = val{u: (r[a[0]].u * r[a[1]].u) & mk}
			return nil
		}
	case ir.OpICmp:
		pred, bits := ir.IntPredicate(o.pred), o.bits
		return func(r []val, _ int) error {
			r[d] = boolVal(icmp(pred, bits, r[a[0]].u, r[a[1]].u))
			return nil
		}
	case ir.OpStructGEP:
		off := o.off
		return func(r []val, _ int) error {
			r[d] = val{u: r[a[0]].u + off}
			return nil
		}
	case ir.OpLoad:
		sh := o.shape
		return func(r []val, _ int) error {
			v, err := m.mem.load(r[a[0]].u, sh)
			r[d] = v
			return err
		}
	case ir.OpStore:
		sh := o.shape
		return func(r []val, _ int) error {
			return m.mem.store(r[a[1]].u, sh, r[a[0]])
		}
	case ir.OpZExt, ir.OpTrunc, ir.OpSExt:
		code, from, to := o.code, o.bits, o.toBits
		return func(r []val, _ int) error {
			r[d] = val{u: cast(code, from, to, r[a[0]].u)}
			return nil
		}
	case ir.OpCall:
		return m.compileCall(o)
	}
	return func(r []val, _ int) error {
		return m.exec(o, r)
	}
}

func (m *machine) compileCall(o *op) step {
	d, slots, callee := o.dst, o.args, o.callee
	if callee.decl {
		ext, site := callee.ext, callSite{shapes: o.argShapes, ret: callee.ret}
		return func(r []val, _ int) error {
			cs := site
			cs.args = gather(r, slots)
			v, err := ext(m, &cs)
			if d >= 0 {
				r[d] = v
			}
			return err
		}
	}
	return func(r []val, depth int) error {
		v, err := m.runCompiled(callee, gather(r, slots), depth+1)
		if d >= 0 {
			r[d] = v
		}
		return err
	}
}

func compileTerm(t *op) func(r []val) (outcome, error) {
	if t == nil {
		return func([]val) (outcome, error) {
			return outcome{}, faultf("block has no terminator")
		}
	}
	switch t.code {
	case ir.OpRet:
		if len(t.args) == 0 {
			return func([]val) (outcome, error) { return outcome{ret: true}, nil }
		}
		s := t.args[0]
		return func(r []val) (outcome, error) { return outcome{ret: true, value: r[s]}, nil }
	case ir.OpUnreachable:
		return func([]val) (outcome, error) {
			return outcome{}, faultf("reached unreachable")
		}
	case ir.OpBr:
		next := t.targets[0]
		return func([]val) (outcome, error) { return outcome{next: next}, nil }
	case ir.OpCondBr:
		c, then, els := t.args[0], t.targets[0], t.targets[1]
		return func(r []val) (outcome, error) {
			if r[c].u&1 != 0 {
				return outcome{next: then}, nil
			}
			return outcome{next: els}, nil
		}
	}
	return func(r []val) (outcome, error) {
		next, err := branch(t, r)
		return outcome{next: next}, err
	}
}

// runCompiled is the dispatcher for compiled functions
func (m *machine) runCompiled(fn *fnCode, args []val, depth int) (val, error) {
	if depth > m.maxDepth {
		return val{}, &Fault{Function: fn.name, Reason: "call depth limit exceeded"}
	}
	if fn.decl {
		return m.external(fn, args, fn.params)
	}
	sp := m.mem.sp
	defer func() { m.mem.sp = sp }()

	for {
		regs := fn.frame(args)
		prev, cur := -1, 0
		var tail bool
		for !tail {
			bc, jb := fn.blocks[cur], fn.jit[cur]
			if prev >= 0 {
				if err := bc.enter(prev, regs); err != nil {
					return val{}, at(err, fn.name, bc.name)
				}
			}
			for _, s := range jb.steps {
				if err := s(regs, depth); err != nil {
					return val{}, at(err, fn.name, bc.name)
				}
			}
			out, err := jb.term(regs)
			switch {
			case err != nil:
				return val{}, at(err, fn.name, bc.name)
			case out.tail != nil:
				fn, args = out.tail, out.args
				m.mem.sp = sp
				tail = true
			case out.ret:
				return out.value, nil
			default:
				prev, cur = cur, out.next
			}
		}
	}
}

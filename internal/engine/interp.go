package engine

import (
	"ssakit/internal/ir"
)

// interpret runs fn over its lowered blocks. Stack space allocated by fn
// is released when it returns.
func (m *machine) interpret(fn *fnCode, args []val, depth int) (val, error) {
	if depth > m.maxDepth {
		return val{}, &Fault{Function: fn.name, Reason: "call depth limit exceeded"}
	}
	if fn.decl {
		return m.external(fn, args, fn.params)
	}
	sp := m.mem.sp
	defer func() { m.mem.sp = sp }()

frame:
	for {
		regs := fn.frame(args)
		prev, cur := -1, 0
		for {
			blk := fn.blocks[cur]
			if prev >= 0 {
				if err := blk.enter(prev, regs); err != nil {
					return val{}, at(err, fn.name, blk.name)
				}
			}
			for i := range blk.body {
				o := &blk.body[i]
				if o.code != ir.OpCall {
					if err := m.exec(o, regs); err != nil {
						return val{}, at(err, fn.name, blk.name)
					}
					continue
				}
				callArgs := gather(regs, o.args)
				if o.tailRet {
					// the callee takes over this activation
					fn, args = o.callee, callArgs
					m.mem.sp = sp
					continue frame
				}
				var r val
				var err error
				if o.callee.decl {
					r, err = m.external(o.callee, callArgs, o.argShapes)
				} else {
					r, err = m.interpret(o.callee, callArgs, depth+1)
				}
				if err != nil {
					return val{}, at(err, fn.name, blk.name)
				}
				if o.dst >= 0 {
					regs[o.dst] = r
				}
			}

			t := blk.term
			if t == nil {
				return val{}, &Fault{Function: fn.name, Block: blk.name, Reason: "block has no terminator"}
			}
			switch t.code {
			case ir.OpRet:
				if len(t.args) == 0 {
					return val{}, nil
				}
				return regs[t.args[0]], nil
			case ir.OpUnreachable:
				return val{}, &Fault{Function: fn.name, Block: blk.name, Reason: "reached unreachable"}
			}
			next, err := branch(t, regs)
			if err != nil {
				return val{}, at(err, fn.name, blk.name)
			}
			prev, cur = cur, next
		}
	}
}

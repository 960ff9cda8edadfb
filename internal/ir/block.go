package ir

import "ssakit/internal/intern"

// BasicBlock is an append-only instruction list owned by one function. A
// well-formed block ends in exactly one terminator.
type BasicBlock struct {
	name   intern.Handle
	parent *Function
	instrs []*Instr
}

func (b *BasicBlock) Name() string       { return b.parent.module.ctx.str(b.name) }
func (b *BasicBlock) Parent() *Function  { return b.parent }
func (b *BasicBlock) Len() int           { return len(b.instrs) }
func (b *BasicBlock) Instr(n int) *Instr { return b.instrs[n] }
func (b *BasicBlock) Instrs() []*Instr   { return append([]*Instr(nil), b.instrs...) }

// Terminator returns the last instruction if it is a terminator
func (b *BasicBlock) Terminator() *Instr {
	if len(b.instrs) == 0 {
		return nil
	}
	last := b.instrs[len(b.instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the targets of the block's terminator, without
// duplicates, in first-seen order
func (b *BasicBlock) Successors() []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return uniqueBlocks(term.targets)
}

// Predecessors returns the blocks of the same function whose terminator
// branches here
func (b *BasicBlock) Predecessors() []*BasicBlock {
	var preds []*BasicBlock
	for _, other := range b.parent.blocks {
		for _, s := range other.Successors() {
			if s == b {
				preds = append(preds, other)
				break
			}
		}
	}
	return preds
}

// Phis returns the phi instructions at the head of the block
func (b *BasicBlock) Phis() []*Instr {
	var phis []*Instr
	for _, in := range b.instrs {
		if in.op != OpPhi {
			break
		}
		phis = append(phis, in)
	}
	return phis
}

func (b *BasicBlock) append(in *Instr) {
	in.parent = b
	b.instrs = append(b.instrs, in)
}

func uniqueBlocks(bs []*BasicBlock) []*BasicBlock {
	out := make([]*BasicBlock, 0, len(bs))
	seen := make(map[*BasicBlock]bool, len(bs))
	for _, b := range bs {
		if b == nil || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

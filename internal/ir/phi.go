package ir

// Phi incrementally collects the (value, predecessor) pairs of a phi
// instruction. Whether they match the block's predecessors is only checked
// by verification, so a phi may stay incomplete while its function is being
// built.
type Phi struct {
	in *Instr
}

// Value returns the phi instruction, usable as an operand
func (p *Phi) Value() *Instr { return p.in }

// AddIncoming appends one pair
func (p *Phi) AddIncoming(v Value, block *BasicBlock) {
	p.in.operands = append(p.in.operands, present(v))
	p.in.targets = append(p.in.targets, block)
}

// AddIncomings appends values[i] arriving from blocks[i] for every i. The
// slices must have equal length.
func (p *Phi) AddIncomings(values []Value, blocks []*BasicBlock) {
	if len(values) != len(blocks) {
		violate("Phi.AddIncomings", "%d values but %d blocks", len(values), len(blocks))
	}
	for i := range values {
		p.AddIncoming(values[i], blocks[i])
	}
}

func (p *Phi) IncomingCount() int { return len(p.in.operands) }

// Incoming returns the i-th pair
func (p *Phi) Incoming(i int) (Value, *BasicBlock) {
	if i < 0 || i >= len(p.in.operands) {
		violate("Phi.Incoming", "index %d out of range [0, %d)", i, len(p.in.operands))
	}
	return p.in.operands[i], p.in.targets[i]
}

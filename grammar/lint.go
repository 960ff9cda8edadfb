package grammar

import (
	"ssakit/internal/errors"
)

// DeadLoops finds loops whose body can never run: a loop at the very start
// of the program, where every cell is zero, or one right after another
// loop, which only exits on a zero cell
func DeadLoops(p *Program) []*Loop {
	var dead []*Loop
	var walk func(items []*Item, zero bool)
	walk = func(items []*Item, zero bool) {
		for _, it := range items {
			if it.Loop != nil {
				if zero {
					dead = append(dead, it.Loop)
				} else {
					walk(it.Loop.Body, false)
				}
				zero = true
				continue
			}
			zero = false
		}
	}
	walk(p.Items, true)
	return dead
}

// Lint reports warnings for source that parses but is likely a mistake
func Lint(p *Program) errors.List {
	var out errors.List
	for _, l := range DeadLoops(p) {
		length := 1
		if l.End != nil && l.End.Pos.Line == l.Pos.Line {
			length = l.End.Pos.Column - l.Pos.Column + 1
		}
		out = append(out, errors.NewWarning(errors.ErrorDeadLoop, "loop body never runs, the current cell is always zero here").
			At(errors.Position{Line: l.Pos.Line, Column: l.Pos.Column}).
			WithLength(length).
			WithNote("loops like this are often used as comment blocks").
			Build())
	}
	return out
}

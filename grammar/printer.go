package grammar

import (
	"strings"
)

func indent(level int) string {
	return strings.Repeat("    ", level)
}

// String renders the program as compact source without commentary
func (p *Program) String() string {
	var b strings.Builder
	for _, it := range p.Items {
		b.WriteString(it.String())
	}
	return b.String()
}

func (it *Item) String() string {
	switch {
	case it.Run != nil:
		return it.Run.Text
	case it.Output:
		return "."
	case it.Input:
		return ","
	case it.Loop != nil:
		return it.Loop.String()
	}
	return ""
}

func (l *Loop) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for _, it := range l.Body {
		b.WriteString(it.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Format renders the program with each loop body on its own indented
// lines
func (p *Program) Format() string {
	var b strings.Builder
	writeItems(&b, p.Items, 0)
	return b.String()
}

func writeItems(b *strings.Builder, items []*Item, level int) {
	var line strings.Builder
	flush := func() {
		if line.Len() > 0 {
			b.WriteString(indent(level) + line.String() + "\n")
			line.Reset()
		}
	}
	for _, it := range items {
		if it.Loop == nil {
			line.WriteString(it.String())
			continue
		}
		flush()
		b.WriteString(indent(level) + "[\n")
		writeItems(b, it.Loop.Body, level+1)
		b.WriteString(indent(level) + "]\n")
	}
	flush()
}

// Stats counts commands and loops, and the deepest loop nesting
type Stats struct {
	Commands int
	Loops    int
	Depth    int
}

func (p *Program) Stats() Stats {
	var s Stats
	countItems(p.Items, 1, &s)
	return s
}

func countItems(items []*Item, depth int, s *Stats) {
	for _, it := range items {
		switch {
		case it.Run != nil:
			s.Commands += it.Run.Count()
		case it.Loop != nil:
			s.Commands += 2
			s.Loops++
			s.Depth = max(s.Depth, depth)
			countItems(it.Loop.Body, depth+1, s)
		default:
			s.Commands++
		}
	}
}

package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

type Program struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Items  []*Item `parser:"@@*"`
}

// Item is one command: a folded run, an I/O command or a loop
type Item struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Run    *Run  `parser:"  @@"`
	Output bool  `parser:"| @Output"`
	Input  bool  `parser:"| @Input"`
	Loop   *Loop `parser:"| @@"`
}

// Run is a maximal sequence of one of + - > <
type Run struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Text   string `parser:"@(Add | Sub | Right | Left)"`
}

type Loop struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Body   []*Item `parser:"Open @@*"`
	End    *Close  `parser:"@@"`
}

// Close is the ']' ending a loop
type Close struct {
	Pos  lexer.Position
	Text string `parser:"@Close"`
}

// Op is the command a run repeats
func (r *Run) Op() byte { return r.Text[0] }

// Count is how many times the command repeats
func (r *Run) Count() int { return len(r.Text) }

package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// BrainhackLexer folds runs of the same arithmetic or movement command into
// one token. Every byte that is not a command is commentary.
var BrainhackLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Add", Pattern: `\++`, Action: nil},
		{Name: "Sub", Pattern: `-+`, Action: nil},
		{Name: "Right", Pattern: `>+`, Action: nil},
		{Name: "Left", Pattern: `<+`, Action: nil},
		{Name: "Output", Pattern: `\.`, Action: nil},
		{Name: "Input", Pattern: `,`, Action: nil},
		{Name: "Open", Pattern: `\[`, Action: nil},
		{Name: "Close", Pattern: `\]`, Action: nil},

		// Anything else, newlines included
		{Name: "Comment", Pattern: `[^-+<>.,\[\]]+`, Action: nil},
	},
})

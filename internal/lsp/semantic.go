package lsp

import (
	"github.com/alecthomas/participle/v2/lexer"

	"ssakit/grammar"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

func collectSemanticTokens(program *grammar.Program) []SemanticToken {
	if program == nil {
		return nil
	}
	return walkItems(program.Items, nil)
}

func walkItems(items []*grammar.Item, tokens []SemanticToken) []SemanticToken {
	for _, it := range items {
		switch {
		case it.Run != nil:
			kind := "operator"
			if op := it.Run.Op(); op == '<' || op == '>' {
				kind = "variable"
			}
			tokens = append(tokens, makeToken(it.Run.Pos, it.Run.Count(), kind))
		case it.Output, it.Input:
			tokens = append(tokens, makeToken(it.Pos, 1, "function"))
		case it.Loop != nil:
			tokens = append(tokens, makeToken(it.Loop.Pos, 1, "keyword"))
			tokens = walkItems(it.Loop.Body, tokens)
			if it.Loop.End != nil {
				tokens = append(tokens, makeToken(it.Loop.End.Pos, 1, "keyword"))
			}
		}
	}
	return tokens
}

func makeToken(pos lexer.Position, length int, tokenType string) SemanticToken {
	return SemanticToken{
		Line:      uint32(pos.Line - 1),   // LSP uses 0-based line numbers
		StartChar: uint32(pos.Column - 1), // LSP uses 0-based column numbers
		Length:    uint32(length),
		TokenType: indexOf(tokenType, SemanticTokenTypes),
	}
}

// encodeTokens applies the delta-line, delta-start compression of the wire
// format
func encodeTokens(tokens []SemanticToken) []uint32 {
	var data []uint32
	var prevLine, prevStart uint32
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		deltaStart := token.StartChar
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		}
		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))
		prevLine = token.Line
		prevStart = token.StartChar
	}
	return data
}

// indexOf returns the index of a string in a slice, or 0 if not found
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0
}

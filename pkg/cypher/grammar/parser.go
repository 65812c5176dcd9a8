package grammar

import (
	"errors"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Parser is the Cypher parser instance. It is safe for concurrent use.
var Parser = participle.MustBuild[Query](
	participle.Lexer(CypherLexer),
	participle.Elide("Whitespace", "BlockComment", "LineComment"),
	participle.UseLookahead(4),
	participle.CaseInsensitive("Ident"),
)

// Parse parses a query string into a grammar tree.
func Parse(query string) (*Query, error) {
	return Parser.ParseString("", query)
}

// ErrorPosition extracts the source position from a parse error, if any.
func ErrorPosition(err error) (lexer.Position, bool) {
	var perr participle.Error
	if errors.As(err, &perr) {
		return perr.Position(), true
	}
	return lexer.Position{}, false
}

// ErrorMessage returns the error text without the position prefix.
func ErrorMessage(err error) string {
	var perr participle.Error
	if errors.As(err, &perr) {
		return perr.Message()
	}
	return err.Error()
}

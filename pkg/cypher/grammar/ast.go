package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Query is the root production:
//
//	MATCH pattern (, pattern)* [WHERE expr] RETURN item (, item)*
//	[ORDER BY sort (, sort)*] [SKIP int] [LIMIT int] [;]
type Query struct {
	Pos       lexer.Position
	Match     *Match      `@@`
	Where     *Expression `( "WHERE" @@ )?`
	Return    *Return     `@@`
	Order     *Order      `@@?`
	Skip      *IntArg     `( "SKIP" @@ )?`
	Limit     *IntArg     `( "LIMIT" @@ )?`
	Semicolon bool        `@Semicolon?`
}

// IntArg is a non-negative integer clause argument. The digits are kept as
// text so conversion errors surface with a position.
type IntArg struct {
	Pos   lexer.Position
	Value string `@Int`
}

// Match is MATCH followed by comma-separated patterns.
type Match struct {
	Pos      lexer.Position
	Patterns []*Pattern `"MATCH" @@ ( Comma @@ )*`
}

// Pattern is a head node followed by relationship/node steps.
type Pattern struct {
	Pos   lexer.Position
	Head  *NodePattern `@@`
	Chain []*Chain     `@@*`
}

// Chain is one relationship step plus the node it reaches.
type Chain struct {
	Pos  lexer.Position
	Rel  *RelPattern  `@@`
	Node *NodePattern `@@`
}

// NodePattern is (var:Label1:Label2 {k: v}).
type NodePattern struct {
	Pos        lexer.Position
	Variable   string      `LParen @Ident?`
	Labels     []string    `( Colon @Ident )*`
	Properties *MapLiteral `@@? RParen`
}

// RelPattern is -[detail]-> or -->. Only the forward direction exists.
type RelPattern struct {
	Pos    lexer.Position
	Detail *RelDetail `Minus ( LBracket @@ RBracket )? Arrow`
}

// RelDetail is the bracketed part of a relationship pattern.
type RelDetail struct {
	Pos        lexer.Position
	Variable   string      `@Ident?`
	Types      []string    `( Colon @Ident ( Pipe Colon? @Ident )* )?`
	Properties *MapLiteral `@@?`
}

// MapLiteral is {k: v, ...} inside a pattern.
type MapLiteral struct {
	Pos   lexer.Position
	Pairs []*MapPair `LBrace ( @@ ( Comma @@ )* )? RBrace`
}

// MapPair is one key: literal entry.
type MapPair struct {
	Pos   lexer.Position
	Key   string       `@Ident Colon`
	Value *SignedValue `@@`
}

// SignedValue is a literal with an optional leading minus.
type SignedValue struct {
	Pos     lexer.Position
	Neg     bool     `@Minus?`
	Literal *Literal `@@`
}

// Return is RETURN item (, item)*.
type Return struct {
	Pos   lexer.Position
	Items []*ReturnItem `"RETURN" @@ ( Comma @@ )*`
}

// ReturnItem is an expression with an optional alias.
type ReturnItem struct {
	Pos   lexer.Position
	Expr  *Expression `@@`
	Alias string      `( "AS" @Ident )?`
}

// Order is ORDER BY sort (, sort)*.
type Order struct {
	Pos   lexer.Position
	Items []*SortItem `"ORDER" "BY" @@ ( Comma @@ )*`
}

// SortItem is an expression with an optional direction.
type SortItem struct {
	Pos       lexer.Position
	Expr      *Expression `@@`
	Direction string      `@( "ASCENDING" | "ASC" | "DESCENDING" | "DESC" )?`
}

// ----------------------------------------------------------------------------
// Expressions, lowest precedence first.
// ----------------------------------------------------------------------------

// Expression is the OR level.
type Expression struct {
	Pos   lexer.Position
	Left  *AndExpr   `@@`
	Right []*AndExpr `( "OR" @@ )*`
}

// AndExpr is the AND level.
type AndExpr struct {
	Pos   lexer.Position
	Left  *NotExpr   `@@`
	Right []*NotExpr `( "AND" @@ )*`
}

// NotExpr applies zero or more NOT prefixes.
type NotExpr struct {
	Pos  lexer.Position
	Nots []string        `@"NOT"*`
	Expr *ComparisonExpr `@@`
}

// ComparisonExpr allows at most one comparison; a < b < c is rejected.
type ComparisonExpr struct {
	Pos   lexer.Position
	Left  *AddSubExpr     `@@`
	Right *ComparisonTerm `@@?`
}

// ComparisonTerm is the operator and right operand of a comparison.
type ComparisonTerm struct {
	Pos  lexer.Position
	Op   string      `@( NotEqual | LessEqual | GreaterEqual | DoubleEq | Eq | Less | Greater )`
	Expr *AddSubExpr `@@`
}

// AddSubExpr handles + and -.
type AddSubExpr struct {
	Pos   lexer.Position
	Left  *MultDivExpr  `@@`
	Right []*AddSubTerm `@@*`
}

// AddSubTerm is a + or - operand.
type AddSubTerm struct {
	Pos  lexer.Position
	Op   string       `@( Plus | Minus )`
	Expr *MultDivExpr `@@`
}

// MultDivExpr handles *, / and %.
type MultDivExpr struct {
	Pos   lexer.Position
	Left  *UnaryExpr     `@@`
	Right []*MultDivTerm `@@*`
}

// MultDivTerm is a *, / or % operand.
type MultDivTerm struct {
	Pos  lexer.Position
	Op   string     `@( Star | Slash | Percent )`
	Expr *UnaryExpr `@@`
}

// UnaryExpr applies zero or more negations.
type UnaryExpr struct {
	Pos   lexer.Position
	Minus []string `@Minus*`
	Atom  *Atom    `@@`
}

// Atom is the highest-precedence expression form.
type Atom struct {
	Pos           lexer.Position
	CountAll      bool        `  @( "COUNT" LParen Star RParen )`
	Parenthesized *Expression `| LParen @@ RParen`
	Literal       *Literal    `| @@`
	Variable      *Variable   `| @@`
}

// Variable is a name with an optional single property lookup.
type Variable struct {
	Pos      lexer.Position
	Name     string  `@Ident`
	Property *string `( Dot @Ident )?`
}

// Literal is a constant. Numbers keep their source text.
type Literal struct {
	Pos    lexer.Position
	Null   bool    `  @"NULL"`
	True   bool    `| @"TRUE"`
	False  bool    `| @"FALSE"`
	Number *string `| @( Float | Int )`
	String *string `| @String`
}

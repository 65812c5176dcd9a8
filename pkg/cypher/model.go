package cypher

// Query is a parsed MATCH ... RETURN query. A Query is never modified after
// Parse returns it and may be shared between goroutines.
type Query struct {
	Match   Match
	Where   Expr // nil when there is no WHERE clause
	Return  []ReturnItem
	OrderBy []OrderItem
	Skip    *int
	Limit   *int
}

// Match holds the comma-separated patterns of a MATCH clause.
type Match struct {
	Patterns []Pattern
}

// Pattern is a head node followed by zero or more relationship steps.
type Pattern struct {
	Head  NodePattern
	Chain []ChainStep
}

// ChainStep is one forward relationship and the node it leads to.
type ChainStep struct {
	Rel  RelPattern
	Node NodePattern
}

// NodePattern constrains a node. Var is empty for anonymous nodes.
type NodePattern struct {
	Var    string
	Labels []string
	Props  map[string]any
}

// RelPattern constrains a relationship. An empty Types accepts any type.
type RelPattern struct {
	Var   string
	Types []string
	Props map[string]any
}

// ReturnItem is one projected expression.
type ReturnItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// Expr is an expression tree node. The set of implementations is closed.
type Expr interface {
	expr()
}

// Literal is a constant: nil, bool, float64 or string.
type Literal struct {
	Value any
}

// VarRef names a bound variable.
type VarRef struct {
	Name string
}

// PropertyAccess is var.prop.
type PropertyAccess struct {
	Var  string
	Prop string
}

// CountAll is count(*).
type CountAll struct{}

// BinaryOp applies Op to two operands.
type BinaryOp struct {
	Op    Op
	Left  Expr
	Right Expr
}

// UnaryOp applies OpNot or OpNeg to one operand.
type UnaryOp struct {
	Op      Op
	Operand Expr
}

func (Literal) expr()        {}
func (VarRef) expr()         {}
func (PropertyAccess) expr() {}
func (CountAll) expr()       {}
func (BinaryOp) expr()       {}
func (UnaryOp) expr()        {}

// Op is an operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpNot
	OpNeg
)

var opNames = [...]string{
	OpEq:  "=",
	OpNe:  "<>",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",
	OpAnd: "AND",
	OpOr:  "OR",
	OpNot: "NOT",
	OpNeg: "-",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?"
}

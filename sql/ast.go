package sql

import (
	"strconv"
	"strings"
)

// Expr is a node of an expression tree.
type Expr interface {
	String() string
	expr()
}

type IdentifierExpr struct {
	Name string
}

type StringLiteral struct {
	Value string
}

type IntegerLiteral struct {
	Value int64
}

type FloatLiteral struct {
	Value float64
}

// Star is the bare `*` projection or the `*` argument of COUNT(*).
type Star struct{}

// Call is an aggregate function applied to its arguments.
type Call struct {
	Name string // COUNT, SUM, AVG, MIN, MAX
	Args []Expr
}

// Binary is a comparison. Chains fold to the left: a = b < c is (a = b) < c.
type Binary struct {
	Left  Expr
	Op    string
	Right Expr
}

// Column is a table-qualified column reference such as a.id.
type Column struct {
	Table string
	Name  string
}

func (IdentifierExpr) expr() {}
func (StringLiteral) expr()  {}
func (IntegerLiteral) expr() {}
func (FloatLiteral) expr()   {}
func (Star) expr()           {}
func (Call) expr()           {}
func (Binary) expr()         {}
func (Column) expr()         {}

func (e IdentifierExpr) String() string { return e.Name }

func (e StringLiteral) String() string {
	return "'" + e.Value + "'"
}

func (e IntegerLiteral) String() string { return strconv.FormatInt(e.Value, 10) }

func (e FloatLiteral) String() string {
	s := strconv.FormatFloat(e.Value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (Star) String() string { return "*" }

func (e Call) String() string {
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = arg.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

func (e Binary) String() string {
	return e.Left.String() + " " + e.Op + " " + e.Right.String()
}

func (e Column) String() string {
	if e.Table == "" {
		return e.Name
	}
	return e.Table + "." + e.Name
}

type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

func (kind JoinKind) String() string {
	switch kind {
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	default:
		return "INNER"
	}
}

type JoinClause struct {
	Kind      JoinKind
	Table     string
	Condition Expr
}

func (join JoinClause) String() string {
	return join.Kind.String() + " JOIN " + join.Table + " ON " + join.Condition.String()
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (direction Direction) String() string {
	if direction == Descending {
		return "DESC"
	}
	return "ASC"
}

type OrderBy struct {
	Expr      Expr
	Direction Direction
}

func (orderBy OrderBy) String() string {
	return orderBy.Expr.String() + " " + orderBy.Direction.String()
}

// SelectStatement is the root of a parsed query.
type SelectStatement struct {
	Columns []Expr
	Table   string
	Joins   []JoinClause
	Where   Expr // nil when absent
	OrderBy []OrderBy
	Limit   *int64 // nil when absent
}

// String renders the statement back to SQL. Parsing the result yields an
// equal tree.
func (s *SelectStatement) String() string {
	var b strings.Builder

	b.WriteString("SELECT ")
	for i, column := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column.String())
	}

	b.WriteString(" FROM ")
	b.WriteString(s.Table)

	for _, join := range s.Joins {
		b.WriteString(" ")
		b.WriteString(join.String())
	}

	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.String())
	}

	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, orderBy := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(orderBy.String())
		}
	}

	if s.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatInt(*s.Limit, 10))
	}

	return b.String()
}

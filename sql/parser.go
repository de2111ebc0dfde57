package sql

import (
	"fmt"
)

// ParseError reports a token the grammar did not allow at that point.
type ParseError struct {
	Expected string
	Found    Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expected %s, found %s", e.Expected, e.Found)
}

// Parser is a recursive-descent parser holding two tokens of lookahead.
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
	err     error
}

func NewParser(sql string) *Parser {
	parser := &Parser{lexer: NewLexer(sql)}
	if err := parser.next(); err == nil {
		parser.err = parser.next()
	} else {
		parser.err = err
	}
	return parser
}

// ParseSelect parses a single SELECT statement.
func ParseSelect(sql string) (*SelectStatement, error) {
	return NewParser(sql).ParseSelect()
}

func (parser *Parser) next() error {
	parser.current = parser.peek
	token, err := parser.lexer.NextToken()
	if err != nil {
		return fmt.Errorf("failed to tokenize: %w", err)
	}
	parser.peek = token
	return nil
}

func (parser *Parser) expect(tokenType TokenType, expected string) error {
	if parser.current.Type != tokenType {
		return &ParseError{Expected: expected, Found: parser.current}
	}
	return parser.next()
}

func (parser *Parser) expectIdentifier(expected string) (string, error) {
	if parser.current.Type != Identifier {
		return "", &ParseError{Expected: expected, Found: parser.current}
	}
	name := parser.current.Value
	return name, parser.next()
}

// ParseSelect parses the statement from the current token. Tokens after the
// last recognised clause are left unread.
func (parser *Parser) ParseSelect() (*SelectStatement, error) {
	if parser.err != nil {
		return nil, parser.err
	}

	if err := parser.expect(Select, "SELECT"); err != nil {
		return nil, err
	}

	columns, err := parser.parseColumns()
	if err != nil {
		return nil, err
	}

	if err := parser.expect(From, "FROM"); err != nil {
		return nil, err
	}

	table, err := parser.expectIdentifier("table name")
	if err != nil {
		return nil, err
	}

	statement := &SelectStatement{Columns: columns, Table: table}

	for parser.isJoinStart() {
		join, err := parser.parseJoin()
		if err != nil {
			return nil, err
		}
		statement.Joins = append(statement.Joins, join)
	}

	if parser.current.Type == Where {
		if err := parser.next(); err != nil {
			return nil, err
		}
		where, err := parser.parseExpr()
		if err != nil {
			return nil, err
		}
		statement.Where = where
	}

	if parser.current.Type == Order {
		if err := parser.next(); err != nil {
			return nil, err
		}
		if err := parser.expect(By, "BY after ORDER"); err != nil {
			return nil, err
		}
		orderBy, err := parser.parseOrderBy()
		if err != nil {
			return nil, err
		}
		statement.OrderBy = orderBy
	}

	if parser.current.Type == Limit {
		if err := parser.next(); err != nil {
			return nil, err
		}
		if parser.current.Type != Int {
			return nil, &ParseError{Expected: "integer after LIMIT", Found: parser.current}
		}
		limit := parser.current.Int
		statement.Limit = &limit
		if err := parser.next(); err != nil {
			return nil, err
		}
	}

	return statement, nil
}

func (parser *Parser) isJoinStart() bool {
	switch parser.current.Type {
	case Join, Inner, Left, Right:
		return true
	}
	return false
}

func (parser *Parser) parseColumns() ([]Expr, error) {
	var columns []Expr

	for {
		var column Expr
		var err error

		switch {
		case parser.current.Type == Wildcard:
			column = Star{}
			err = parser.next()
		case parser.current.IsAggregate():
			column, err = parser.parseCall()
		default:
			column, err = parser.parseExpr()
		}
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)

		if parser.current.Type != Comma {
			return columns, nil
		}
		if err := parser.next(); err != nil {
			return nil, err
		}
	}
}

func (parser *Parser) parseCall() (Expr, error) {
	name := toUpper(parser.current.Value)
	if err := parser.next(); err != nil {
		return nil, err
	}

	if err := parser.expect(ParenOpen, "'(' after "+name); err != nil {
		return nil, err
	}

	var arg Expr
	if parser.current.Type == Wildcard {
		arg = Star{}
		if err := parser.next(); err != nil {
			return nil, err
		}
	} else {
		var err error
		arg, err = parser.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	if err := parser.expect(ParenClose, "')' after "+name+" argument"); err != nil {
		return nil, err
	}

	return Call{Name: name, Args: []Expr{arg}}, nil
}

// parseExpr folds a chain of comparisons to the left. AND and OR are not
// part of the expression grammar.
func (parser *Parser) parseExpr() (Expr, error) {
	left, err := parser.parsePrimary()
	if err != nil {
		return nil, err
	}

	for parser.current.IsComparison() {
		op := parser.current.Value
		if err := parser.next(); err != nil {
			return nil, err
		}
		right, err := parser.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = Binary{Left: left, Op: op, Right: right}
	}

	return left, nil
}

func (parser *Parser) parsePrimary() (Expr, error) {
	token := parser.current

	switch token.Type {
	case Identifier:
		if err := parser.next(); err != nil {
			return nil, err
		}
		if parser.current.Type != Dot {
			return IdentifierExpr{Name: token.Value}, nil
		}
		if err := parser.next(); err != nil {
			return nil, err
		}
		name, err := parser.expectIdentifier("column name after '.'")
		if err != nil {
			return nil, err
		}
		return Column{Table: token.Value, Name: name}, nil
	case String:
		return StringLiteral{Value: token.Value}, parser.next()
	case Int:
		return IntegerLiteral{Value: token.Int}, parser.next()
	case Float:
		return FloatLiteral{Value: token.Float}, parser.next()
	default:
		return nil, &ParseError{Expected: "expression", Found: token}
	}
}

func (parser *Parser) parseJoin() (JoinClause, error) {
	kind := InnerJoin

	switch parser.current.Type {
	case Left:
		kind = LeftJoin
	case Right:
		kind = RightJoin
	}
	if parser.current.Type != Join {
		if err := parser.next(); err != nil {
			return JoinClause{}, err
		}
	}

	if err := parser.expect(Join, "JOIN"); err != nil {
		return JoinClause{}, err
	}

	table, err := parser.expectIdentifier("table name after JOIN")
	if err != nil {
		return JoinClause{}, err
	}

	if err := parser.expect(On, "ON"); err != nil {
		return JoinClause{}, err
	}

	condition, err := parser.parseExpr()
	if err != nil {
		return JoinClause{}, err
	}

	return JoinClause{Kind: kind, Table: table, Condition: condition}, nil
}

func (parser *Parser) parseOrderBy() ([]OrderBy, error) {
	var items []OrderBy

	for {
		expr, err := parser.parsePrimary()
		if err != nil {
			return nil, err
		}

		direction := Ascending
		switch parser.current.Type {
		case Asc:
			err = parser.next()
		case Desc:
			direction = Descending
			err = parser.next()
		}
		if err != nil {
			return nil, err
		}
		items = append(items, OrderBy{Expr: expr, Direction: direction})

		if parser.current.Type != Comma {
			return items, nil
		}
		if err := parser.next(); err != nil {
			return nil, err
		}
	}
}

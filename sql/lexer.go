package sql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type Token struct {
	Type  TokenType
	Value string
	Int   int64   // set for Int tokens
	Float float64 // set for Float tokens
}

type TokenType int

const (
	EOF TokenType = iota
	Identifier
	String
	Int
	Float
	Wildcard
	Comma
	Semicolon
	Dot
	ParenOpen
	ParenClose
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessThanOrEqual
	GreaterThanOrEqual
	Select
	From
	Where
	Order
	By
	Limit
	Asc
	Desc
	Join
	Inner
	Left
	Right
	On
	And
	Or
	Count
	Sum
	Avg
	Min
	Max
)

var tokenNames = map[TokenType]string{
	EOF:                "EOF",
	Identifier:         "Identifier",
	String:             "String",
	Int:                "Int",
	Float:              "Float",
	Wildcard:           "Wildcard",
	Comma:              "Comma",
	Semicolon:          "Semicolon",
	Dot:                "Dot",
	ParenOpen:          "ParenOpen",
	ParenClose:         "ParenClose",
	Equals:             "Equals",
	NotEquals:          "NotEquals",
	LessThan:           "LessThan",
	GreaterThan:        "GreaterThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	Select:             "Select",
	From:               "From",
	Where:              "Where",
	Order:              "Order",
	By:                 "By",
	Limit:              "Limit",
	Asc:                "Asc",
	Desc:               "Desc",
	Join:               "Join",
	Inner:              "Inner",
	Left:               "Left",
	Right:              "Right",
	On:                 "On",
	And:                "And",
	Or:                 "Or",
	Count:              "Count",
	Sum:                "Sum",
	Avg:                "Avg",
	Min:                "Min",
	Max:                "Max",
}

func (tokenType TokenType) String() string {
	if name, ok := tokenNames[tokenType]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tokenType))
}

func (token Token) String() string {
	switch token.Type {
	case Identifier:
		return "Identifier(" + token.Value + ")"
	case String:
		return "String(" + token.Value + ")"
	case Int:
		return "Int(" + token.Value + ")"
	case Float:
		return "Float(" + token.Value + ")"
	default:
		return token.Type.String()
	}
}

// IsAggregate reports whether the token names an aggregate function.
func (token Token) IsAggregate() bool {
	switch token.Type {
	case Count, Sum, Avg, Min, Max:
		return true
	}
	return false
}

// IsComparison reports whether the token is a comparison operator.
func (token Token) IsComparison() bool {
	switch token.Type {
	case Equals, NotEquals, LessThan, GreaterThan, LessThanOrEqual, GreaterThanOrEqual:
		return true
	}
	return false
}

// NumberError is returned when a numeric literal does not convert.
type NumberError struct {
	Literal string
	Err     error
}

func (e *NumberError) Error() string {
	return fmt.Sprintf("invalid numeric literal %q: %v", e.Literal, e.Err)
}

func (e *NumberError) Unwrap() error {
	return e.Err
}

// Lexer produces tokens one at a time with a single rune of lookahead.
type Lexer struct {
	input        []rune
	position     int
	readPosition int
	ch           rune
	eof          bool
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{input: []rune(sql)}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.input) {
		lexer.ch = 0
		lexer.eof = true
	} else {
		lexer.ch = lexer.input[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() (rune, bool) {
	if lexer.readPosition >= len(lexer.input) {
		return 0, false
	}
	return lexer.input[lexer.readPosition], true
}

// NextToken returns the next token, or an EOF token at the end of input.
// A rune that starts no token also ends tokenization with EOF. The only
// error is a numeric literal that fails to convert.
func (lexer *Lexer) NextToken() (Token, error) {
	lexer.skipWhitespace()

	if lexer.eof {
		return Token{Type: EOF}, nil
	}

	var token Token

	switch ch := lexer.ch; {
	case ch == '*':
		token = Token{Type: Wildcard, Value: "*"}
	case ch == ',':
		token = Token{Type: Comma, Value: ","}
	case ch == ';':
		token = Token{Type: Semicolon, Value: ";"}
	case ch == '(':
		token = Token{Type: ParenOpen, Value: "("}
	case ch == ')':
		token = Token{Type: ParenClose, Value: ")"}
	case ch == '.':
		token = Token{Type: Dot, Value: "."}
	case ch == '=':
		token = Token{Type: Equals, Value: "="}
	case ch == '!' && lexer.nextIs('='):
		lexer.readChar()
		token = Token{Type: NotEquals, Value: "!="}
	case ch == '<' && lexer.nextIs('='):
		lexer.readChar()
		token = Token{Type: LessThanOrEqual, Value: "<="}
	case ch == '>' && lexer.nextIs('='):
		lexer.readChar()
		token = Token{Type: GreaterThanOrEqual, Value: ">="}
	case ch == '<':
		token = Token{Type: LessThan, Value: "<"}
	case ch == '>':
		token = Token{Type: GreaterThan, Value: ">"}
	case ch == '\'':
		token = Token{Type: String, Value: lexer.readString()}
	case isDigit(ch):
		return lexer.readNumber()
	case isIdentifierStart(ch):
		literal := lexer.readIdentifier()
		return Token{Type: lookupIdentifier(literal), Value: literal}, nil
	default:
		// silent stop
		lexer.eof = true
		return Token{Type: EOF}, nil
	}

	lexer.readChar()
	return token, nil
}

func (lexer *Lexer) nextIs(ch rune) bool {
	next, ok := lexer.peekChar()
	return ok && next == ch
}

func (lexer *Lexer) skipWhitespace() {
	for !lexer.eof && unicode.IsSpace(lexer.ch) {
		lexer.readChar()
	}
}

func (lexer *Lexer) readIdentifier() string {
	position := lexer.position
	for !lexer.eof && isIdentifierPart(lexer.ch) {
		lexer.readChar()
	}
	return string(lexer.input[position:lexer.position])
}

// readString consumes up to the closing quote, or to the end of input when
// the literal is unterminated. The caller consumes the closing quote.
func (lexer *Lexer) readString() string {
	lexer.readChar() // skip opening quote
	position := lexer.position
	for !lexer.eof && lexer.ch != '\'' {
		lexer.readChar()
	}
	return string(lexer.input[position:lexer.position])
}

func (lexer *Lexer) readNumber() (Token, error) {
	position := lexer.position
	for !lexer.eof && (isDigit(lexer.ch) || lexer.ch == '.') {
		lexer.readChar()
	}
	literal := string(lexer.input[position:lexer.position])

	if strings.Contains(literal, ".") {
		value, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return Token{}, &NumberError{Literal: literal, Err: err}
		}
		return Token{Type: Float, Value: literal, Float: value}, nil
	}

	value, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return Token{}, &NumberError{Literal: literal, Err: err}
	}
	return Token{Type: Int, Value: literal, Int: value}, nil
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentifierStart(ch rune) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isIdentifierPart(ch rune) bool {
	return isIdentifierStart(ch) || isDigit(ch)
}

func lookupIdentifier(id string) TokenType {
	switch toUpper(id) {
	case "SELECT":
		return Select
	case "FROM":
		return From
	case "WHERE":
		return Where
	case "ORDER":
		return Order
	case "BY":
		return By
	case "LIMIT":
		return Limit
	case "ASC":
		return Asc
	case "DESC":
		return Desc
	case "JOIN":
		return Join
	case "INNER":
		return Inner
	case "LEFT":
		return Left
	case "RIGHT":
		return Right
	case "ON":
		return On
	case "AND":
		return And
	case "OR":
		return Or
	case "COUNT":
		return Count
	case "SUM":
		return Sum
	case "AVG":
		return Avg
	case "MIN":
		return Min
	case "MAX":
		return Max
	default:
		return Identifier
	}
}

// toUpper converts a string to uppercase without allocating for ASCII strings
func toUpper(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			b := make([]byte, len(s))
			for j := 0; j < len(s); j++ {
				if s[j] >= 'a' && s[j] <= 'z' {
					b[j] = s[j] - 32
				} else {
					b[j] = s[j]
				}
			}
			return string(b)
		}
	}
	return s
}

// Tokenize runs the lexer to the end of input and returns every token before
// EOF.
func Tokenize(sql string) ([]Token, error) {
	lexer := NewLexer(sql)

	var tokens []Token
	for {
		token, err := lexer.NextToken()
		if err != nil {
			return tokens, err
		}
		if token.Type == EOF {
			return tokens, nil
		}
		tokens = append(tokens, token)
	}
}

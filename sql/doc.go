// Package sql provides SQL lexing and parsing for PagerDB.
//
// The package includes a streaming lexer that tokenizes SQL strings and a
// recursive-descent parser that produces an abstract syntax tree for SELECT
// statements.
//
// # Lexer Usage
//
//	lexer := sql.NewLexer("SELECT * FROM apples")
//	for {
//	    token, err := lexer.NextToken()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if token.Type == sql.EOF {
//	        break
//	    }
//	    fmt.Printf("Token: %s = %s\n", token.Type, token.Value)
//	}
//
// A rune that cannot start a token ends the stream as if the input ended
// there. Unterminated string literals run to the end of input.
//
// # Parser Usage
//
//	statement, err := sql.ParseSelect("SELECT name FROM apples WHERE color = 'Yellow'")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(statement.Table, statement.Where)
//
// # Grammar
//
//	Select     := SELECT ColumnList FROM Identifier Join* (WHERE Expr)? (ORDER BY OrderList)? (LIMIT Int)?
//	ColumnList := Column (',' Column)*
//	Column     := '*' | AggFn '(' ('*' | Expr) ')' | Expr
//	Expr       := Primary (CmpOp Primary)*
//	Primary    := Identifier ('.' Identifier)? | String | Int | Float
//	Join       := (INNER|LEFT|RIGHT)? JOIN Identifier ON Expr
//	OrderList  := Primary (ASC|DESC)? (',' Primary (ASC|DESC)?)*
//
// Comparisons share one precedence level and fold to the left. AND and OR are
// tokenized but not accepted by the expression grammar, so parsing stops
// before them.
package sql

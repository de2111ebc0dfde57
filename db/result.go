package db

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/ps"
	"github.com/nickyhof/PagerDB/sql"
)

type ResultType int

const (
	QueryResultType ResultType = iota
	InfoResultType
	TablesResultType
	PlanResultType
	SnapshotResultType
	MessageResultType
)

func (resultType ResultType) String() string {
	switch resultType {
	case QueryResultType:
		return "query"
	case InfoResultType:
		return "info"
	case TablesResultType:
		return "tables"
	case PlanResultType:
		return "plan"
	case SnapshotResultType:
		return "snapshot"
	case MessageResultType:
		return "message"
	default:
		return "unknown"
	}
}

type Result interface {
	Type() ResultType
	Display(w io.Writer)
}

// QueryResult is a small table produced by listing commands such as
// .snapshots and .history.
type QueryResult struct {
	Columns          []string
	Data             [][]string
	ExecutionTimeSec float64
}

// InfoResult answers .dbinfo and .open.
type InfoResult struct {
	Info core.DatabaseInfo
}

// TablesResult answers .tables.
type TablesResult struct {
	Tables []string
}

// PlanResult holds a parsed SELECT. Statements are not executed; the plan
// only reports whether the source table exists in the open database.
type PlanResult struct {
	Statement *sql.SelectStatement
	Checked   bool // a database was open when planning
	Known     bool // the table exists in that database
}

// SnapshotResult reports a snapshot save or delete.
type SnapshotResult struct {
	Name        string
	Action      string // "saved" or "deleted"
	Transaction ps.Transaction
}

type MessageResult struct {
	Message string
}

func (result QueryResult) Type() ResultType    { return QueryResultType }
func (result InfoResult) Type() ResultType     { return InfoResultType }
func (result TablesResult) Type() ResultType   { return TablesResultType }
func (result PlanResult) Type() ResultType     { return PlanResultType }
func (result SnapshotResult) Type() ResultType { return SnapshotResultType }
func (result MessageResult) Type() ResultType  { return MessageResultType }

// formatDuration formats a duration in human-readable form
func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	}

	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

func (result QueryResult) ExecutionTime() string {
	return formatDuration(result.ExecutionTimeSec)
}

func (result QueryResult) Display(w io.Writer) {
	if len(result.Data) > 0 {
		data := NewTable(w)
		data.Header(result.Columns)
		data.Bulk(result.Data)
		data.Render()
	}

	fmt.Fprintf(w, "%d rows (%s)\n", len(result.Data), result.ExecutionTime())
}

// Display prints the page size and the schema cell count, which counts
// every schema object and not only tables.
func (result InfoResult) Display(w io.Writer) {
	fmt.Fprintf(w, "database page size: %d\n", result.Info.PageSize)
	fmt.Fprintf(w, "number of tables: %d\n", result.Info.CellCount)
}

// Display prints the names on one line. No tables prints nothing.
func (result TablesResult) Display(w io.Writer) {
	if len(result.Tables) == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(result.Tables, " "))
}

func (result PlanResult) Display(w io.Writer) {
	statement := result.Statement
	fmt.Fprintln(w, statement.String())

	plan := NewTable(w)
	plan.Header([]string{"clause", "value"})

	columns := make([]string, len(statement.Columns))
	for i, column := range statement.Columns {
		columns[i] = column.String()
	}
	plan.Row("columns", strings.Join(columns, ", "))
	plan.Row("from", statement.Table)

	for _, join := range statement.Joins {
		plan.Row(join.Kind.String()+" join", join.Table+" on "+join.Condition.String())
	}
	if statement.Where != nil {
		plan.Row("where", statement.Where.String())
	}
	for _, orderBy := range statement.OrderBy {
		plan.Row("order by", orderBy.String())
	}
	if statement.Limit != nil {
		plan.Row("limit", strconv.FormatInt(*statement.Limit, 10))
	}
	plan.Render()

	if result.Checked && !result.Known {
		fmt.Fprintf(w, "table %s does not exist in the open database\n", statement.Table)
	}
}

func (result SnapshotResult) Display(w io.Writer) {
	id := result.Transaction.Id
	if len(id) > 12 {
		id = id[:12]
	}
	fmt.Fprintf(w, "Snapshot %s %s (%s)\n", result.Name, result.Action, id)
}

func (result MessageResult) Display(w io.Writer) {
	fmt.Fprintln(w, result.Message)
}

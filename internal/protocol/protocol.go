// Package protocol defines the JSON messages shared by the server and the
// C bindings.
package protocol

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nickyhof/PagerDB/db"
)

// Request represents a command from the client. Plain text lines are
// accepted as well and treated as the query.
type Request struct {
	Query string `json:"query"`
}

// Response represents the server's response to a query.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // result type, or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular results such as .snapshots and .history.
type QueryResponse struct {
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
	TimeMs  float64    `json:"time_ms"`
}

// TablesResponse lists the tables of the open database.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// PlanResponse describes a parsed SELECT statement.
type PlanResponse struct {
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Table   string   `json:"table"`
	Joins   []string `json:"joins,omitempty"`
	Where   string   `json:"where,omitempty"`
	OrderBy []string `json:"order_by,omitempty"`
	Limit   *int64   `json:"limit,omitempty"`
	Checked bool     `json:"checked"`
	Known   bool     `json:"known"`
}

// SnapshotResponse reports a snapshot save or delete.
type SnapshotResponse struct {
	Name        string    `json:"name"`
	Action      string    `json:"action"`
	Transaction string    `json:"transaction"`
	When        time.Time `json:"when"`
}

// MessageResponse carries a one-line status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse reports a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"` // seconds
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

// ParseLine returns the query carried by one input line, which is either a
// JSON Request or the raw query text.
func ParseLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return line, nil
	}

	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(req.Query), nil
}

func ErrorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
	}
}

// FromResult converts an engine result into its wire form.
func FromResult(result db.Result) Response {
	var payload any

	switch r := result.(type) {
	case db.QueryResult:
		payload = QueryResponse{
			Columns: r.Columns,
			Data:    r.Data,
			TimeMs:  r.ExecutionTimeSec * 1000,
		}

	case db.InfoResult:
		payload = r.Info

	case db.TablesResult:
		tables := r.Tables
		if tables == nil {
			tables = []string{}
		}
		payload = TablesResponse{Tables: tables}

	case db.PlanResult:
		payload = planResponse(r)

	case db.SnapshotResult:
		payload = SnapshotResponse{
			Name:        r.Name,
			Action:      r.Action,
			Transaction: r.Transaction.Id,
			When:        r.Transaction.When,
		}

	case db.MessageResult:
		payload = MessageResponse{Message: r.Message}

	default:
		return Response{
			Success: true,
			Type:    "unknown",
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ErrorResponse(err)
	}
	return Response{
		Success: true,
		Type:    result.Type().String(),
		Result:  data,
	}
}

func planResponse(plan db.PlanResult) PlanResponse {
	statement := plan.Statement

	response := PlanResponse{
		SQL:     statement.String(),
		Columns: make([]string, len(statement.Columns)),
		Table:   statement.Table,
		Limit:   statement.Limit,
		Checked: plan.Checked,
		Known:   plan.Known,
	}
	for i, column := range statement.Columns {
		response.Columns[i] = column.String()
	}
	for _, join := range statement.Joins {
		response.Joins = append(response.Joins, join.String())
	}
	if statement.Where != nil {
		response.Where = statement.Where.String()
	}
	for _, orderBy := range statement.OrderBy {
		response.OrderBy = append(response.OrderBy, orderBy.String())
	}
	return response
}

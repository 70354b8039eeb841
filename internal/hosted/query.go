package hosted

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// From starts a query against a table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		method:  http.MethodGet,
		columns: "*",
		headers: make(map[string]string),
	}
}

// RPC calls a Postgres function with the given named parameters.
func (c *Client) RPC(ctx context.Context, fn string, params any, accessToken string) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	respBody, status, err := c.request(ctx, http.MethodPost, c.restURL+"/rpc/"+fn, body, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, parseError(respBody, status)
	}
	return respBody, nil
}

// QueryBuilder builds one REST call. Filters and modifiers chain; Execute runs it.
type QueryBuilder struct {
	client      *Client
	table       string
	method      string
	columns     string
	filters     []string
	orders      []string
	limit       int
	body        []byte
	bodyErr     error
	headers     map[string]string
	accessToken string
}

func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.method = http.MethodGet
	q.columns = columns
	return q
}

// Insert creates rows and returns their stored representation.
func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	q.method = http.MethodPost
	q.body, q.bodyErr = json.Marshal(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Update patches the filtered rows and returns their stored representation.
func (q *QueryBuilder) Update(data any) *QueryBuilder {
	q.method = http.MethodPatch
	q.body, q.bodyErr = json.Marshal(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, column+"=eq."+fmt.Sprint(value))
	return q
}

func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	q.filters = append(q.filters, column+"=neq."+fmt.Sprint(value))
	return q
}

func (q *QueryBuilder) In(column string, values ...string) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=in.(%s)", column, strings.Join(values, ",")))
	return q
}

func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// WithToken runs the query as the given user so row-level security applies.
func (q *QueryBuilder) WithToken(accessToken string) *QueryBuilder {
	q.accessToken = accessToken
	return q
}

func (q *QueryBuilder) buildURL() string {
	params := make([]string, 0, len(q.filters)+3)
	if q.method == http.MethodGet || q.headers["Prefer"] != "" {
		params = append(params, "select="+url.QueryEscape(q.columns))
	}
	for _, f := range q.filters {
		name, value, _ := strings.Cut(f, "=")
		params = append(params, url.QueryEscape(name)+"="+url.QueryEscape(value))
	}
	if len(q.orders) > 0 {
		params = append(params, "order="+url.QueryEscape(strings.Join(q.orders, ",")))
	}
	if q.limit > 0 {
		params = append(params, "limit="+strconv.Itoa(q.limit))
	}

	u := q.client.restURL + "/" + q.table
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

// Execute runs the query and returns the raw JSON array response.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.bodyErr != nil {
		return nil, fmt.Errorf("marshal %s body: %w", q.table, q.bodyErr)
	}
	respBody, status, err := q.client.request(ctx, q.method, q.buildURL(), q.body, q.headers, q.accessToken)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, parseError(respBody, status)
	}
	return respBody, nil
}

// ExecuteInto runs the query and decodes the row array into out.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, out any) error {
	body, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.table, err)
	}
	return nil
}

// Single runs the query expecting exactly one row.
func (q *QueryBuilder) Single(ctx context.Context, out any) error {
	found, err := q.MaybeSingle(ctx, out)
	if err != nil {
		return err
	}
	if !found {
		return &Error{StatusCode: http.StatusNotAcceptable, Code: "PGRST116", Message: fmt.Sprintf("no %s row matched", q.table)}
	}
	return nil
}

// MaybeSingle runs the query expecting at most one row. It reports false
// when no row matched and fails when more than one did.
func (q *QueryBuilder) MaybeSingle(ctx context.Context, out any) (bool, error) {
	if q.method == http.MethodGet && q.limit == 0 {
		q.limit = 2
	}
	var rows []json.RawMessage
	if err := q.ExecuteInto(ctx, &rows); err != nil {
		return false, err
	}
	switch len(rows) {
	case 0:
		return false, nil
	case 1:
		if err := json.Unmarshal(rows[0], out); err != nil {
			return false, fmt.Errorf("decode %s row: %w", q.table, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("expected at most one %s row, got %d", q.table, len(rows))
	}
}

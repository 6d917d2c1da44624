package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
)

// RPC names a stored procedure and its single id parameter.
type RPC struct {
	Name  string
	Param string
}

// DefaultIncrementRPCs maps "table.column" to the procedure that bumps it.
// PostgREST cannot express column = column + 1 in a PATCH.
var DefaultIncrementRPCs = map[string]RPC{
	"blog_posts.views_count": {Name: "increment_blog_views", Param: "post_id"},
}

// RestBackend talks to a hosted PostgREST endpoint (Supabase) with the
// site's anonymous key.
type RestBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rpcs       map[string]RPC
}

// NewRestBackend returns a backend for baseURL (the project URL, without
// /rest/v1). A nil client uses a 15s timeout client.
func NewRestBackend(baseURL, apiKey string, client *http.Client) *RestBackend {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RestBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
		rpcs:       DefaultIncrementRPCs,
	}
}

// postgrestError is the body PostgREST sends with a non-2xx status.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (b *RestBackend) Insert(ctx context.Context, row models.Insertable) error {
	table := row.TableName()
	key := row.GetIdempotencyKey()
	if key == "" {
		return apperror.New(apperror.KindBadRequest, "insert "+table+": missing idempotency key")
	}

	body, err := insertBody(row)
	if err != nil {
		return apperror.Wrap(apperror.KindBadRequest, err, "encode "+table)
	}

	params := url.Values{}
	params.Set("on_conflict", "idempotency_key")
	headers := map[string]string{"Prefer": "return=representation,resolution=ignore-duplicates"}

	var rows []json.RawMessage
	if err := b.do(ctx, http.MethodPost, "/rest/v1/"+table, params, headers, body, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		return json.Unmarshal(rows[0], row)
	}

	// Ignored duplicate: an earlier attempt already stored this key.
	q := Query{Filters: []Filter{Eq("idempotency_key", key)}, Limit: 1}
	if err := b.selectRaw(ctx, table, q, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperror.New(apperror.KindNotFound, fmt.Sprintf("%s with idempotency key %s not found", table, key))
	}
	return json.Unmarshal(rows[0], row)
}

func (b *RestBackend) Update(ctx context.Context, table string, filters []Filter, values map[string]any) (int64, error) {
	if len(filters) == 0 {
		return 0, apperror.New(apperror.KindBadRequest, "update "+table+": refusing to update without filters")
	}
	body, err := json.Marshal(values)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindBadRequest, err, "encode "+table)
	}

	params := url.Values{}
	addFilters(params, filters)
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []json.RawMessage
	if err := b.do(ctx, http.MethodPatch, "/rest/v1/"+table, params, headers, body, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (b *RestBackend) Select(ctx context.Context, table string, q Query, dest any) error {
	return b.selectRaw(ctx, table, q, dest)
}

func (b *RestBackend) Increment(ctx context.Context, table, id, column string) error {
	rpc, ok := b.rpcs[table+"."+column]
	if !ok {
		return apperror.Configuration("no increment procedure registered for %s.%s", table, column)
	}
	body, err := json.Marshal(map[string]string{rpc.Param: id})
	if err != nil {
		return err
	}
	return b.do(ctx, http.MethodPost, "/rest/v1/rpc/"+rpc.Name, nil, nil, body, nil)
}

func (b *RestBackend) selectRaw(ctx context.Context, table string, q Query, dest any) error {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	addFilters(params, q.Filters)
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return b.do(ctx, http.MethodGet, "/rest/v1/"+table, params, nil, nil, dest)
}

func (b *RestBackend) do(ctx context.Context, method, path string, params url.Values, headers map[string]string, body []byte, dest any) error {
	endpoint := b.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperror.Wrap(apperror.KindBadRequest, err, "build request")
	}
	req.Header.Set("apikey", b.apiKey)
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return apperror.Wrap(apperror.KindTransient, err, method+" "+path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Wrap(apperror.KindTransient, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe postgrestError
		_ = json.Unmarshal(respBody, &pe)
		if pe.Message == "" {
			pe.Message = strings.TrimSpace(string(respBody))
		}
		return apperror.FromHTTPStatus(resp.StatusCode, pe.Code, pe.Message)
	}

	if dest == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return apperror.Wrap(apperror.KindTransient, err, "decode "+path)
	}
	return nil
}

// insertBody encodes row without the columns the store assigns.
func insertBody(row any) ([]byte, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for _, col := range []string{"id", "created_at", "updated_at"} {
		switch v := fields[col].(type) {
		case nil:
			delete(fields, col)
		case string:
			if v == "" || strings.HasPrefix(v, "0001-01-01") {
				delete(fields, col)
			}
		}
	}
	return json.Marshal(fields)
}

func addFilters(params url.Values, filters []Filter) {
	for _, f := range filters {
		op := f.Op
		if op == "" {
			op = OpEq
		}
		params.Add(f.Column, string(op)+"."+formatValue(f.Value))
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

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

	"github.com/google/uuid"
)

// TableMap binds a logical table to its Baserow table id and the
// logical-name to backend-identifier mapping for its fields. The mapping
// appears here and in config, nowhere else.
type TableMap struct {
	ID     int
	Fields map[string]string // logical name -> "field_<id>"
}

// BaserowOptions configures the Baserow adapter.
type BaserowOptions struct {
	BaseURL    string
	Token      string
	Tables     map[string]TableMap
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Baserow implements Store over the Baserow row API. Transient failures
// (429, 5xx, network errors) are retried with exponential backoff and
// Retry-After support; everything else surfaces immediately.
type Baserow struct {
	baseURL    string
	token      string
	tables     map[string]TableMap
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewBaserow builds the adapter, applying defaults for anything unset.
func NewBaserow(opts BaserowOptions) *Baserow {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.baserow.io"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 3 * time.Second
	}
	return &Baserow{
		baseURL:    baseURL,
		token:      opts.Token,
		tables:     opts.Tables,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// Create inserts a row and returns it with logical field names.
func (b *Baserow) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	tm, err := b.table(table)
	if err != nil {
		return Record{}, err
	}
	payload, err := b.toBackend(tm, fields)
	if err != nil {
		return Record{}, err
	}
	body, err := b.do(ctx, http.MethodPost, b.rowsURL(tm)+"/", payload)
	if err != nil {
		return Record{}, fmt.Errorf("store: create in %s: %w", table, err)
	}
	return b.decodeRow(tm, body)
}

// Get fetches one row by id; ErrNotFound when Baserow reports 404.
func (b *Baserow) Get(ctx context.Context, table, id string) (Record, error) {
	tm, err := b.table(table)
	if err != nil {
		return Record{}, err
	}
	body, err := b.do(ctx, http.MethodGet, b.rowsURL(tm)+"/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		if isNotFound(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: get %s/%s: %w", table, id, err)
	}
	return b.decodeRow(tm, body)
}

// Query lists rows matching filter, following pagination. Filter clauses
// translate to Baserow equal-filters on the mapped field ids; a clause on a
// field with no mapping is applied in memory after the fetch so rows are
// never silently dropped.
func (b *Baserow) Query(ctx context.Context, table string, filter *Filter) ([]Record, error) {
	tm, err := b.table(table)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("size", "200")
	var residual Filter
	if filter != nil {
		for _, c := range filter.Clauses {
			backend, ok := tm.Fields[c.Field]
			if !ok {
				residual.Clauses = append(residual.Clauses, c)
				continue
			}
			params.Set("filter__"+backend+"__equal", c.Value)
		}
	}

	var out []Record
	for page := 1; ; page++ {
		params.Set("page", strconv.Itoa(page))
		body, err := b.do(ctx, http.MethodGet, b.rowsURL(tm)+"/?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("store: query %s: %w", table, err)
		}
		var resp struct {
			Count   int               `json:"count"`
			Next    *string           `json:"next"`
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("store: query %s: decode: %w", table, err)
		}
		for _, raw := range resp.Results {
			rec, err := b.decodeRow(tm, raw)
			if err != nil {
				return nil, err
			}
			if len(residual.Clauses) == 0 || residual.Matches(rec) {
				out = append(out, rec)
			}
		}
		if resp.Next == nil || *resp.Next == "" || len(resp.Results) == 0 {
			return out, nil
		}
	}
}

// Update patches fields on a row and returns the updated record.
func (b *Baserow) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	tm, err := b.table(table)
	if err != nil {
		return Record{}, err
	}
	payload, err := b.toBackend(tm, fields)
	if err != nil {
		return Record{}, err
	}
	body, err := b.do(ctx, http.MethodPatch, b.rowsURL(tm)+"/"+url.PathEscape(id)+"/", payload)
	if err != nil {
		if isNotFound(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: update %s/%s: %w", table, id, err)
	}
	return b.decodeRow(tm, body)
}

// Delete removes a row; ErrNotFound when it does not exist.
func (b *Baserow) Delete(ctx context.Context, table, id string) error {
	tm, err := b.table(table)
	if err != nil {
		return err
	}
	_, err = b.do(ctx, http.MethodDelete, b.rowsURL(tm)+"/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (b *Baserow) table(name string) (TableMap, error) {
	tm, ok := b.tables[name]
	if !ok || tm.ID == 0 {
		// Missing mapping is a configuration error; retrying cannot fix it.
		return TableMap{}, fmt.Errorf("store: no Baserow mapping for table %q", name)
	}
	return tm, nil
}

func (b *Baserow) rowsURL(tm TableMap) string {
	return fmt.Sprintf("%s/api/database/rows/table/%d", b.baseURL, tm.ID)
}

// toBackend translates logical field names to field_<id> keys. A logical
// name absent from the mapping is a configuration error.
func (b *Baserow) toBackend(tm TableMap, fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		backend, ok := tm.Fields[name]
		if !ok {
			return nil, fmt.Errorf("store: no field mapping for %q", name)
		}
		out[backend] = value
	}
	return out, nil
}

// decodeRow translates a Baserow row payload back to logical names. Backend
// fields without a mapping are dropped; Baserow metadata (order) never
// reaches callers.
func (b *Baserow) decodeRow(tm TableMap, body []byte) (Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Record{}, fmt.Errorf("store: decode row: %w", err)
	}
	rec := Record{Fields: map[string]any{}}
	switch id := raw["id"].(type) {
	case float64:
		rec.ID = strconv.FormatInt(int64(id), 10)
	case string:
		rec.ID = id
	}
	for logical, backend := range tm.Fields {
		if v, ok := raw[backend]; ok {
			rec.Fields[logical] = v
		}
	}
	return rec, nil
}

// httpError carries the status code so callers can map 404 to ErrNotFound.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("baserow: status=%d message=%s", e.status, e.message)
}

func isNotFound(err error) bool {
	var he *httpError
	return errors.As(err, &he) && he.status == http.StatusNotFound
}

// do performs one JSON request with retry on transient failures.
func (b *Baserow) do(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		var err error
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	correlationID := uuid.NewString()

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Token "+b.token)
		req.Header.Set("X-Correlation-Id", correlationID)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			if attempt < b.maxRetries {
				if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode >= 500 && resp.StatusCode <= 599)
		if retryable && attempt < b.maxRetries {
			if waitErr := sleepContext(ctx, b.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		message := strings.TrimSpace(string(respBody))
		var parsed struct {
			Error  string `json:"error"`
			Detail any    `json:"detail"`
		}
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != "" {
			message = parsed.Error
		}
		return nil, &httpError{status: resp.StatusCode, message: message}
	}
}

func (b *Baserow) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfterHeader)); err == nil && secs > 0 {
		d := time.Duration(secs) * time.Second
		if d > b.maxDelay {
			return b.maxDelay
		}
		return d
	}
	delay := b.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.maxDelay {
			return b.maxDelay
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

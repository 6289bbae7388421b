// Package sor is the HTTP client for the REST system of record that owns stock and
// removal records.
package sor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/genluna-medchain/internal/domain/record"
)

// StatusError is a non-2xx response from the system of record
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Option is a functional option for configuring a Client
type Option func(*Client)

// WithHTTPClient sets a custom http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIToken attaches a bearer token to every request
func WithAPIToken(token string) Option {
	return func(c *Client) {
		c.apiToken = token
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Client reads and writes ledgerable records over REST
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a system-of-record client rooted at baseURL
func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Create persists rec and returns the stored record with its assigned identifier
func (c *Client) Create(ctx context.Context, rec record.Record) (record.Record, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", rec.Kind(), err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/"+rec.Kind().Collection(), "application/json", body)
	if err != nil {
		return nil, err
	}

	created, err := decodeRecord(rec.Kind(), raw)
	if err != nil {
		return nil, err
	}
	if created.LedgerID() <= 0 {
		return nil, fmt.Errorf("system of record returned %s without an identifier", rec.Kind())
	}
	return created, nil
}

// Get loads a record by identifier
func (c *Client) Get(ctx context.Context, kind record.Kind, id int64) (record.Record, error) {
	raw, err := c.do(ctx, http.MethodGet, recordPath(kind, id), "", nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, record.ErrRecordNotFound{Kind: kind, ID: id}
		}
		return nil, err
	}
	return decodeRecord(kind, raw)
}

// PatchLinkage writes the ledger linkage onto a stored record as a JSON merge patch
// computed against the linkage the record currently carries.
func (c *Client) PatchLinkage(ctx context.Context, rec record.Record, linkage record.Linkage) error {
	current, err := json.Marshal(rec.LedgerLinkage())
	if err != nil {
		return fmt.Errorf("failed to encode current linkage: %w", err)
	}
	desired, err := json.Marshal(linkage)
	if err != nil {
		return fmt.Errorf("failed to encode linkage: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(current, desired)
	if err != nil {
		return fmt.Errorf("failed to build linkage patch: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(patch), []byte("{}")) {
		return nil
	}

	if _, err := c.do(ctx, http.MethodPatch, recordPath(rec.Kind(), rec.LedgerID()), "application/merge-patch+json", patch); err != nil {
		return err
	}
	rec.SetLinkage(linkage)
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call system of record: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read system of record response: %w", err)
	}

	c.logger.Debug("System of record call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}

func recordPath(kind record.Kind, id int64) string {
	return "/" + kind.Collection() + "/" + strconv.FormatInt(id, 10)
}

// decodeRecord accepts either a bare record or one wrapped in {"data": ...}
func decodeRecord(kind record.Kind, raw []byte) (record.Record, error) {
	rec, err := record.New(kind)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	payload := raw
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if trimmed := bytes.TrimSpace(envelope.Data); len(trimmed) > 0 && trimmed[0] == '{' {
			payload = trimmed
		}
	}

	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return rec, nil
}

// Package sheet reads and writes the planning sheet kept in Smartsheet.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the Smartsheet REST API root.
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = errors.New("smartsheet: not found")

// APIError is a non-2xx response from Smartsheet.
type APIError struct {
	StatusCode int
	ErrorCode  int    `json:"errorCode"`
	Message    string `json:"message"`
	RefID      string `json:"refId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartsheet API error %d (code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client provides methods to interact with the Smartsheet API
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Smartsheet API client
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSheet fetches a sheet with its rows and cell object values, which are
// needed to read contact list columns.
func (c *Client) GetSheet(ctx context.Context, id string) (*Sheet, error) {
	query := url.Values{}
	query.Set("level", "2")
	query.Set("include", "objectValue")

	var s Sheet
	if err := c.do(ctx, "GET", "/sheets/"+url.PathEscape(id), query, nil, &s); err != nil {
		return nil, fmt.Errorf("failed to get sheet %s: %w", id, err)
	}
	return &s, nil
}

// CellUpdate is one cell in an update-rows call.
type CellUpdate struct {
	ColumnID int64 `json:"columnId"`
	Value    any   `json:"value"`
}

// UpdateRow writes several cells of one row in a single call.
func (c *Client) UpdateRow(ctx context.Context, sheetID, rowID int64, cells []CellUpdate) error {
	body := []map[string]any{{"id": rowID, "cells": cells}}
	if err := c.do(ctx, "PUT", fmt.Sprintf("/sheets/%d/rows", sheetID), nil, body, nil); err != nil {
		return fmt.Errorf("failed to update row %d: %w", rowID, err)
	}
	return nil
}

// CreateSheet creates a sheet in the user's Sheets folder.
func (c *Client) CreateSheet(ctx context.Context, spec Sheet) (*Sheet, error) {
	var resp struct {
		Result Sheet `json:"result"`
	}
	if err := c.do(ctx, "POST", "/sheets", nil, spec, &resp); err != nil {
		return nil, fmt.Errorf("failed to create sheet %q: %w", spec.Name, err)
	}
	return &resp.Result, nil
}

// UpdateColumn changes column properties that cannot be set at creation.
func (c *Client) UpdateColumn(ctx context.Context, sheetID, columnID int64, col Column) error {
	col.ID = 0
	if err := c.do(ctx, "PUT", fmt.Sprintf("/sheets/%d/columns/%d", sheetID, columnID), nil, col, nil); err != nil {
		return fmt.Errorf("failed to update column %q: %w", col.Title, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, in, out any) error {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("smartsheet request", "method", method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out != nil {
		dec := json.NewDecoder(bytes.NewReader(respBody))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// ParseSheetID accepts a numeric sheet id or a sheet URL and returns the id
// to fetch. For URLs the last path segment is used.
func ParseSheetID(input string) string {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http") {
		if u, err := url.Parse(input); err == nil {
			segs := strings.Split(strings.TrimRight(u.Path, "/"), "/")
			return segs[len(segs)-1]
		}
	}
	return input
}

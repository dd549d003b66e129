// Package api is the HTTP client for the Shennong backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/me/shennong/pkg/model"
)

// TokenStore supplies the bearer token and forgets it when the backend
// rejects it.
type TokenStore interface {
	Token() string
	Clear() error
}

// Client is an HTTP client for the Shennong API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	tokens     TokenStore
}

// NewClient creates a Shennong API client. tokens may be nil for
// unauthenticated use.
func NewClient(baseURL string, tokens TokenStore, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger.With("component", "api"),
		tokens:     tokens,
	}
}

// do performs an HTTP request and decodes a 2xx JSON response into out.
// A 401 clears the stored token and returns an error wrapping
// model.ErrUnauthorized; other error statuses return a *model.APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	c.Logger.Debug("HTTP request", "method", method, "url", u)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "bytes", len(respBody))

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			if err := c.tokens.Clear(); err != nil {
				c.Logger.Warn("clear session", "error", err)
			}
		}
		return fmt.Errorf("%w (%s)", model.ErrUnauthorized, parseError(resp.StatusCode, respBody).Message)
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func listQuery(opts model.ListOptions) url.Values {
	opts.Clamp()
	q := url.Values{}
	q.Set("page", fmt.Sprint(opts.Page))
	q.Set("per_page", fmt.Sprint(opts.PerPage))
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Desc {
		q.Set("desc", "true")
	}
	return q
}

// Package crm implements the gateway to the CRM's REST API: one method per
// endpoint on top of shared request plumbing. Every call fetches a bearer
// token from the token manager immediately before the request; no token is
// held across calls.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// guidPattern matches the 36-character lowercase id shape the CRM uses
// everywhere. Responses that fail it (error objects, truncated bodies,
// ids in the wrong case) must never be treated as entity ids.
var guidPattern = regexp.MustCompile(`^[a-f0-9-]{36}$`)

// IsGUID reports whether s looks like a CRM entity id.
func IsGUID(s string) bool {
	return guidPattern.MatchString(s)
}

// TokenSource supplies a valid bearer token for an outgoing request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestError is a transport or HTTP-level failure. The response body is
// attached for diagnostics.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("crm request failed: %s %s status=%d body=%s",
		e.Method, e.URL, e.StatusCode, snippet(e.Body, 500))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Client is the stateless request layer for one CRM tenant.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout overrides the default 30s per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient creates a gateway for the CRM at baseURL. Requests carry a
// bearer token obtained from tokens just before each call.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do executes one authorized request and returns the response body.
// Non-2xx responses become a *RequestError carrying the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values,
	contentType string, body io.Reader, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("crm request failed: %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       respBody,
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, u, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, "application/json", nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, "application/json", bytes.NewReader(b), out)
}

func (c *Client) patchJSON(ctx context.Context, path string, in any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, nil, "application/json", bytes.NewReader(b), nil)
}

// postForm submits in as application/x-www-form-urlencoded. Some CRM
// endpoints reject JSON payloads and only accept form encoding.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, nil,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

// postMultipart uploads a single file under the form field "file".
func (c *Client) postMultipart(ctx context.Context, path, filename string, content []byte, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, w.FormDataContentType(), &buf, out)
}

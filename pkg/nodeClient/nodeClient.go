// Package nodeClient is the shared transport used by per-chain implementations
// to talk to REST and JSON-RPC nodes. Every failure it returns is already
// classified into a txErrors kind: connectivity problems and 5xx responses are
// transient, other non-2xx responses are rejections carrying the response body,
// and 404 responses additionally match txErrors.ErrNotFound. A 2xx response
// that does not decode is a rejection too, so callers do not retry it.
package nodeClient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Layr-Labs/multichain-tx-go/pkg/logger"
	"github.com/Layr-Labs/multichain-tx-go/pkg/txErrors"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	maxMessageLen  = 512
)

// HTTPError is the non-2xx response of a REST call.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// Client talks to one node.
type Client struct {
	baseURL string
	http    *http.Client
	headers map[string]string
	rpc     *rpc.Client
	rpcErr  error
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHeader adds a header sent with every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithHTTPClient replaces the underlying http.Client. Its transport is wrapped for logging.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the node at baseURL.
//
// Parameters:
//   - baseURL: The node URL, without a trailing slash
//   - l: The logger used for request logging
//   - opts: Client options
//
// Returns:
//   - *Client: The client
func New(baseURL string, l *zap.Logger, opts ...Option) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		headers: map[string]string{},
		logger:  l,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{
		Timeout:       c.http.Timeout,
		Transport:     logger.NewRoundTripper(c.http.Transport, l),
		CheckRedirect: c.http.CheckRedirect,
		Jar:           c.http.Jar,
	}
	c.rpc, c.rpcErr = rpc.DialOptions(context.Background(), c.baseURL, rpc.WithHTTPClient(c.http))
	if c.rpc != nil {
		for k, v := range c.headers {
			c.rpc.SetHeader(k, v)
		}
	}
	return c
}

// BaseURL returns the node URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

// PostJSON encodes body as JSON, POSTs it and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return txErrors.New(txErrors.KindInvalidInput, "", "", fmt.Errorf("failed to encode request: %w", err))
	}
	return c.do(ctx, http.MethodPost, path, "application/json", payload, out)
}

// PostRaw POSTs body unchanged with the given content type.
func (c *Client) PostRaw(ctx context.Context, path, contentType string, body []byte, out any) error {
	return c.do(ctx, http.MethodPost, path, contentType, body, out)
}

// Call performs a JSON-RPC call and decodes the result into out.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	if c.rpcErr != nil {
		return txErrors.New(txErrors.KindInvalidInput, "", "", fmt.Errorf("invalid rpc url %s: %w", c.baseURL, c.rpcErr))
	}
	if err := c.rpc.CallContext(ctx, out, method, params...); err != nil {
		return Classify(err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return txErrors.New(txErrors.KindInvalidInput, "", "", fmt.Errorf("failed to build request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return txErrors.New(txErrors.KindTransient, "", "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return txErrors.New(txErrors.KindTransient, "", "", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Classify(&HTTPError{StatusCode: resp.StatusCode, Body: data})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &txErrors.Error{
			Kind:    txErrors.KindRejected,
			Message: truncate(strings.TrimSpace(string(data))),
			Err:     fmt.Errorf("failed to decode response from %s: %w", path, err),
		}
	}
	return nil
}

// Classify maps a transport error onto the error taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var typed *txErrors.Error
	if errors.As(err, &typed) {
		return err
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode, httpErr.Body, err)
	}
	var rpcHTTPErr rpc.HTTPError
	if errors.As(err, &rpcHTTPErr) {
		return classifyStatus(rpcHTTPErr.StatusCode, rpcHTTPErr.Body, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &txErrors.Error{Kind: txErrors.KindRejected, Message: truncate(rpcErr.Error()), Err: err}
	}
	return txErrors.New(txErrors.KindTransient, "", "", err)
}

func classifyStatus(status int, body []byte, err error) error {
	msg := truncate(strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusNotFound:
		return &txErrors.Error{Kind: txErrors.KindRejected, Message: msg, Err: fmt.Errorf("%w: %w", txErrors.ErrNotFound, err)}
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return &txErrors.Error{Kind: txErrors.KindTransient, Message: msg, Err: err}
	}
	return &txErrors.Error{Kind: txErrors.KindRejected, Message: msg, Err: err}
}

// IsNotFound reports whether err is a classified 404.
func IsNotFound(err error) bool {
	return errors.Is(err, txErrors.ErrNotFound)
}

// ResponseBody returns the body of a classified non-2xx REST response.
func ResponseBody(err error) ([]byte, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body, true
	}
	return nil, false
}

func truncate(s string) string {
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}

// RPC returns the underlying JSON-RPC client, for libraries that take one directly.
func (c *Client) RPC() (*rpc.Client, error) {
	if c.rpcErr != nil {
		return nil, c.rpcErr
	}
	return c.rpc, nil
}

package node

import (
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

	"stacks-explorer-api/internal/observability"
	"stacks-explorer-api/internal/storage"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

const metricsSource = "core"

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("core api %s: unexpected status %d: %s", e.Method, e.StatusCode, e.Body)
}

// retryable reports whether the request may succeed when repeated.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// HTTPClient implements CoreAPI over the core node's REST API.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

var _ CoreAPI = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a core node client for baseURL (e.g. http://localhost:6270).
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with retries and exponential backoff and decodes the JSON body into result.
func (c *HTTPClient) get(ctx context.Context, method, path string, query url.Values, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		recorded := err
		if errors.Is(err, storage.ErrNotFound) {
			recorded = nil
		}
		observability.RecordUpstreamCall(metricsSource, method, time.Since(start).Seconds(), recorded)
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("core api %s %s: %w", method, path, storage.ErrNotFound)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := &StatusError{Method: method, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
			if !statusErr.retryable() {
				return statusErr
			}
			lastErr = statusErr
			continue
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				// A 200 with an undecodable body will not improve on retry.
				return fmt.Errorf("core api %s: unmarshal response: %w", method, err)
			}
		}
		return nil
	}

	return fmt.Errorf("core api %s: max retries exceeded: %w", method, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func pageQuery(page int) url.Values {
	if page < 0 {
		page = 0
	}
	return url.Values{"page": []string{strconv.Itoa(page)}}
}

// RawTransaction retrieves a raw transaction through the node's insight endpoint.
func (c *HTTPClient) RawTransaction(ctx context.Context, txid string) (string, error) {
	var result struct {
		RawTx string `json:"rawtx"`
	}
	if err := c.get(ctx, "rawtx", "/insight-api/rawtx/"+url.PathEscape(txid), nil, &result); err != nil {
		return "", err
	}
	if result.RawTx == "" {
		return "", fmt.Errorf("core api rawtx %s: %w", txid, storage.ErrNotFound)
	}
	return result.RawTx, nil
}

// Address retrieves the names owned by a bitcoin address.
func (c *HTTPClient) Address(ctx context.Context, btcAddress string) (*AddressInfo, error) {
	var info AddressInfo
	if err := c.get(ctx, "address", "/v1/addresses/bitcoin/"+url.PathEscape(btcAddress), nil, &info); err != nil {
		return nil, err
	}
	if info.Names == nil {
		info.Names = []string{}
	}
	return &info, nil
}

// StacksBalance retrieves the STACKS token balance of a bitcoin address.
func (c *HTTPClient) StacksBalance(ctx context.Context, btcAddress string) (int64, error) {
	var result struct {
		Balance json.Number `json:"balance"`
	}
	path := "/v1/accounts/" + url.PathEscape(btcAddress) + "/STACKS/balance"
	if err := c.get(ctx, "balance", path, nil, &result); err != nil {
		return 0, err
	}
	if result.Balance == "" {
		return 0, nil
	}
	balance, err := result.Balance.Int64()
	if err != nil {
		return 0, fmt.Errorf("core api balance %s: parse %q: %w", btcAddress, result.Balance, err)
	}
	return balance, nil
}

// Names retrieves one page of registered names.
func (c *HTTPClient) Names(ctx context.Context, page int) ([]string, error) {
	var names []string
	if err := c.get(ctx, "names", "/v1/names", pageQuery(page), &names); err != nil {
		return nil, err
	}
	return nonNil(names), nil
}

// NamespaceNames retrieves one page of the names in a namespace.
func (c *HTTPClient) NamespaceNames(ctx context.Context, namespace string, page int) ([]string, error) {
	var names []string
	path := "/v1/namespaces/" + url.PathEscape(namespace) + "/names"
	if err := c.get(ctx, "namespace_names", path, pageQuery(page), &names); err != nil {
		return nil, err
	}
	return nonNil(names), nil
}

// Namespaces retrieves all namespace ids.
func (c *HTTPClient) Namespaces(ctx context.Context) ([]string, error) {
	var namespaces []string
	if err := c.get(ctx, "namespaces", "/v1/namespaces", nil, &namespaces); err != nil {
		return nil, err
	}
	return nonNil(namespaces), nil
}

// NameInfo retrieves the current state of a name.
func (c *HTTPClient) NameInfo(ctx context.Context, name string) (*NameInfo, error) {
	var info NameInfo
	if err := c.get(ctx, "name", "/v1/names/"+url.PathEscape(name), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

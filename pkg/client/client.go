// Package client talks to the search API read endpoints: paged results, facet
// counts for a filter string, and single entities. Transient failures are
// retried by the transport; callers see the final error.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rubiojr/serp/pkg/filter"
	"github.com/rubiojr/serp/pkg/log"
)

const (
	DefaultBaseURL  = "https://api.openalex.org"
	DefaultRetryMax = 3
	DefaultTimeout  = 30 * time.Second
)

var (
	// ErrStatus is wrapped by errors for non-2xx API responses.
	ErrStatus = errors.New("unexpected API status")

	// ErrEmptyResponse is returned when the API answers with an empty body.
	ErrEmptyResponse = errors.New("empty API response")
)

// Meta is the metadata block of a results response.
type Meta struct {
	Count            int `json:"count"`
	DBResponseTimeMS int `json:"db_response_time_ms"`
	Page             int `json:"page"`
	PerPage          int `json:"per_page"`
}

// ResultsResponse is the body of a paged results request.
type ResultsResponse struct {
	Results []map[string]any `json:"results"`
	Meta    Meta             `json:"meta"`
}

// FiltersResponse is the body of a facet counts request.
type FiltersResponse struct {
	Filters []filter.Facet `json:"filters"`
}

type Client struct {
	baseURL    string
	mailto     string
	userAgent  string
	retryMax   int
	waitMin    time.Duration
	waitMax    time.Duration
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*Client)

// WithMailto adds the mailto parameter some APIs use to route polite traffic.
func WithMailto(mailto string) Option {
	return func(c *Client) {
		c.mailto = mailto
	}
}

func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = n
		}
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.waitMin = min
		c.waitMax = max
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient replaces the retrying transport entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		retryMax: DefaultRetryMax,
		timeout:  DefaultTimeout,
		logger:   log.ForService("client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = c.retryMax
		retryClient.HTTPClient.Timeout = c.timeout
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
		if c.waitMin > 0 {
			retryClient.RetryWaitMin = c.waitMin
		}
		if c.waitMax > 0 {
			retryClient.RetryWaitMax = c.waitMax
		}
		retryClient.Logger = leveledLogger{c.logger}
		c.httpClient = retryClient.StandardClient()
	}
	return c
}

// URL returns the results URL for an entity type and query parameters.
func (c *Client) URL(entityType string, params url.Values) string {
	return c.endpoint(params, entityType)
}

// Search fetches one page of results.
func (c *Client) Search(ctx context.Context, entityType string, params url.Values) (*ResultsResponse, error) {
	resp := new(ResultsResponse)
	if err := c.get(ctx, c.endpoint(params, entityType), resp); err != nil {
		return nil, fmt.Errorf("searching %s: %w", entityType, err)
	}
	return resp, nil
}

// Filters fetches facet counts for the given encoded filter string.
func (c *Client) Filters(ctx context.Context, entityType, filterString string) (*FiltersResponse, error) {
	resp := new(FiltersResponse)
	if err := c.get(ctx, c.endpoint(nil, entityType, "filters", filterString), resp); err != nil {
		return nil, fmt.Errorf("fetching %s filters: %w", entityType, err)
	}
	return resp, nil
}

// Entity fetches a single entity by id.
func (c *Client) Entity(ctx context.Context, entityType, id string) (map[string]any, error) {
	var resp map[string]any
	if err := c.get(ctx, c.endpoint(nil, entityType, id), &resp); err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", entityType, id, err)
	}
	return resp, nil
}

func (c *Client) endpoint(params url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.baseURL + "/" + strings.Join(escaped, "/")

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, uri string, response any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.sendRequest(req, response)
}

func (c *Client) sendRequest(req *http.Request, response any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	c.logger.Debugf("GET %s -> %d (%s, %d bytes)", req.URL.String(), resp.StatusCode, time.Since(start).Round(time.Millisecond), len(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, snippet(body))
	}
	if len(body) == 0 {
		return ErrEmptyResponse
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("parsing response JSON: %w", err)
	}
	return nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// leveledLogger routes retry transport logging to the service logger.
type leveledLogger struct {
	l *log.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.l.Errorf("%s %s", msg, formatKV(kv)) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.l.Warnf("%s %s", msg, formatKV(kv)) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.l.Debugf("%s %s", msg, formatKV(kv)) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.l.Debugf("%s %s", msg, formatKV(kv)) }

func formatKV(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", kv[i], kv[i+1])
	}
	return b.String()
}

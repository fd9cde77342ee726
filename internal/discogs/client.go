// Package discogs is the catalog API client: retried requests plus the
// collection, value and price-suggestion endpoints built on them. Signing
// happens in the transport handed to NewClient.
package discogs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/metrics"
	"github.com/rtuszik/discogsdash/internal/retry"
)

// Doer executes one HTTP request.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RequestOptions tunes a single Request call.
type RequestOptions struct {
	Method string
	Query  url.Values
	Body   []byte
	// Op names the call in retry logs; defaults to the endpoint.
	Op string
}

// Client talks to the catalog API.
type Client struct {
	baseURL   string
	userAgent string
	http      Doer
	policy    retry.Policy
	pageSize  int
	logger    *logger.Logger
}

// Config holds the client's identity and paging settings.
type Config struct {
	BaseURL   string
	UserAgent string
	PageSize  int
}

func NewClient(cfg Config, httpClient Doer, policy retry.Policy, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("discogs")
	if policy.Logger == nil {
		policy.Logger = log
	}
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
		policy:    policy,
		pageSize:  cfg.PageSize,
		logger:    log,
	}
}

// Request performs a signed call under the retry policy and returns the raw
// body. A 204 or an empty 2xx body yields nil with no error.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) ([]byte, error) {
	op := opts.Op
	if op == "" {
		op = endpoint
	}
	p := c.policy
	if p.OnRetry == nil {
		p.OnRetry = metrics.RecordRetry(op)
	}
	return retry.Do(ctx, p, op, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, endpoint, opts)
	})
}

func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions) ([]byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	rawURL := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		rawURL += sep + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, apierr.New(apierr.KindClient, endpoint, fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Network(endpoint, fmt.Errorf("read body: %w", err))
	}

	if err := apierr.Classify(endpoint, resp, data); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

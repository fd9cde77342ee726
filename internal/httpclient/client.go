package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/metrics"
)

// minReopenWait is the hint given when the breaker rejects a request after
// its open timeout has already elapsed (half-open and saturated).
const minReopenWait = 100 * time.Millisecond

// errServerFailure marks a 5xx response as a breaker failure while the
// response itself is still handed back to the caller.
var errServerFailure = errors.New("server failure")

// Config controls pacing and breaker behavior.
type Config struct {
	Name              string
	RequestsPerMinute int // <= 0 disables pacing
	FailureThreshold  uint32
	OpenTimeout       time.Duration
	Logger            *logger.Logger
}

// Client wraps an http.Client with request pacing and a circuit breaker.
// It makes exactly one attempt per Do call; retries belong to the caller.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *logger.Logger

	openTimeout time.Duration
	openedAt    atomic.Int64
}

// DefaultTransport is the pooled transport used for catalog traffic.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// NewClient creates a paced, breaker-protected HTTP client.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   constants.DefaultHTTPTimeout,
			Transport: DefaultTransport(),
		}
	}
	if cfg.Name == "" {
		cfg.Name = constants.BreakerName
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = constants.BreakerFailureThreshold
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = constants.BreakerOpenTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("httpclient")

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	c := &Client{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      log,
		openTimeout: cfg.OpenTimeout,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: constants.BreakerHalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || isLocalRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.openedAt.Store(time.Now().UnixNano())
			}
			log.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return c
}

// Do waits for a pacing slot and executes one request through the breaker.
// Any HTTP response, including 4xx and 5xx, is returned without error; an
// open breaker yields an unavailable apierr and transport failures a transient one.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apierr.New(apierr.KindUnavailable, endpoint, err)
	}

	start := time.Now()
	var resp *http.Response
	_, err := c.breaker.Execute(func() (*http.Response, error) {
		r, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return r, errServerFailure
		}
		return r, nil
	})
	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil, errors.Is(err, errServerFailure):
		metrics.APIRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.APIRequests.WithLabelValues("rejected").Inc()
		wait := c.reopenIn()
		c.logger.Warn("Request rejected by circuit breaker", "endpoint", endpoint, "retry_in", wait)
		return nil, &apierr.Error{Kind: apierr.KindUnavailable, Endpoint: endpoint, RetryAfter: wait, Err: err}
	case isLocalRejection(err):
		metrics.APIRequests.WithLabelValues("error").Inc()
		var apiErr *apierr.Error
		errors.As(err, &apiErr)
		return nil, apiErr
	default:
		metrics.APIRequests.WithLabelValues("error").Inc()
		return nil, apierr.Network(endpoint, err)
	}
}

// reopenIn is how long until the open breaker lets a probe through.
func (c *Client) reopenIn() time.Duration {
	wait := c.openTimeout - time.Since(time.Unix(0, c.openedAt.Load()))
	if wait < minReopenWait {
		return minReopenWait
	}
	return wait
}

// isLocalRejection reports an error raised by the transport chain before the
// request left the process, such as a missing credential.
func isLocalRejection(err error) bool {
	var apiErr *apierr.Error
	return errors.As(err, &apiErr)
}

// State reports the breaker state, for status endpoints and tests.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

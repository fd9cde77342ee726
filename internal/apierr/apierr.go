// Package apierr defines the structured error returned by every outbound
// catalog API call.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a failure. Retry decisions look at the kind only.
type Kind string

const (
	KindConfig      Kind = "config"
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindTransient   Kind = "transient"
	KindNotFound    Kind = "not_found"
	KindClient      Kind = "client"
	KindUnavailable Kind = "unavailable"
)

const maxBodySnippet = 512

// Error is a failed interaction with the catalog API.
type Error struct {
	Kind       Kind
	StatusCode int
	Endpoint   string
	Body       string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Endpoint != "" {
		b.WriteString(" error from ")
		b.WriteString(e.Endpoint)
	} else {
		b.WriteString(" error")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryAfterHint exposes the server supplied wait for the retry engine.
func (e *Error) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// New builds an error of the given kind without a response.
func New(kind Kind, endpoint string, err error) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Err: err}
}

// Classify maps a completed response to an error. 2xx returns nil.
func Classify(endpoint string, resp *http.Response, body []byte) error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	e := &Error{
		StatusCode: code,
		Endpoint:   endpoint,
		Body:       snippet(body),
	}

	switch {
	case code == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Kind = KindAuth
	case code == http.StatusNotFound:
		e.Kind = KindNotFound
	case code >= 500:
		e.Kind = KindTransient
	default:
		e.Kind = KindClient
	}
	return e
}

// Network wraps a transport failure. Cancellation is passed through untouched
// so callers can tell a shutdown from a flaky connection.
func Network(endpoint string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: KindTransient, Endpoint: endpoint, Err: err}
}

// ParseRetryAfter reads a Retry-After value given as seconds or an HTTP date.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether another attempt may succeed. An unavailable
// error is retryable only when it says how long to wait.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindRateLimit, KindTransient:
		return true
	case KindUnavailable:
		return e.RetryAfter > 0
	}
	return false
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet] + "..."
	}
	return s
}

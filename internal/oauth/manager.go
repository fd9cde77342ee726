// Package oauth performs the three-legged OAuth 1.0a handshake against the
// catalog API and signs requests with the resulting credential.
package oauth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/domain"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/retry"
)

var (
	// ErrTicketNotFound means the request token is unknown or its secret expired.
	ErrTicketNotFound = &apierr.Error{Kind: apierr.KindAuth, Err: errors.New("handshake ticket not found or expired")}
	// ErrNotAuthenticated means no access credential is stored.
	ErrNotAuthenticated = &apierr.Error{Kind: apierr.KindConfig, Err: errors.New("no stored access credential")}
	// ErrConsumerNotConfigured means the consumer key pair is missing.
	ErrConsumerNotConfigured = &apierr.Error{Kind: apierr.KindConfig, Err: errors.New("consumer key and secret are not configured")}
)

// State is the handshake state visible to callers.
type State string

const (
	StateUnauthenticated  State = "unauthenticated"
	StateAwaitingVerifier State = "awaiting_verifier"
	StateAuthenticated    State = "authenticated"
)

// TicketStore keeps request token secrets between the two handshake legs.
// It is the only record of a pending handshake.
type TicketStore interface {
	PutTicket(ctx context.Context, token, secret string, ttl time.Duration) error
	GetTicket(ctx context.Context, token string) (secret string, ok bool, err error)
	DeleteTicket(ctx context.Context, token string) error
	HasPendingTicket(ctx context.Context) (bool, error)
}

// CredentialStore persists the single access credential.
type CredentialStore interface {
	GetCredential(ctx context.Context) (*domain.Credential, error)
	SaveCredential(ctx context.Context, cred *domain.Credential) error
	DeleteCredential(ctx context.Context) error
}

// Doer executes one HTTP request.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Handshake is returned by StartHandshake; the user visits AuthorizeURL and
// comes back with a verifier.
type Handshake struct {
	Token        string    `json:"token"`
	AuthorizeURL string    `json:"authorizeUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Config holds the manager's endpoints and identity.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	AuthorizeURL   string
	UserAgent      string
}

func (c Config) configured() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// consumer builds the oauth1 configuration for the catalog endpoints. The
// callback is out of band: the user copies the verifier back by hand.
func (c Config) consumer() *oauth1.Config {
	base := strings.TrimRight(c.BaseURL, "/")
	return &oauth1.Config{
		ConsumerKey:    c.ConsumerKey,
		ConsumerSecret: c.ConsumerSecret,
		CallbackURL:    constants.OAuthCallbackOOB,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: base + constants.RequestTokenPath,
			AuthorizeURL:    c.AuthorizeURL,
			AccessTokenURL:  base + constants.AccessTokenPath,
		},
	}
}

// Manager owns the handshake state machine and the stored credential. All
// of its state lives in the ticket and credential stores, so any process
// sharing them sees the same handshake.
type Manager struct {
	cfg      Config
	consumer *oauth1.Config
	client   Doer
	tickets  TicketStore
	creds    CredentialStore
	policy   retry.Policy
	logger   *logger.Logger
	now      func() time.Time
}

// NewManager creates a credential manager. Token legs go through client, so
// they share its pacing and breaker with the rest of the catalog traffic.
func NewManager(cfg Config, client Doer, tickets TicketStore, creds CredentialStore, policy retry.Policy, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("oauth")
	if policy.Logger == nil {
		policy.Logger = log
	}
	return &Manager{
		cfg:      cfg,
		consumer: cfg.consumer(),
		client:   client,
		tickets:  tickets,
		creds:    creds,
		policy:   policy,
		logger:   log,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for ticket expiry and credential timestamps.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// State reports whether a credential is stored or a handshake is pending.
func (m *Manager) State(ctx context.Context) (State, error) {
	ok, err := m.HasCredential(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return StateAuthenticated, nil
	}

	pending, err := m.tickets.HasPendingTicket(ctx)
	if err != nil {
		return "", fmt.Errorf("load handshake tickets: %w", err)
	}
	if pending {
		return StateAwaitingVerifier, nil
	}
	return StateUnauthenticated, nil
}

// HasCredential reports whether an access credential is stored.
func (m *Manager) HasCredential(ctx context.Context) (bool, error) {
	cred, err := m.creds.GetCredential(ctx)
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}
	return cred != nil, nil
}

// StartHandshake obtains a request token and persists its secret for the
// ticket lifetime.
func (m *Manager) StartHandshake(ctx context.Context) (*Handshake, error) {
	if !m.cfg.configured() {
		return nil, ErrConsumerNotConfigured
	}

	type requestToken struct{ token, secret string }
	rt, err := retry.Do(ctx, m.policy, "request token", func(ctx context.Context) (requestToken, error) {
		token, secret, err := m.leg(ctx).RequestToken()
		if err != nil {
			return requestToken{}, m.legError(ctx, constants.RequestTokenPath, err)
		}
		return requestToken{token, secret}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("obtain request token: %w", err)
	}

	authorizeURL, err := m.consumer.AuthorizationURL(rt.token)
	if err != nil {
		return nil, apierr.New(apierr.KindConfig, constants.RequestTokenPath, fmt.Errorf("build authorize url: %w", err))
	}

	if err := m.tickets.PutTicket(ctx, rt.token, rt.secret, constants.HandshakeTicketTTL); err != nil {
		return nil, fmt.Errorf("store handshake ticket: %w", err)
	}

	expiresAt := m.now().Add(constants.HandshakeTicketTTL)
	m.logger.Info("Handshake started", "expires_at", expiresAt)

	return &Handshake{
		Token:        rt.token,
		AuthorizeURL: authorizeURL.String(),
		ExpiresAt:    expiresAt,
	}, nil
}

// CompleteHandshake exchanges the request token and verifier for an access
// credential. The verifier is single use, so ticket removal and credential
// storage run once after the exchange and are never retried with it.
func (m *Manager) CompleteHandshake(ctx context.Context, token, verifier string) (*domain.Credential, error) {
	if !m.cfg.configured() {
		return nil, ErrConsumerNotConfigured
	}

	secret, ok, err := m.tickets.GetTicket(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load handshake ticket: %w", err)
	}
	if !ok {
		return nil, ErrTicketNotFound
	}

	cred, err := retry.Do(ctx, m.policy, "access token", func(ctx context.Context) (*domain.Credential, error) {
		accessToken, accessSecret, err := m.leg(ctx).AccessToken(token, secret, verifier)
		if err != nil {
			return nil, m.legError(ctx, constants.AccessTokenPath, err)
		}
		return &domain.Credential{Token: accessToken, Secret: accessSecret}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange verifier: %w", err)
	}
	cred.CreatedAt = m.now().UTC()

	if err := m.tickets.DeleteTicket(ctx, token); err != nil {
		m.logger.Warn("Failed to delete handshake ticket", "error", err)
	}

	if err := m.creds.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	m.logger.Info("Handshake completed")
	return cred, nil
}

// Revoke forgets the stored credential.
func (m *Manager) Revoke(ctx context.Context) error {
	if err := m.creds.DeleteCredential(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	m.logger.Info("Credential revoked")
	return nil
}

// leg returns a copy of the consumer whose token requests run on ctx through
// the manager's client.
func (m *Manager) leg(ctx context.Context) *oauth1.Config {
	consumer := *m.consumer
	consumer.HTTPClient = &http.Client{Transport: &legTransport{ctx: ctx, client: m.client, userAgent: m.cfg.UserAgent}}
	return &consumer
}

// legError keeps classified transport errors as they are and marks anything
// else the token endpoint answered with (a missing token, an unconfirmed
// callback) as an auth failure.
func (m *Manager) legError(ctx context.Context, endpoint string, err error) error {
	if apierr.KindOf(err) != "" || ctx.Err() != nil {
		return err
	}
	return &apierr.Error{Kind: apierr.KindAuth, Endpoint: endpoint, Err: err}
}

// legTransport adapts the paced client to an http.RoundTripper for the
// oauth1 token calls. Non-2xx answers become classified errors so the retry
// engine can tell a rejected verifier from a flaky upstream.
type legTransport struct {
	ctx       context.Context
	client    Doer
	userAgent string
}

func (t *legTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(t.ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, apierr.Network(req.URL.Path, err)
	}
	if err := apierr.Classify(req.URL.Path, resp, body); err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

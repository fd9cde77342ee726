package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dghubble/oauth1"
)

// Transport signs catalog requests with the stored access credential. The
// credential is read per request, so a handshake or revoke takes effect on
// the next call. Requests that already carry an Authorization header (the
// token legs, signed by oauth1 itself) pass through untouched.
type Transport struct {
	consumer *oauth1.Config
	creds    CredentialStore
	base     http.RoundTripper
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(cfg Config, creds CredentialStore, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{consumer: cfg.consumer(), creds: creds, base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	if t.consumer.ConsumerKey == "" || t.consumer.ConsumerSecret == "" {
		return nil, ErrConsumerNotConfigured
	}
	cred, err := t.creds.GetCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return nil, ErrNotAuthenticated
	}

	signed := oauth1.NewClient(withBase(ctx, t.base), t.consumer, oauth1.NewToken(cred.Token, cred.Secret))
	return signed.Transport.RoundTrip(req)
}

// withBase hands base to oauth1, which sends the signed clone through it.
func withBase(ctx context.Context, base http.RoundTripper) context.Context {
	return context.WithValue(ctx, oauth1.HTTPClient, &http.Client{Transport: base})
}

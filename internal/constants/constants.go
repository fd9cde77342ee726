// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort              = "8080"
	DefaultDBPath            = "discogsdash.db"
	DefaultUserAgent         = "discogsdash/1.0 (+https://github.com/rtuszik/discogsdash)"
	DefaultAPIBaseURL        = "https://api.discogs.com"
	DefaultAuthorizeURL      = "https://www.discogs.com/oauth/authorize"
	DefaultPageSize          = 100
	DefaultRequestsPerMinute = 55
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultPriceCacheTTL     = 6 * time.Hour
)

// Retry defaults
const (
	DefaultRetryCount      = 3
	DefaultRetryBase       = 1 * time.Second
	DefaultRetryMax        = 30 * time.Second
	DefaultRetryMultiplier = 2.0
	DefaultRetryJitter     = 500 * time.Millisecond
	DefaultRateLimitBuffer = 1 * time.Second
)

// Circuit breaker
const (
	BreakerName             = "catalog-api"
	BreakerFailureThreshold = 5
	BreakerOpenTimeout      = 30 * time.Second
	BreakerHalfOpenRequests = 1
)

// OAuth handshake
const (
	HandshakeTicketTTL = 15 * time.Minute
	OAuthCallbackOOB   = "oob"
)

// Catalog API endpoints
const (
	RequestTokenPath     = "/oauth/request_token"
	AccessTokenPath      = "/oauth/access_token"
	CollectionPathFormat = "/users/%s/collection/folders/0/releases"
	CollectionValueFmt   = "/users/%s/collection/value"
	PriceSuggestionsFmt  = "/marketplace/price_suggestions/%d"
)

// Database
const (
	ItemsTable       = "collection_items"
	SnapshotsTable   = "value_snapshots"
	CacheTable       = "cache"
	CredentialsTable = "credentials"
)

// Collection note field ids used by the catalog API for the default custom fields.
const (
	NoteFieldMediaCondition = 1
	NoteFieldFreeText       = 3
)

// UI/UX
const (
	MaxListItems      = 500
	DefaultListLimit  = 100
	SyncTriggerPerMin = 6
)

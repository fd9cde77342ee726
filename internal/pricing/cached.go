package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rtuszik/discogsdash/internal/discogs"
	"github.com/rtuszik/discogsdash/internal/logger"
)

type Cache interface {
	GetCache(key string) ([]byte, error)
	SetCache(key string, data []byte, ttl time.Duration) error
}

// CachedSource keeps price suggestions in the expiring cache so a run that
// is retried shortly after a failure does not spend the request budget on
// releases it already priced. Lookup failures are never cached.
type CachedSource struct {
	source SuggestionSource
	cache  Cache
	ttl    time.Duration
	logger *logger.Logger
}

func NewCachedSource(source SuggestionSource, cache Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if log == nil {
		log = logger.Discard()
	}
	return &CachedSource{source: source, cache: cache, ttl: ttl, logger: log.WithComponent("price-cache")}
}

func (c *CachedSource) PriceSuggestions(ctx context.Context, releaseID int) (map[string]discogs.PriceSuggestion, error) {
	cacheKey := fmt.Sprintf("price:%d", releaseID)

	data, err := c.cache.GetCache(cacheKey)
	if err != nil {
		c.logger.Warn("Price cache read failed", "release_id", releaseID, "error", err)
	}
	if data != nil {
		var cached map[string]discogs.PriceSuggestion
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	suggestions, err := c.source.PriceSuggestions(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(suggestions); err == nil {
		if err := c.cache.SetCache(cacheKey, data, c.ttl); err != nil {
			c.logger.Warn("Price cache write failed", "release_id", releaseID, "error", err)
		}
	}
	return suggestions, nil
}

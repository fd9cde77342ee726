package discogs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/constants"
)

// PageHandler consumes one page body and returns the raw continuation
// reference, or "" when the listing is complete.
type PageHandler func(body []byte) (next string, err error)

// WalkPages fetches start and every page it links to, in order. An
// unparsable continuation reference ends the walk without failing it.
func (c *Client) WalkPages(ctx context.Context, start string, handle PageHandler) error {
	endpoint := start
	for page := 1; endpoint != ""; page++ {
		c.logger.Debug("Fetching page", "page", page, "endpoint", endpoint)
		body, err := c.Request(ctx, endpoint, RequestOptions{Op: "fetch page"})
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}

		next, err := handle(body)
		if err != nil {
			return fmt.Errorf("decode page %d: %w", page, err)
		}
		if next == "" {
			return nil
		}

		endpoint, err = NormalizeNext(next)
		if err != nil {
			c.logger.Warn("Unparsable continuation reference, stopping pagination", "page", page, "next", next, "error", err)
			return nil
		}
		c.logger.Debug("Following continuation reference", "page", page, "next", endpoint)
	}
	return nil
}

// NormalizeNext reduces a continuation reference to its path and query.
// Only absolute URLs and rooted paths are followed; relative or opaque
// references are rejected.
func NormalizeNext(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", err
	}
	if u.Opaque != "" {
		return "", errors.New("continuation reference is opaque")
	}
	if u.Path == "" {
		return "", errors.New("continuation reference has no path")
	}
	if !strings.HasPrefix(u.Path, "/") {
		return "", errors.New("continuation reference is not a rooted path")
	}
	return u.RequestURI(), nil
}

// FetchCollection returns every release in the user's collection across all
// pages, preserving the API's ordering.
func (c *Client) FetchCollection(ctx context.Context, username string) ([]Release, error) {
	if username == "" {
		return nil, apierr.New(apierr.KindConfig, "", errors.New("username is required"))
	}

	start := fmt.Sprintf(constants.CollectionPathFormat, url.PathEscape(username))
	if c.pageSize > 0 {
		start += "?per_page=" + strconv.Itoa(c.pageSize)
	}

	var releases []Release
	err := c.WalkPages(ctx, start, func(body []byte) (string, error) {
		if body == nil {
			return "", nil
		}
		var page CollectionPage
		if err := json.Unmarshal(body, &page); err != nil {
			return "", err
		}
		releases = append(releases, page.Releases...)
		c.logger.Info("Fetched collection page",
			"page", page.Pagination.Page,
			"pages", page.Pagination.Pages,
			"items", len(page.Releases),
		)
		return page.Pagination.URLs.Next, nil
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

// CollectionValue returns the aggregate value of the user's collection.
func (c *Client) CollectionValue(ctx context.Context, username string) (*CollectionValue, error) {
	endpoint := fmt.Sprintf(constants.CollectionValueFmt, url.PathEscape(username))
	body, err := c.Request(ctx, endpoint, RequestOptions{Op: "collection value"})
	if err != nil {
		return nil, err
	}
	var v CollectionValue
	if body == nil {
		return &v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode collection value: %w", err)
	}
	return &v, nil
}

// PriceSuggestions returns suggested prices keyed by condition grade. A
// not-found response means the release has no data and yields an empty map.
func (c *Client) PriceSuggestions(ctx context.Context, releaseID int) (map[string]PriceSuggestion, error) {
	endpoint := fmt.Sprintf(constants.PriceSuggestionsFmt, releaseID)
	body, err := c.Request(ctx, endpoint, RequestOptions{Op: "price suggestions"})
	if err != nil {
		if apierr.IsNotFound(err) {
			return map[string]PriceSuggestion{}, nil
		}
		return nil, err
	}

	out := map[string]PriceSuggestion{}
	if body == nil {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode price suggestions: %w", err)
	}
	return out, nil
}

// Package pricing turns condition graded price suggestions and formatted
// currency strings into numbers.
package pricing

import (
	"context"

	"github.com/rtuszik/discogsdash/internal/discogs"
)

// DefaultConditionPriority lists condition grades from most to least preferred.
var DefaultConditionPriority = []string{
	"Mint (M)",
	"Near Mint (NM or M-)",
	"Very Good Plus (VG+)",
	"Very Good (VG)",
	"Good Plus (G+)",
	"Good (G)",
	"Fair (F)",
	"Poor (P)",
}

// SuggestionSource looks up price suggestions for a release.
type SuggestionSource interface {
	PriceSuggestions(ctx context.Context, releaseID int) (map[string]discogs.PriceSuggestion, error)
}

// SelectValue returns the value of the first grade in priority present in
// suggestions, or nil when none is.
func SelectValue(suggestions map[string]discogs.PriceSuggestion, priority []string) *float64 {
	for _, grade := range priority {
		if s, ok := suggestions[grade]; ok {
			v := s.Value
			return &v
		}
	}
	return nil
}

// Resolver resolves a single suggested value per release.
type Resolver struct {
	source   SuggestionSource
	priority []string
}

// NewResolver creates a resolver. An empty priority uses DefaultConditionPriority.
func NewResolver(source SuggestionSource, priority []string) *Resolver {
	if len(priority) == 0 {
		priority = DefaultConditionPriority
	}
	return &Resolver{source: source, priority: priority}
}

// Resolve returns the preferred suggested value, nil if there is no data.
// Transport errors are returned for the caller to degrade.
func (r *Resolver) Resolve(ctx context.Context, releaseID int) (*float64, error) {
	suggestions, err := r.source.PriceSuggestions(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	return SelectValue(suggestions, r.priority), nil
}

package fetcher

import (
	"context"

	"pricewatch/internal/quote"
)

// QuoteFetcher retrieves one current price observation from a provider.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context) (quote.Observation, error)
}

// FetchFunc adapts a function to QuoteFetcher.
type FetchFunc func(ctx context.Context) (quote.Observation, error)

// FetchQuote calls f.
func (f FetchFunc) FetchQuote(ctx context.Context) (quote.Observation, error) {
	return f(ctx)
}

package flow

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyPages is returned when an upstream keeps handing out continuation
// tokens past the page ceiling.
var ErrTooManyPages = errors.New("pagination exceeded page ceiling")

const (
	defaultPageDelay = 500 * time.Millisecond
	defaultMaxPages  = 50
)

// Page is one slice of a paginated result set. An empty NextToken ends the
// fetch.
type Page[T any] struct {
	Items     []T
	NextToken string
}

// FetchOptions tunes FetchAll. Zero values take the defaults (500ms between
// pages, 50 pages).
type FetchOptions struct {
	PageDelay time.Duration
	MaxPages  int
}

// FetchAll drains a paginated upstream, concatenating items in page order.
// A fixed delay is inserted between successive fetches to respect upstream
// rate limits; there is no delay before the first. Any fetch error aborts the
// whole accumulation with no partial results.
func FetchAll[T any](ctx context.Context, fetch func(ctx context.Context, token string) (Page[T], error), opts FetchOptions) ([]T, error) {
	delay := opts.PageDelay
	if delay <= 0 {
		delay = defaultPageDelay
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var items []T
	token := ""
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, ErrTooManyPages
		}
		if page > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if result.NextToken == "" {
			return items, nil
		}
		token = result.NextToken
	}
}

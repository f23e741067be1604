package tasks

import (
	"context"

	"golang.org/x/time/rate"
)

// PageFetcher fetches one offset-addressed page of at most limit items.
type PageFetcher[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// CursorFetcher fetches one cursor-addressed page of at most limit items.
// An empty cursor requests the first page.
type CursorFetcher[T any] func(ctx context.Context, limit int, after string) ([]T, error)

// Paginate exhausts an offset-paginated endpoint, concatenating every page
// in order.
//
// Fetching starts at offset 0 and steps by limit until a page comes back
// shorter than limit. A page of exactly limit items triggers one more fetch,
// which may return an empty page. No upper bound on the offset is enforced;
// a misbehaving endpoint that always returns full pages would loop forever.
func Paginate[T any](ctx context.Context, limiter *rate.Limiter, limit int, fetch PageFetcher[T]) ([]T, error) {
	var items []T

	for offset := 0; ; offset += limit {
		if err := waitLimiter(ctx, limiter); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, limit, offset)
		if err != nil {
			return nil, err
		}

		items = append(items, page...)
		if len(page) < limit {
			break
		}
	}

	return items, nil
}

// PaginateCursor exhausts a cursor-paginated endpoint.
//
// Same termination rule as [Paginate] (a short page ends the loop), but the
// continuation token is derived from the last item of the most recent page
// rather than a numeric offset.
func PaginateCursor[T any](ctx context.Context, limiter *rate.Limiter, limit int, fetch CursorFetcher[T], cursor func(T) string) ([]T, error) {
	var items []T
	after := ""

	for {
		if err := waitLimiter(ctx, limiter); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, limit, after)
		if err != nil {
			return nil, err
		}

		items = append(items, page...)
		if len(page) < limit {
			break
		}
		after = cursor(page[len(page)-1])
	}

	return items, nil
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

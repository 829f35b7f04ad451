package fetcher

import (
	"context"

	"github.com/foofork/riptide/pkg/failure"
	"github.com/foofork/riptide/pkg/retry"
)

// Fetcher is the contract Spider depends on so it can be driven against
// a fake in tests without standing up an httptest.Server. HtmlFetcher is
// the only production implementation.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

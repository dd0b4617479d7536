package fetcher

import (
	"context"
	"net/http"

	"github.com/llmstxt-forge/forge/pkg/failure"
	"github.com/llmstxt-forge/forge/pkg/retry"
)

type Fetcher interface {
	Init(httpClient *http.Client)
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

package harvest

import (
	"context"
	"time"
)

// WaitPolicy tells the fetcher how long to let a page settle before the
// DOM is read.
type WaitPolicy string

// Supported wait policies.
const (
	// WaitContentLoaded returns as soon as the document body is ready.
	WaitContentLoaded WaitPolicy = "content-loaded"
	// WaitNetworkIdle additionally waits for in-flight requests to drain,
	// needed by sites that hydrate listings from XHR calls.
	WaitNetworkIdle WaitPolicy = "network-idle"
)

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL     string
	Wait    WaitPolicy
	Timeout time.Duration
	// ClickSelector optionally names a "load more" control to activate
	// before the DOM is read; ClickTimes is how many times to do so.
	// Only headless fetchers honor it.
	ClickSelector string
	ClickTimes    int
	// ForceHeadless bypasses the cheap static probe for sites known to
	// require JS rendering.
	ForceHeadless bool
}

// FetchResponse is the rendered result returned by a Fetcher.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL          string
	StatusCode   int
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher fetches a URL and returns the rendered HTML plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Package discover walks a site's listing pages and collects detail-page
// URLs. It understands three pagination styles (next link, load-more
// button, numeric page parameter) and stops on its own when a site stops
// yielding anything new.
package discover

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/site"
)

// noNewPageLimit ends a branch after this many consecutive pages that
// produced zero previously unseen links. Load-more sites re-render the
// whole list every round, so one stale page is not yet a stop signal.
const noNewPageLimit = 3

// Config bounds a discovery pass.
type Config struct {
	// MaxPages caps listing pages fetched per pagination branch.
	MaxPages int
}

// Discoverer collects candidate detail URLs for one site.
type Discoverer struct {
	site    site.Descriptor
	fetcher harvest.Fetcher
	retry   *harvest.FixedRetryPolicy
	pauser  harvest.Pauser
	cfg     Config
	logger  *zap.Logger
}

// New builds a Discoverer.
func New(descriptor site.Descriptor, fetcher harvest.Fetcher, retry *harvest.FixedRetryPolicy, pauser harvest.Pauser, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &Discoverer{
		site:    descriptor,
		fetcher: fetcher,
		retry:   retry,
		pauser:  pauser,
		cfg:     cfg,
		logger:  logger,
	}
}

// Discover returns the normalized detail URLs found across every start
// URL and pagination branch, minus anything in known. Order follows
// discovery order. A branch that keeps failing after retries is logged
// and abandoned; the remaining branches still run.
func (d *Discoverer) Discover(ctx context.Context, known map[string]struct{}) ([]string, error) {
	seen := harvest.NewSeenSet()
	var found []string

	branches, err := d.branchRoots(ctx)
	if err != nil {
		return nil, err
	}

	for _, root := range branches {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		links, err := d.walkBranch(ctx, root, known, seen)
		if err != nil {
			d.logger.Warn("abandoning listing branch",
				zap.String("site", d.site.Name), zap.String("root", root), zap.Error(err))
			continue
		}
		found = append(found, links...)
	}

	d.logger.Info("discovery finished",
		zap.String("site", d.site.Name),
		zap.Int("branches", len(branches)),
		zap.Int("new_links", len(found)))
	return found, nil
}

// branchRoots expands the start URLs into pagination branches. Sites with
// a category index fan the first start URL out into one branch per
// category link.
func (d *Discoverer) branchRoots(ctx context.Context) ([]string, error) {
	if d.site.CategoryLinks == "" {
		return d.site.StartURLs, nil
	}

	doc, err := d.fetchListing(ctx, d.site.StartURLs[0])
	if err != nil {
		return nil, fmt.Errorf("category index %s: %w", d.site.StartURLs[0], err)
	}
	var roots []string
	rootSeen := harvest.NewSeenSet()
	doc.Find(d.site.CategoryLinks).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs, err := harvest.Absolutize(d.site.BaseURL, href)
		if err != nil {
			return
		}
		if rootSeen.MarkIfNew(abs) {
			roots = append(roots, abs)
		}
	})
	if len(roots) == 0 {
		// No category index present; fall back to the start URLs.
		return d.site.StartURLs, nil
	}
	d.logger.Debug("category fan-out",
		zap.String("site", d.site.Name), zap.Int("categories", len(roots)))
	return roots, nil
}

func (d *Discoverer) walkBranch(ctx context.Context, root string, known map[string]struct{}, seen *harvest.SeenSet) ([]string, error) {
	switch d.site.Pagination {
	case site.PaginateLoadMore:
		return d.walkLoadMore(ctx, root, known, seen)
	case site.PaginatePageParam:
		return d.walkPageParam(ctx, root, known, seen)
	default:
		return d.walkNextLinks(ctx, root, known, seen)
	}
}

// walkNextLinks follows an explicit "next page" anchor until it vanishes.
func (d *Discoverer) walkNextLinks(ctx context.Context, root string, known map[string]struct{}, seen *harvest.SeenSet) ([]string, error) {
	var (
		found    []string
		pageURL  = root
		staleRun = 0
	)
	for page := 1; page <= d.cfg.MaxPages; page++ {
		doc, err := d.fetchListing(ctx, pageURL)
		if err != nil {
			return found, err
		}
		fresh, matched := d.collectLinks(doc, known, seen)
		found = append(found, fresh...)
		if matched == 0 {
			break
		}

		staleRun = nextStaleRun(staleRun, len(fresh))
		if staleRun >= noNewPageLimit {
			break
		}

		next, ok := doc.Find(d.site.NextSelector).First().Attr("href")
		if !ok {
			break
		}
		nextURL, err := harvest.Absolutize(pageURL, next)
		if err != nil || nextURL == pageURL {
			break
		}
		pageURL = nextURL
		d.pauser.Pause(ctx, d.site.Delay)
	}
	return found, nil
}

// walkLoadMore re-renders the same URL with an increasing number of
// "load more" clicks, diffing the link set each round.
func (d *Discoverer) walkLoadMore(ctx context.Context, root string, known map[string]struct{}, seen *harvest.SeenSet) ([]string, error) {
	var (
		found    []string
		staleRun = 0
	)
	for clicks := 0; clicks < d.cfg.MaxPages; clicks++ {
		doc, err := d.fetchListingClicked(ctx, root, clicks)
		if err != nil {
			return found, err
		}
		fresh, matched := d.collectLinks(doc, known, seen)
		found = append(found, fresh...)
		if matched == 0 {
			break
		}

		staleRun = nextStaleRun(staleRun, len(fresh))
		if staleRun >= noNewPageLimit {
			break
		}
		d.pauser.Pause(ctx, d.site.Delay)
	}
	return found, nil
}

// walkPageParam increments a numeric query parameter until pages go stale.
func (d *Discoverer) walkPageParam(ctx context.Context, root string, known map[string]struct{}, seen *harvest.SeenSet) ([]string, error) {
	var (
		found    []string
		staleRun = 0
	)
	for page := 1; page <= d.cfg.MaxPages; page++ {
		pageURL, err := harvest.WithPageParam(root, d.site.PageParam, page)
		if err != nil {
			return found, err
		}
		doc, err := d.fetchListing(ctx, pageURL)
		if err != nil {
			return found, err
		}
		fresh, matched := d.collectLinks(doc, known, seen)
		found = append(found, fresh...)
		if matched == 0 {
			break
		}

		staleRun = nextStaleRun(staleRun, len(fresh))
		if staleRun >= noNewPageLimit {
			break
		}
		d.pauser.Pause(ctx, d.site.Delay)
	}
	return found, nil
}

// collectLinks pulls matching detail links out of a listing document,
// skipping anything already stored or already seen this run. matched
// counts detail links before dedup: a page with zero matched links is
// past the end of pagination, while a page of purely known links is not.
func (d *Discoverer) collectLinks(doc *goquery.Document, known map[string]struct{}, seen *harvest.SeenSet) (fresh []string, matched int) {
	doc.Find(d.site.LinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs, err := harvest.Absolutize(d.site.BaseURL, href)
		if err != nil {
			return
		}
		if !d.site.MatchesLink(abs) {
			return
		}
		matched++
		normalized, err := harvest.NormalizeURL(abs)
		if err != nil {
			return
		}
		if _, stored := known[normalized]; stored {
			return
		}
		if seen.MarkIfNew(normalized) {
			fresh = append(fresh, normalized)
		}
	})
	return fresh, matched
}

func (d *Discoverer) fetchListing(ctx context.Context, url string) (*goquery.Document, error) {
	return d.fetchListingClicked(ctx, url, 0)
}

func (d *Discoverer) fetchListingClicked(ctx context.Context, url string, clicks int) (*goquery.Document, error) {
	var response harvest.FetchResponse
	err := d.retry.Do(ctx, func() error {
		var fetchErr error
		request := harvest.FetchRequest{
			URL:           url,
			Wait:          d.site.Wait,
			ForceHeadless: d.site.ForceHeadless,
		}
		if clicks > 0 {
			request.ClickSelector = d.site.NextSelector
			request.ClickTimes = clicks
		}
		response, fetchErr = d.fetcher.Fetch(ctx, request)
		if fetchErr != nil {
			return fetchErr
		}
		if response.StatusCode >= 400 {
			return fmt.Errorf("listing %s: status %d", url, response.StatusCode)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(response.Body))
}

// nextStaleRun advances the consecutive-stale-pages counter.
func nextStaleRun(run, freshCount int) int {
	if freshCount > 0 {
		return 0
	}
	return run + 1
}

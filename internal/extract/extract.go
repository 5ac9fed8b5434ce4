package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/ai"
	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/site"
)

// AI is the slice of the model adapter the extractor needs. A nil AI
// simply skips the third tier.
type AI interface {
	Extract(ctx context.Context, input ai.Input) (ai.Extraction, error)
}

// Extractor runs the tiered extraction for one site.
type Extractor struct {
	site    site.Descriptor
	fetcher harvest.Fetcher
	ai      AI
	clock   harvest.Clock
	logger  *zap.Logger
}

// New builds an Extractor. aiClient may be nil when the site's markup is
// rich enough on its own.
func New(descriptor site.Descriptor, fetcher harvest.Fetcher, aiClient AI, clock harvest.Clock, logger *zap.Logger) *Extractor {
	return &Extractor{
		site:    descriptor,
		fetcher: fetcher,
		ai:      aiClient,
		clock:   clock,
		logger:  logger,
	}
}

// Extract fetches one detail page and assembles a JobRecord from the
// structured-data, markup and AI tiers, cheapest first. Expired postings
// are skipped before the AI tier ever runs.
func (e *Extractor) Extract(ctx context.Context, url string, known harvest.Vocabulary) harvest.Result {
	response, err := e.fetcher.Fetch(ctx, harvest.FetchRequest{
		URL:           url,
		Wait:          e.site.Wait,
		ForceHeadless: e.site.ForceHeadless,
	})
	if err != nil {
		return harvest.Result{Skip: harvest.SkipFetchError, Note: err.Error()}
	}
	if response.StatusCode >= 400 {
		return harvest.Result{
			Skip: harvest.SkipFetchError,
			Note: fmt.Sprintf("status %d", response.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(response.Body))
	if err != nil {
		return harvest.Result{Skip: harvest.SkipFetchError, Note: err.Error(), RawHTML: response.Body}
	}

	record, _ := fromStructuredData(doc)
	record = harvest.Merge(record, fromMarkup(doc, e.site.Markup))

	pageText := doc.Text()
	if marker, ok := e.expiryMarker(pageText); ok {
		return harvest.Result{
			Skip:    harvest.SkipExpired,
			Note:    fmt.Sprintf("marker %q", marker),
			Record:  record,
			RawHTML: response.Body,
		}
	}
	if e.dateExpired(record.Expires) {
		return harvest.Result{
			Skip:    harvest.SkipExpired,
			Note:    fmt.Sprintf("deadline %s passed", record.Expires),
			Record:  record,
			RawHTML: response.Body,
		}
	}

	if e.ai != nil && !record.Complete() {
		extraction, err := e.ai.Extract(ctx, ai.Input{
			URL:   url,
			Site:  e.site.PromptLabel,
			Body:  normalizeWhitespace(pageText),
			Known: known,
		})
		if err != nil {
			// The rule tiers keep whatever they found; the model is
			// best-effort enrichment.
			e.logger.Warn("ai extraction failed", zap.String("url", url), zap.Error(err))
		} else {
			if extraction.Expired || e.dateExpired(extraction.Record.Expires) {
				return harvest.Result{
					Skip:    harvest.SkipExpired,
					Note:    "reported expired by model",
					Record:  harvest.Merge(record, extraction.Record),
					RawHTML: response.Body,
				}
			}
			record = harvest.Merge(record, extraction.Record)
		}
	}

	if normalized, err := harvest.NormalizeURL(url); err == nil {
		record.SourceURL = normalized
	} else {
		record.SourceURL = url
	}
	if record.Empty() {
		return harvest.Result{Skip: harvest.SkipEmpty, RawHTML: response.Body}
	}
	return harvest.Result{Record: record, RawHTML: response.Body}
}

func (e *Extractor) expiryMarker(pageText string) (string, bool) {
	lower := strings.ToLower(pageText)
	for _, marker := range e.site.ExpiryMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

// dateExpired reports whether a deadline lies strictly in the past. A
// value that does not parse keeps the posting alive; only a date we can
// actually read may retire it.
func (e *Extractor) dateExpired(expires string) bool {
	deadline, ok := harvest.ParseDate(expires)
	if !ok {
		return false
	}
	return harvest.BeforeToday(deadline, e.clock.Now())
}

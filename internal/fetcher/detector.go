// Package fetcher composes the static and headless fetchers. Static HTTP is
// tried first; responses that look like unrendered JavaScript shells are
// promoted to the headless browser.
package fetcher

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector decides whether a static response needs JavaScript rendering.
type Detector interface {
	NeedsJS(body []byte) bool
}

// HeuristicDetector flags suspiciously small bodies, known app-shell
// keywords, and documents with no anchors at all.
type HeuristicDetector struct {
	minBytes int
	keywords []string
}

// NewHeuristicDetector builds a detector. Zero minBytes and nil keywords
// fall back to sensible defaults.
func NewHeuristicDetector(minBytes int, keywords []string) *HeuristicDetector {
	if minBytes <= 0 {
		minBytes = 2048
	}
	if len(keywords) == 0 {
		keywords = []string{
			"enable javascript",
			"javascript is required",
			"loading...",
			"cf-browser-verification",
		}
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &HeuristicDetector{minBytes: minBytes, keywords: lowered}
}

func (d *HeuristicDetector) NeedsJS(body []byte) bool {
	if len(body) < d.minBytes {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	// A listing page with zero links is a shell waiting on scripts.
	return doc.Find("a").Length() == 0
}

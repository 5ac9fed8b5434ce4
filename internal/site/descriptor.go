// Package site describes the per-site knobs that parameterize the one
// generic harvesting pipeline: where listings start, how pagination
// advances, which markup rules pull fields out of a detail page, and how
// the AI prompt should be framed.
package site

import (
	"regexp"
	"time"

	"github.com/mozjobs/harvester/internal/harvest"
)

// Pagination names the strategy a site uses to expose further listings.
type Pagination string

// Supported pagination strategies.
const (
	// PaginateNextLink follows an explicit "next page" anchor.
	PaginateNextLink Pagination = "next-link"
	// PaginateLoadMore re-renders the same URL clicking a "load more"
	// control an increasing number of times.
	PaginateLoadMore Pagination = "load-more"
	// PaginatePageParam increments a numeric query parameter.
	PaginatePageParam Pagination = "page-param"
)

// SidebarRule maps labelled key/value pairs (sidebar spans, list-group
// items) onto record fields. For each element matching LabelSelector whose
// text contains a label, the value is taken from a ValueSelector child or,
// failing that, from the immediately following sibling.
type SidebarRule struct {
	LabelSelector string
	ValueSelector string
	Labels        map[string]harvest.Field
}

// SectionRule maps a heading (e.g. "Requisitos", "QUALIFICATIONS") onto a
// field filled with the flattened text of the content that follows it, in
// document order, until the next recognized heading.
type SectionRule struct {
	Headings []string
	Field    harvest.Field
}

// MarkupRules is the tier-2 rule table for a site. Empty selectors simply
// contribute nothing; a miss is never an error.
type MarkupRules struct {
	// Direct CSS selectors whose first match's text fills the field.
	Title       string
	Company     string
	Location    string
	Category    string
	Description string
	// SectionContainer scopes section scanning to one content block.
	SectionContainer string
	Sidebar          SidebarRule
	Sections         []SectionRule
}

// Descriptor is everything site-specific the pipeline needs.
type Descriptor struct {
	Name      string
	BaseURL   string
	StartURLs []string

	// CategoryLinks optionally fans the first start URL out into one
	// pagination branch per category.
	CategoryLinks string

	// LinkSelector narrows which anchors are considered; LinkPattern
	// must match the (absolutized) href of a detail page.
	LinkSelector string
	LinkPattern  *regexp.Regexp

	Pagination   Pagination
	NextSelector string
	PageParam    string

	Wait          harvest.WaitPolicy
	ForceHeadless bool
	// AIRequired marks sites whose pages cannot be extracted by rules
	// alone; running without an AI credential would only waste network
	// budget, so the run aborts up front.
	AIRequired bool

	// Delay overrides the configured politeness delay when positive.
	Delay time.Duration

	// ExpiryMarkers are lowercase strings whose presence in the page
	// marks the posting as expired.
	ExpiryMarkers []string

	Markup MarkupRules

	// PromptLabel names the site in the AI prompt ("a job posting page
	// from ...").
	PromptLabel string
}

// MatchesLink reports whether href points at a detail page of this site.
func (d Descriptor) MatchesLink(href string) bool {
	if d.LinkPattern == nil {
		return false
	}
	return d.LinkPattern.MatchString(href)
}

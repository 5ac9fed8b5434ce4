// Package harvest defines core types shared across the harvesting pipeline.
package harvest

import (
	"time"
)

// JobRecord is one normalized job posting. Every field is always present;
// a missing value is the empty string, never an absent key, so downstream
// consumers can rely on the full field set.
type JobRecord struct {
	Title        string `json:"job_title"`
	Company      string `json:"company_name"`
	Location     string `json:"location"`
	Category     string `json:"category"`
	Published    string `json:"publication_date"`
	Expires      string `json:"expiring_date"`
	Description  string `json:"job_description"`
	Tasks        string `json:"tasks_of_the_role"`
	Requirements string `json:"requirements"`
	SourceURL    string `json:"source_url"`
}

// Field names a single JobRecord content field.
type Field string

// Content fields addressable by extraction rules. SourceURL is deliberately
// not listed: it is only ever set from the crawl target, never from content.
const (
	FieldTitle        Field = "job_title"
	FieldCompany      Field = "company_name"
	FieldLocation     Field = "location"
	FieldCategory     Field = "category"
	FieldPublished    Field = "publication_date"
	FieldExpires      Field = "expiring_date"
	FieldDescription  Field = "job_description"
	FieldTasks        Field = "tasks_of_the_role"
	FieldRequirements Field = "requirements"
)

// ContentFields lists every addressable field in a stable order.
var ContentFields = []Field{
	FieldTitle,
	FieldCompany,
	FieldLocation,
	FieldCategory,
	FieldPublished,
	FieldExpires,
	FieldDescription,
	FieldTasks,
	FieldRequirements,
}

// Get returns the value of the named content field.
func (r JobRecord) Get(f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldCompany:
		return r.Company
	case FieldLocation:
		return r.Location
	case FieldCategory:
		return r.Category
	case FieldPublished:
		return r.Published
	case FieldExpires:
		return r.Expires
	case FieldDescription:
		return r.Description
	case FieldTasks:
		return r.Tasks
	case FieldRequirements:
		return r.Requirements
	}
	return ""
}

// Set assigns the named content field.
func (r *JobRecord) Set(f Field, value string) {
	switch f {
	case FieldTitle:
		r.Title = value
	case FieldCompany:
		r.Company = value
	case FieldLocation:
		r.Location = value
	case FieldCategory:
		r.Category = value
	case FieldPublished:
		r.Published = value
	case FieldExpires:
		r.Expires = value
	case FieldDescription:
		r.Description = value
	case FieldTasks:
		r.Tasks = value
	case FieldRequirements:
		r.Requirements = value
	}
}

// Empty reports whether every content field is blank.
func (r JobRecord) Empty() bool {
	for _, f := range ContentFields {
		if r.Get(f) != "" {
			return false
		}
	}
	return true
}

// Complete reports whether every content field is populated.
func (r JobRecord) Complete() bool {
	for _, f := range ContentFields {
		if r.Get(f) == "" {
			return false
		}
	}
	return true
}

// Merge overlays incoming onto existing, field by field, first writer wins:
// a field already populated in existing is never overwritten. This is the
// tier-merge primitive; applied left-to-right across extraction tiers it
// guarantees a lower-trust tier cannot degrade higher-trust data.
func Merge(existing, incoming JobRecord) JobRecord {
	merged := existing
	for _, f := range ContentFields {
		if merged.Get(f) == "" {
			merged.Set(f, incoming.Get(f))
		}
	}
	if merged.SourceURL == "" {
		merged.SourceURL = incoming.SourceURL
	}
	return merged
}

// SkipReason classifies why a detail page produced no record.
type SkipReason string

// Skip reasons reported by the detail extractor.
const (
	SkipExpired    SkipReason = "expired"
	SkipFetchError SkipReason = "fetch_error"
	SkipEmpty      SkipReason = "empty"
)

// Result is the outcome of extracting one detail page: either a JobRecord
// or a skip with a reason. Ordinary site-content variation never surfaces
// as an error.
type Result struct {
	Record JobRecord
	Skip   SkipReason
	// Note carries low-volume operator context (e.g. the fetch error text).
	Note string
	// RawHTML holds the fetched page body when extraction came up empty,
	// so the caller can snapshot it for manual processing.
	RawHTML []byte
}

// Skipped reports whether the result carries no record.
func (r Result) Skipped() bool {
	return r.Skip != ""
}

// Vocabulary holds the previously observed values for the two categorical
// fields. It is handed to the AI adapter to bias free-text extraction
// toward consistent labels instead of near-duplicate inventions.
type Vocabulary struct {
	Categories []string
	Locations  []string
}

// Clock returns the current time (useful for testing expiry decisions).
type Clock interface {
	Now() time.Time
}

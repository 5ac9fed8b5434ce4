// Package extract turns a fetched detail page into a JobRecord through
// three tiers: embedded JSON-LD, site markup rules, and finally the AI
// adapter for whatever is still missing.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mozjobs/harvester/internal/harvest"
)

// fromStructuredData pulls a JobPosting out of the page's JSON-LD blocks,
// if any. The first JobPosting found wins.
func fromStructuredData(doc *goquery.Document) (harvest.JobRecord, bool) {
	var (
		record harvest.JobRecord
		found  bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload interface{}
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		if posting, ok := findJobPosting(payload); ok {
			record = mapJobPosting(posting)
			found = true
			return false
		}
		return true
	})
	return record, found
}

// findJobPosting walks a decoded JSON-LD value looking for a JobPosting
// node. Publishers wrap these in arrays and @graph containers freely.
func findJobPosting(v interface{}) (map[string]interface{}, bool) {
	switch node := v.(type) {
	case map[string]interface{}:
		if t, _ := node["@type"].(string); strings.EqualFold(t, "JobPosting") {
			return node, true
		}
		if graph, ok := node["@graph"]; ok {
			return findJobPosting(graph)
		}
	case []interface{}:
		for _, item := range node {
			if posting, ok := findJobPosting(item); ok {
				return posting, true
			}
		}
	}
	return nil, false
}

func mapJobPosting(node map[string]interface{}) harvest.JobRecord {
	record := harvest.JobRecord{
		Title:       nodeString(node["title"]),
		Company:     organizationName(node["hiringOrganization"]),
		Location:    locationName(node["jobLocation"]),
		Category:    nodeString(node["occupationalCategory"]),
		Published:   trimDateTime(nodeString(node["datePosted"])),
		Expires:     trimDateTime(nodeString(node["validThrough"])),
		Description: flattenHTML(nodeString(node["description"])),
	}
	return record
}

// nodeString coerces the loose shapes JSON-LD values come in: plain
// strings, arrays of strings, or {"@value": ...} wrappers.
func nodeString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case []interface{}:
		for _, item := range value {
			if s := nodeString(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		return nodeString(value["@value"])
	}
	return ""
}

func organizationName(v interface{}) string {
	if node, ok := v.(map[string]interface{}); ok {
		return nodeString(node["name"])
	}
	return nodeString(v)
}

func locationName(v interface{}) string {
	switch node := v.(type) {
	case map[string]interface{}:
		if address, ok := node["address"].(map[string]interface{}); ok {
			if s := nodeString(address["addressLocality"]); s != "" {
				return s
			}
			if s := nodeString(address["addressRegion"]); s != "" {
				return s
			}
		}
		return nodeString(node["name"])
	case []interface{}:
		for _, item := range node {
			if s := locationName(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// trimDateTime drops the time component of an ISO timestamp, keeping the
// date the page published.
func trimDateTime(s string) string {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}

// flattenHTML renders the embedded HTML many publishers put in the
// description field down to plain text.
func flattenHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(s)))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return normalizeWhitespace(doc.Text())
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

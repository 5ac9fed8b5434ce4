package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/site"
)

// fromMarkup applies a site's rule table to the document. Missing
// selectors contribute nothing; this tier never fails.
func fromMarkup(doc *goquery.Document, rules site.MarkupRules) harvest.JobRecord {
	var record harvest.JobRecord

	direct := map[harvest.Field]string{
		harvest.FieldTitle:       rules.Title,
		harvest.FieldCompany:     rules.Company,
		harvest.FieldLocation:    rules.Location,
		harvest.FieldCategory:    rules.Category,
		harvest.FieldDescription: rules.Description,
	}
	for field, selector := range direct {
		if selector == "" {
			continue
		}
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			record.Set(field, text)
		}
	}

	applySidebar(doc, rules.Sidebar, &record)
	applySections(doc, rules, &record)
	return record
}

// applySidebar walks labelled key/value elements. The value comes from a
// ValueSelector match inside or right after the label element, falling
// back to the next sibling's text.
func applySidebar(doc *goquery.Document, rule site.SidebarRule, record *harvest.JobRecord) {
	if rule.LabelSelector == "" || len(rule.Labels) == 0 {
		return
	}
	doc.Find(rule.LabelSelector).Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		if text == "" {
			return
		}
		for label, field := range rule.Labels {
			if !containsFold(text, label) {
				continue
			}
			value := sidebarValue(el, rule.ValueSelector)
			if value == "" {
				// The label element may hold "Label: value" inline.
				value = strings.TrimSpace(trimAfterFold(text, label))
			}
			if value != "" && record.Get(field) == "" {
				record.Set(field, value)
			}
			return
		}
	})
}

func sidebarValue(el *goquery.Selection, valueSelector string) string {
	if valueSelector != "" {
		if v := strings.TrimSpace(el.Find(valueSelector).First().Text()); v != "" {
			return v
		}
		if v := strings.TrimSpace(el.NextFiltered(valueSelector).Text()); v != "" {
			return v
		}
	}
	return strings.TrimSpace(el.Next().Text())
}

// applySections scans the content block for recognized headings and
// assigns the flattened text between one heading and the next.
func applySections(doc *goquery.Document, rules site.MarkupRules, record *harvest.JobRecord) {
	if len(rules.Sections) == 0 {
		return
	}
	container := doc.Find("body").First()
	if rules.SectionContainer != "" {
		container = doc.Find(rules.SectionContainer).First()
	}
	if container.Length() == 0 {
		return
	}

	var (
		current harvest.Field
		chunks  = map[harvest.Field][]string{}
	)
	container.Children().Each(func(_ int, el *goquery.Selection) {
		if heading := headingText(el); heading != "" {
			current = ""
			for _, rule := range rules.Sections {
				for _, want := range rule.Headings {
					if containsFold(heading, want) {
						current = rule.Field
						break
					}
				}
			}
			return
		}
		if current == "" {
			return
		}
		if text := blockText(el); text != "" {
			chunks[current] = append(chunks[current], text)
		}
	})

	for field, parts := range chunks {
		if record.Get(field) == "" {
			record.Set(field, strings.Join(parts, "\n"))
		}
	}
}

// headingText returns the element's text when it reads as a section
// heading: an h1-h6 tag, or a short block rendered entirely in bold.
func headingText(el *goquery.Selection) string {
	text := strings.TrimSpace(el.Text())
	if text == "" || len(text) > 120 {
		return ""
	}
	switch goquery.NodeName(el) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return text
	}
	bold := strings.TrimSpace(el.ChildrenFiltered("strong, b").Text())
	if bold != "" && bold == text {
		return text
	}
	return ""
}

// blockText flattens a paragraph or list into newline-joined lines.
func blockText(el *goquery.Selection) string {
	switch goquery.NodeName(el) {
	case "ul", "ol":
		var items []string
		el.Find("li").Each(func(_ int, li *goquery.Selection) {
			if t := strings.TrimSpace(li.Text()); t != "" {
				items = append(items, t)
			}
		})
		return strings.Join(items, "\n")
	default:
		return normalizeWhitespace(el.Text())
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// trimAfterFold returns what follows the first case-insensitive occurrence
// of label, with leading separators removed.
func trimAfterFold(text, label string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(label))
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(label):]
	return strings.TrimLeft(rest, " :\t")
}

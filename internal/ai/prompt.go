package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You extract structured job-posting data from Mozambican ` +
	`job-listing pages. Pages mix Portuguese and English. Fill every field you ` +
	`can from the page text only; leave a field empty rather than guessing. ` +
	`Keep dates exactly as written on the page. Set expired to true only when ` +
	`the page explicitly says the vacancy is expired or closed.`

// userPrompt assembles the page text and the known vocabulary into a single
// user message. Listing the vocabulary nudges the model to reuse existing
// spellings instead of inventing variants.
func (c *Client) userPrompt(input Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Site: %s\nURL: %s\n\n", input.Site, input.URL)
	if len(input.Known.Categories) > 0 {
		fmt.Fprintf(&b, "Known categories (prefer these spellings): %s\n",
			strings.Join(input.Known.Categories, "; "))
	}
	if len(input.Known.Locations) > 0 {
		fmt.Fprintf(&b, "Known locations (prefer these spellings): %s\n",
			strings.Join(input.Known.Locations, "; "))
	}
	b.WriteString("\nPage text:\n")
	b.WriteString(truncate(input.Body, c.cfg.MaxBodyBytes))
	return b.String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// Cut on a rune boundary so the tail is still valid UTF-8.
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}

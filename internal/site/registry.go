package site

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/mozjobs/harvester/internal/harvest"
)

// Built-in descriptors for the supported listing sites.
var registry = map[string]Descriptor{
	"emprego": {
		Name:          "emprego",
		BaseURL:       "https://www.emprego.co.mz",
		StartURLs:     []string{"https://www.emprego.co.mz"},
		CategoryLinks: "div.content-container-1-4 ul a",
		LinkSelector:  "li.clearfix h3.normal-text a",
		LinkPattern:   regexp.MustCompile(`^https?://(www\.)?emprego\.co\.mz/vaga/`),
		Pagination:    PaginateNextLink,
		NextSelector:  "div.pagination a.nextpostslink",
		Wait:          harvest.WaitContentLoaded,
		AIRequired:    true,
		Delay:         time.Second,
		ExpiryMarkers: []string{"expirado"},
		Markup: MarkupRules{
			Title: "h1.page-title",
			Sidebar: SidebarRule{
				LabelSelector: "span.column-1-3",
				ValueSelector: "span.column-2-3",
				Labels: map[string]harvest.Field{
					"Expira":    harvest.FieldExpires,
					"Publicado": harvest.FieldPublished,
					"Local":     harvest.FieldLocation,
					"Categoria": harvest.FieldCategory,
					"Empresa":   harvest.FieldCompany,
				},
			},
			Sections: []SectionRule{
				{Headings: []string{"Funções", "Tasks"}, Field: harvest.FieldTasks},
				{Headings: []string{"Requisitos", "Requirements"}, Field: harvest.FieldRequirements},
			},
		},
		PromptLabel: "emprego.co.mz (Mozambique)",
	},
	"mmo": {
		Name:          "mmo",
		BaseURL:       "https://emprego.mmo.co.mz",
		StartURLs:     []string{"https://emprego.mmo.co.mz/vagas-em-mocambique/"},
		LinkSelector:  `a[href*="/vaga/"]`,
		LinkPattern:   regexp.MustCompile(`^https?://emprego\.mmo\.co\.mz/vaga/`),
		Pagination:    PaginateLoadMore,
		NextSelector:  `//a[contains(., "Carregar Mais Vagas")] | //button[contains(., "Carregar Mais Vagas")]`,
		Wait:          harvest.WaitNetworkIdle,
		ForceHeadless: true,
		AIRequired:    true,
		Delay:         2 * time.Second,
		ExpiryMarkers: []string{"expirado", "expirou", "vaga encerrada"},
		Markup: MarkupRules{
			Title: "h1.entry-title",
		},
		PromptLabel: "MMO Emprego (Mozambique)",
	},
	"unjobs": {
		Name:          "unjobs",
		BaseURL:       "https://unjobs.org",
		StartURLs:     []string{"https://unjobs.org/duty_stations/mozambique"},
		LinkSelector:  "div.job a.jtitle",
		LinkPattern:   regexp.MustCompile(`^https?://unjobs\.org/vacancies/`),
		Pagination:    PaginateNextLink,
		NextSelector:  "a.ts",
		Wait:          harvest.WaitNetworkIdle,
		ForceHeadless: true,
		Delay:         2 * time.Second,
		Markup: MarkupRules{
			Title:            "h2",
			SectionContainer: "div.fp-snippet",
			Sidebar: SidebarRule{
				LabelSelector: "li.list-group-item",
				ValueSelector: "a",
				Labels: map[string]harvest.Field{
					"Organization:": harvest.FieldCompany,
					"City:":         harvest.FieldLocation,
				},
			},
			Sections: []SectionRule{
				{Headings: []string{"BACKGROUND AND PURPOSE"}, Field: harvest.FieldDescription},
				{Headings: []string{"ACCOUNTABILITIES", "RESPONSIBILITIES"}, Field: harvest.FieldTasks},
				{Headings: []string{"QUALIFICATIONS", "EXPERIENCE REQUIRED"}, Field: harvest.FieldRequirements},
				{Headings: []string{"DEADLINE FOR APPLICATIONS"}, Field: harvest.FieldExpires},
			},
		},
		PromptLabel: "UN Jobs (Mozambique duty stations)",
	},
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown site %q (known: %v)", name, Names())
	}
	return d, nil
}

// Names lists the registered site names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

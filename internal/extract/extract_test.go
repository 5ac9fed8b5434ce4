package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/ai"
	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/site"
)

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ harvest.FetchRequest) (harvest.FetchResponse, error) {
	if f.err != nil {
		return harvest.FetchResponse{}, f.err
	}
	return harvest.FetchResponse{StatusCode: 200, Body: f.body}, nil
}

type fakeAI struct {
	extraction ai.Extraction
	err        error
	calls      int
}

func (f *fakeAI) Extract(_ context.Context, _ ai.Input) (ai.Extraction, error) {
	f.calls++
	return f.extraction, f.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testSite() site.Descriptor {
	return site.Descriptor{
		Name:          "testsite",
		ExpiryMarkers: []string{"expirado"},
		Markup: site.MarkupRules{
			Title: "h1.page-title",
			Sidebar: site.SidebarRule{
				LabelSelector: "span.k",
				ValueSelector: "span.v",
				Labels: map[string]harvest.Field{
					"Expira":    harvest.FieldExpires,
					"Local":     harvest.FieldLocation,
					"Empresa":   harvest.FieldCompany,
					"Categoria": harvest.FieldCategory,
				},
			},
			Sections: []site.SectionRule{
				{Headings: []string{"Requisitos"}, Field: harvest.FieldRequirements},
			},
		},
	}
}

// today in tests is fixed well after the fixture deadlines below.
var testNow = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

const livePage = `<html><body>
<h1 class="page-title">Contabilista</h1>
<div><span class="k">Empresa</span><span class="v">Vodacom</span></div>
<div><span class="k">Local</span><span class="v">Maputo</span></div>
<div><span class="k">Expira</span><span class="v">15.12.2025</span></div>
<h3>Requisitos</h3>
<ul><li>Licenciatura</li><li>3 anos de experiencia</li></ul>
</body></html>`

func newExtractor(d site.Descriptor, f harvest.Fetcher, a AI, now time.Time) *Extractor {
	return New(d, f, a, fixedClock{now: now}, zap.NewNop())
}

func TestExtractMarkupTier(t *testing.T) {
	t.Parallel()

	e := newExtractor(testSite(), &fakeFetcher{body: []byte(livePage)}, nil, testNow)
	result := e.Extract(context.Background(), "https://example.com/vaga/1", harvest.Vocabulary{})

	require.False(t, result.Skipped())
	require.Equal(t, "Contabilista", result.Record.Title)
	require.Equal(t, "Vodacom", result.Record.Company)
	require.Equal(t, "Maputo", result.Record.Location)
	require.Equal(t, "15.12.2025", result.Record.Expires)
	require.Contains(t, result.Record.Requirements, "Licenciatura")
	require.Contains(t, result.Record.Requirements, "3 anos de experiencia")
	require.Equal(t, "https://example.com/vaga/1", result.Record.SourceURL)
}

func TestExtractStructuredDataWinsOverMarkup(t *testing.T) {
	t.Parallel()

	page := `<html><head><script type="application/ld+json">
	{"@context":"https://schema.org","@graph":[{"@type":"JobPosting",
	  "title":"Gestor de Projecto",
	  "hiringOrganization":{"@type":"Organization","name":"UNDP"},
	  "jobLocation":{"address":{"addressLocality":"Beira"}},
	  "datePosted":"2025-06-26T08:00:00",
	  "validThrough":"2025-12-31",
	  "description":"<p>Coordenar o projecto.</p>"}]}
	</script></head><body>
	<h1 class="page-title">Titulo do markup</h1>
	</body></html>`

	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, nil, testNow)
	result := e.Extract(context.Background(), "https://example.com/vaga/2", harvest.Vocabulary{})

	require.False(t, result.Skipped())
	require.Equal(t, "Gestor de Projecto", result.Record.Title)
	require.Equal(t, "UNDP", result.Record.Company)
	require.Equal(t, "Beira", result.Record.Location)
	require.Equal(t, "2025-06-26", result.Record.Published)
	require.Equal(t, "2025-12-31", result.Record.Expires)
	require.Equal(t, "Coordenar o projecto.", result.Record.Description)
}

func TestExtractExpiryMarkerSkipsBeforeAI(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1 class="page-title">Vaga</h1><p>Expirado</p></body></html>`
	model := &fakeAI{}
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, model, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/3", harvest.Vocabulary{})
	require.Equal(t, harvest.SkipExpired, result.Skip)
	require.Zero(t, model.calls)
}

func TestExtractPastDeadlineSkipsBeforeAI(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1 class="page-title">Vaga</h1>
	<div><span class="k">Expira</span><span class="v">01.07.2025</span></div></body></html>`
	model := &fakeAI{}
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, model, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/4", harvest.Vocabulary{})
	require.Equal(t, harvest.SkipExpired, result.Skip)
	require.Zero(t, model.calls)
}

func TestExtractUnreadableDeadlineStaysAlive(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1 class="page-title">Vaga</h1>
	<div><span class="k">Expira</span><span class="v">em breve</span></div></body></html>`
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, nil, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/5", harvest.Vocabulary{})
	require.False(t, result.Skipped())
}

func TestExtractAIFillsOnlyMissingFields(t *testing.T) {
	t.Parallel()

	model := &fakeAI{extraction: ai.Extraction{Record: harvest.JobRecord{
		Title:       "Titulo do modelo",
		Category:    "Contabilidade",
		Description: "Descricao do modelo",
	}}}
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(livePage)}, model, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/6", harvest.Vocabulary{})
	require.False(t, result.Skipped())
	require.Equal(t, 1, model.calls)
	// Rule-tier values survive; the model only fills gaps.
	require.Equal(t, "Contabilista", result.Record.Title)
	require.Equal(t, "Contabilidade", result.Record.Category)
	require.Equal(t, "Descricao do modelo", result.Record.Description)
}

func TestExtractAIFailureKeepsRuleTierResult(t *testing.T) {
	t.Parallel()

	model := &fakeAI{err: errors.New("timeout")}
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(livePage)}, model, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/7", harvest.Vocabulary{})
	require.False(t, result.Skipped())
	require.Equal(t, "Contabilista", result.Record.Title)
}

func TestExtractAIReportedExpiry(t *testing.T) {
	t.Parallel()

	page := `<html><body><h1 class="page-title">Vaga antiga</h1></body></html>`
	model := &fakeAI{extraction: ai.Extraction{Expired: true}}
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, model, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/8", harvest.Vocabulary{})
	require.Equal(t, harvest.SkipExpired, result.Skip)
}

func TestExtractFetchError(t *testing.T) {
	t.Parallel()

	e := newExtractor(testSite(), &fakeFetcher{err: errors.New("connection refused")}, nil, testNow)
	result := e.Extract(context.Background(), "https://example.com/vaga/9", harvest.Vocabulary{})
	require.Equal(t, harvest.SkipFetchError, result.Skip)
	require.Contains(t, result.Note, "connection refused")
}

func TestExtractEmptyPageKeepsRawHTML(t *testing.T) {
	t.Parallel()

	page := `<html><body><div>nothing recognizable here</div></body></html>`
	e := newExtractor(testSite(), &fakeFetcher{body: []byte(page)}, nil, testNow)

	result := e.Extract(context.Background(), "https://example.com/vaga/10", harvest.Vocabulary{})
	require.Equal(t, harvest.SkipEmpty, result.Skip)
	require.NotEmpty(t, result.RawHTML)
}

package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

type fakeFetcher struct {
	response harvest.FetchResponse
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ harvest.FetchRequest) (harvest.FetchResponse, error) {
	f.calls++
	return f.response, f.err
}

func fullPage() []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 200; i++ {
		b.WriteString(`<p>vaga de emprego em mocambique</p><a href="/vaga/x">x</a>`)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func TestPromotingStaysStaticOnFullPage(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{response: harvest.FetchResponse{StatusCode: 200, Body: fullPage()}}
	headless := &fakeFetcher{}
	p := NewPromoting(static, headless, NewHeuristicDetector(0, nil), zap.NewNop())

	resp, err := p.Fetch(context.Background(), harvest.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.False(t, resp.UsedHeadless)
	require.Equal(t, 1, static.calls)
	require.Zero(t, headless.calls)
}

func TestPromotingPromotesThinShell(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{response: harvest.FetchResponse{StatusCode: 200, Body: []byte("<html></html>")}}
	headless := &fakeFetcher{response: harvest.FetchResponse{StatusCode: 200, Body: fullPage(), UsedHeadless: true}}
	p := NewPromoting(static, headless, NewHeuristicDetector(0, nil), zap.NewNop())

	resp, err := p.Fetch(context.Background(), harvest.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.True(t, resp.UsedHeadless)
	require.Equal(t, 1, headless.calls)
}

func TestPromotingPromotesOnStaticError(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{err: errors.New("connection refused")}
	headless := &fakeFetcher{response: harvest.FetchResponse{StatusCode: 200, Body: fullPage(), UsedHeadless: true}}
	p := NewPromoting(static, headless, NewHeuristicDetector(0, nil), zap.NewNop())

	resp, err := p.Fetch(context.Background(), harvest.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.True(t, resp.UsedHeadless)
	require.Equal(t, 1, static.calls)
}

func TestPromotingForcesHeadless(t *testing.T) {
	t.Parallel()

	static := &fakeFetcher{}
	headless := &fakeFetcher{response: harvest.FetchResponse{UsedHeadless: true}}
	p := NewPromoting(static, headless, NewHeuristicDetector(0, nil), zap.NewNop())

	_, err := p.Fetch(context.Background(), harvest.FetchRequest{URL: "https://example.com", ForceHeadless: true})
	require.NoError(t, err)
	require.Zero(t, static.calls)
	require.Equal(t, 1, headless.calls)
}

func TestHeuristicDetector(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(0, nil)
	require.True(t, d.NeedsJS([]byte("<html></html>")))
	require.True(t, d.NeedsJS(append(fullPage(), []byte("please enable JavaScript to continue")...)))
	require.False(t, d.NeedsJS(fullPage()))
}

package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

type fakeCompleter struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func newTestClient(t *testing.T, fc *fakeCompleter, cfg Config) *Client {
	t.Helper()
	c, err := newWithCompleter(fc, cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestExtractMapsFields(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{content: `{
		"job_title": "Contabilista Senior",
		"company_name": "Vodacom",
		"location": "Maputo",
		"category": "Contabilidade",
		"publication_date": "26.06.2025",
		"expiring_date": "2025-07-15",
		"job_description": "Gestao da contabilidade.",
		"tasks_of_the_role": "Fechar contas\nReportar mensalmente",
		"requirements": "Licenciatura em Contabilidade",
		"expired": false
	}`}
	client := newTestClient(t, fc, Config{})

	out, err := client.Extract(context.Background(), Input{
		URL:  "https://example.com/vaga/1",
		Site: "emprego",
		Body: "page text",
	})
	require.NoError(t, err)
	require.False(t, out.Expired)
	require.Equal(t, "Contabilista Senior", out.Record.Title)
	require.Equal(t, "Vodacom", out.Record.Company)
	require.Equal(t, "26.06.2025", out.Record.Published)
	require.Equal(t, "https://example.com/vaga/1", out.Record.SourceURL)
}

func TestExtractStripsCodeFences(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{content: "```json\n{\"job_title\": \"Motorista\", \"expired\": true}\n```"}
	client := newTestClient(t, fc, Config{})

	out, err := client.Extract(context.Background(), Input{URL: "https://example.com/vaga/2"})
	require.NoError(t, err)
	require.Equal(t, "Motorista", out.Record.Title)
	require.True(t, out.Expired)
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	t.Run("completion failure", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, &fakeCompleter{err: errors.New("rate limited")}, Config{})
		_, err := client.Extract(context.Background(), Input{URL: "u"})
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, &fakeCompleter{content: "not json"}, Config{})
		_, err := client.Extract(context.Background(), Input{URL: "u"})
		require.Error(t, err)
	})
}

func TestExtractTruncatesBody(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{content: `{}`}
	client := newTestClient(t, fc, Config{MaxBodyBytes: 64})

	_, err := client.Extract(context.Background(), Input{
		URL:  "u",
		Body: strings.Repeat("x", 10_000),
	})
	require.NoError(t, err)
	userMsg := fc.lastReq.Messages[len(fc.lastReq.Messages)-1].Content
	require.Less(t, len(userMsg), 1_000)
}

func TestExtractIncludesVocabulary(t *testing.T) {
	t.Parallel()

	fc := &fakeCompleter{content: `{}`}
	client := newTestClient(t, fc, Config{})

	_, err := client.Extract(context.Background(), Input{
		URL:   "u",
		Known: harvest.Vocabulary{Categories: []string{"Contabilidade"}, Locations: []string{"Maputo"}},
	})
	require.NoError(t, err)
	userMsg := fc.lastReq.Messages[len(fc.lastReq.Messages)-1].Content
	require.Contains(t, userMsg, "Contabilidade")
	require.Contains(t, userMsg, "Maputo")
}

func TestBiasTerm(t *testing.T) {
	t.Parallel()

	known := []string{"Contabilidade e Financas", "Recursos Humanos"}

	require.Equal(t, "Contabilidade e Financas", biasTerm("contabilidade e financas", known))
	require.Equal(t, "Contabilidade e Financas", biasTerm("Contabilidade", known))
	require.Equal(t, "Recursos Humanos", biasTerm("Gestao de Recursos Humanos", known))
	require.Equal(t, "Logistica", biasTerm("Logistica", known))
	require.Equal(t, "", biasTerm("Uma descricao longa demais para ser uma categoria valida", known))
	require.Equal(t, "", biasTerm("  ", known))
}

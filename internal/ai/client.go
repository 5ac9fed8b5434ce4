// Package ai extracts job fields from raw page text with a chat-completion
// model. It is the last extraction tier; everything it returns is merged
// into fields the cheaper tiers left empty.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/harvest"
)

// payload is the shape the model is asked to fill. Field names match the
// stored record so the response can be mapped without translation.
type payload struct {
	JobTitle        string `json:"job_title" jsonschema_description:"The job title"`
	CompanyName     string `json:"company_name" jsonschema_description:"Company or organization offering the position"`
	Location        string `json:"location" jsonschema_description:"City or province where the job is based"`
	Category        string `json:"category" jsonschema_description:"Professional area of the vacancy"`
	PublicationDate string `json:"publication_date" jsonschema_description:"Date the vacancy was published, DD.MM.YYYY or YYYY-MM-DD"`
	ExpiringDate    string `json:"expiring_date" jsonschema_description:"Application deadline, DD.MM.YYYY or YYYY-MM-DD"`
	JobDescription  string `json:"job_description" jsonschema_description:"Summary of the role"`
	TasksOfTheRole  string `json:"tasks_of_the_role" jsonschema_description:"Duties and responsibilities, one per line"`
	Requirements    string `json:"requirements" jsonschema_description:"Qualifications required, one per line"`
	Expired         bool   `json:"expired" jsonschema_description:"True when the page states the vacancy is expired or closed"`
}

// Input carries one page into the model.
type Input struct {
	URL   string
	Site  string
	Body  string
	Known harvest.Vocabulary
}

// Extraction is the mapped model output.
type Extraction struct {
	Record  harvest.JobRecord
	Expired bool
}

// completer is the slice of the OpenAI client Extract needs.
type completer interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls the model endpoint.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxBodyBytes int
}

// Client talks to an OpenAI-compatible endpoint.
type Client struct {
	completer completer
	cfg       Config
	logger    *zap.Logger
	schema    *jsonschema.Definition
}

// New builds a Client. A non-empty BaseURL points it at a compatible
// self-hosted or proxy endpoint.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: api key is required")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return newWithCompleter(openai.NewClientWithConfig(apiCfg), cfg, logger)
}

func newWithCompleter(c completer, cfg Config, logger *zap.Logger) (*Client, error) {
	schema, err := jsonschema.GenerateSchemaForType(payload{})
	if err != nil {
		return nil, fmt.Errorf("ai: building response schema: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &Client{completer: c, cfg: cfg, logger: logger, schema: schema}, nil
}

// Extract asks the model to fill the payload from the page body. The body
// is truncated to MaxBodyBytes before sending.
func (c *Client) Extract(ctx context.Context, input Input) (Extraction, error) {
	request := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: c.userPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "job_posting",
				Schema: c.schema,
				Strict: true,
			},
		},
	}

	response, err := c.completer.CreateChatCompletion(ctx, request)
	if err != nil {
		return Extraction{}, fmt.Errorf("ai: completion for %s failed: %w", input.URL, err)
	}
	if len(response.Choices) == 0 {
		return Extraction{}, fmt.Errorf("ai: empty completion for %s", input.URL)
	}

	raw := stripFences(response.Choices[0].Message.Content)
	var out payload
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Extraction{}, fmt.Errorf("ai: decoding completion for %s: %w", input.URL, err)
	}

	record := harvest.JobRecord{
		Title:        strings.TrimSpace(out.JobTitle),
		Company:      strings.TrimSpace(out.CompanyName),
		Location:     strings.TrimSpace(out.Location),
		Category:     biasTerm(out.Category, input.Known.Categories),
		Published:    strings.TrimSpace(out.PublicationDate),
		Expires:      strings.TrimSpace(out.ExpiringDate),
		Description:  strings.TrimSpace(out.JobDescription),
		Tasks:        strings.TrimSpace(out.TasksOfTheRole),
		Requirements: strings.TrimSpace(out.Requirements),
		SourceURL:    input.URL,
	}
	return Extraction{Record: record, Expired: out.Expired}, nil
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite the structured response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// biasTerm snaps a model-produced term onto the known vocabulary: an exact
// case-insensitive match wins, then a prefix or containment match. Unknown
// terms are kept only when short enough to be a plausible new entry.
func biasTerm(candidate string, known []string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}
	folded := strings.ToLower(candidate)
	for _, k := range known {
		if strings.ToLower(k) == folded {
			return k
		}
	}
	for _, k := range known {
		kf := strings.ToLower(k)
		if strings.HasPrefix(kf, folded) || strings.HasPrefix(folded, kf) ||
			strings.Contains(kf, folded) || strings.Contains(folded, kf) {
			return k
		}
	}
	if len(strings.Fields(candidate)) <= 4 {
		return candidate
	}
	return ""
}

package describe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/meetmidway/midway/internal/places"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = openai.GPT4oMini

const systemPrompt = `You write short, friendly descriptions of meetup venues for two people choosing where to meet.

Instructions:
- Write one description per venue, 1-2 sentences, at most 200 characters.
- Mention what makes the place a good fit for the requested kind of meetup.
- Use only the facts provided (name, categories, rating, price level, area). Do not invent menu items, events or history.
- Return the venue id exactly as given.`

// descriptionSchema constrains the model output to one description per venue id.
var descriptionSchema = openai.ChatCompletionResponseFormatJSONSchema{
	Name:   "venue_descriptions",
	Strict: true,
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"descriptions": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string", "description": "Venue id exactly as provided"},
						"description": {"type": "string", "maxLength": 200, "description": "Short venue description"}
					},
					"required": ["id", "description"],
					"additionalProperties": false
				}
			}
		},
		"required": ["descriptions"],
		"additionalProperties": false
	}`),
}

type descriptionResponse struct {
	Descriptions []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	} `json:"descriptions"`
}

// OpenAIConfig holds configuration for the OpenAI describer.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the chat model (default: gpt-4o-mini).
	Model string

	// BaseURL overrides the API base URL, e.g. for tests or a proxy (optional).
	BaseURL string

	// HTTPClient executes requests (optional). Pass a resilient client to get
	// retries, a circuit breaker and health reporting.
	HTTPClient openai.HTTPDoer

	// Logger for describer operations.
	Logger zerolog.Logger
}

// OpenAIDescriber implements Describer with the OpenAI chat completions API.
type OpenAIDescriber struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIDescriber creates a new OpenAI describer.
func NewOpenAIDescriber(cfg OpenAIConfig) *OpenAIDescriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIDescriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: cfg.Logger,
	}
}

// DescribeVenues asks the model for one description per venue.
func (d *OpenAIDescriber) DescribeVenues(ctx context.Context, venues []places.Venue, activity places.ActivityType) ([]string, error) {
	if len(venues) == 0 {
		return []string{}, nil
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(venues, activity),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &descriptionSchema,
		},
		Temperature: 0.7,
		MaxTokens:   150 * len(venues),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
			return nil, fmt.Errorf("openai rejected request: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrUnavailable)
	}

	var parsed descriptionResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("parse description response: %w", err)
	}

	byID := make(map[string]string, len(parsed.Descriptions))
	for _, item := range parsed.Descriptions {
		byID[item.ID] = strings.TrimSpace(item.Description)
	}

	out := make([]string, len(venues))
	missing := 0
	for i := range venues {
		out[i] = byID[venues[i].ID]
		if out[i] == "" {
			missing++
		}
	}

	if missing > 0 {
		d.logger.Warn().Int("missing", missing).Int("venue_count", len(venues)).Msg("model skipped some venue descriptions")
	}

	return out, nil
}

// userPrompt lists the venue facts the model may use.
func userPrompt(venues []places.Venue, activity places.ActivityType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meetup type: %s\n\nVenues:\n", activity)
	for i := range venues {
		v := &venues[i]
		fmt.Fprintf(&b, "- id: %s | name: %s | rating: %.1f (%d reviews)", v.ID, v.Name, v.Rating, v.ReviewCount)
		if v.PriceLevel != nil {
			fmt.Fprintf(&b, " | price: %s", strings.Repeat("$", max(*v.PriceLevel, 1)))
		}
		if len(v.Types) > 0 {
			fmt.Fprintf(&b, " | categories: %s", strings.Join(v.Types, ", "))
		}
		if v.Vicinity != "" {
			fmt.Fprintf(&b, " | area: %s", v.Vicinity)
		}
		b.WriteString("\n")
	}
	return b.String()
}

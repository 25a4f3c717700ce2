package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

const systemPrompt = "You are a product analyst labeling app store reviews. " +
	"Assign every review exactly one theme from the allowed list. " +
	"Respond with JSON only, no prose and no markdown fences."

// Config holds the connection settings for the classification endpoint.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// OpenAIClassifier implements ports.ThemeCompleter against OpenAI-compatible
// chat completion APIs.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

var _ ports.ThemeCompleter = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a client from configuration. A custom endpoint
// switches the client to any OpenAI-compatible deployment.
func NewOpenAIClassifier(cfg Config) *OpenAIClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: openai.NewClientWithConfig(clientCfg), model: model}
}

type labelResponse struct {
	Labels []ports.ThemeLabel `json:"labels"`
}

// CompleteThemes sends one batch to the model and parses the labels back.
// Quota errors are wrapped with ErrRateLimited and transport failures with
// ErrUnreachable so the caller can pick the right retry treatment.
func (c *OpenAIClassifier) CompleteThemes(ctx context.Context, reviews []domain.Review) ([]ports.ThemeLabel, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(reviews)},
		},
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	content := stripFences(resp.Choices[0].Message.Content)
	var parsed labelResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode label response: %w", err)
	}
	return parsed.Labels, nil
}

// buildPrompt renders the theme contract and the batch. Reviews are referred
// to by ID so the response does not need to echo any text back.
func buildPrompt(reviews []domain.Review) string {
	var b strings.Builder

	b.WriteString("Allowed themes:\n")
	for _, theme := range domain.Themes() {
		fmt.Fprintf(&b, "- %q: %s\n", theme, theme.Description())
	}

	b.WriteString("\nReviews:\n")
	for _, r := range reviews {
		fmt.Fprintf(&b, "Review ID: %s\n", r.ReviewID)
		if r.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", r.Title)
		}
		fmt.Fprintf(&b, "Text: %s\n\n", r.Text)
	}

	b.WriteString("Respond with a JSON object of this exact shape:\n")
	b.WriteString(`{"labels": [{"review_id": "...", "chosen_theme": "...", "short_reason": "..."}]}` + "\n")
	b.WriteString("Include every review exactly once. chosen_theme must be one of the allowed themes verbatim.")
	return b.String()
}

// classifyError maps API failures onto the retry taxonomy. An APIError means
// the service saw the request; anything else never left the transport.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("completion quota: %v: %w", err, ports.ErrRateLimited)
		}
		return fmt.Errorf("completion failed: %w", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("completion transport: %v: %w", err, ports.ErrUnreachable)
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// despite the instructions. Older models do this regularly.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

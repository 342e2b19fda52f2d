// Package gemini provides a digest generator backed by the Google Gemini API
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

const DefaultModel = "gemini-2.0-flash"

// Client implements the DigestGenerator interface
type Client struct {
	client *genai.Client
	model  string
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini digest generator
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := &Client{
		client: genaiClient,
		model:  DefaultModel,
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate builds a digest from calendar events and email messages.
// Returns the digest text and the prompt that produced it.
func (c *Client) Generate(ctx context.Context, events []models.Event, messages []models.Message) (string, string, error) {
	prompt := buildDigestPrompt(events, messages)

	c.logger.Debug().
		Str("model", c.model).
		Int("events", len(events)).
		Int("messages", len(messages)).
		Msg("Generating digest")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", prompt, mapAPIError(ctx, err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return "", prompt, err
	}

	cleaned := cleanResponse(text)
	if cleaned == "" {
		return "", prompt, fmt.Errorf("unusable digest payload: %w", models.ErrGenerationEmpty)
	}
	return cleaned, prompt, nil
}

// mapAPIError classifies transport-level generation failures.
func mapAPIError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", models.ErrGenerationTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "429") {
		return fmt.Errorf("%w: %v", models.ErrRateLimited, err)
	}
	return fmt.Errorf("failed to generate digest: %w", err)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", models.ErrGenerationEmpty
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", models.ErrGenerationEmpty
	}
	return text, nil
}

// digestKeys are the top-level fields the structured digest must carry.
var digestKeys = []string{"quickSummary", "events", "emails", "actionItems"}

// cleanResponse strips markdown fences and validates the structured digest.
// Returns the normalized JSON string, or empty when the payload is unusable.
func cleanResponse(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		// Not a structured payload; pass plain text through unchanged.
		return text
	}
	for _, key := range digestKeys {
		if _, ok := data[key]; !ok {
			return ""
		}
	}
	normalized, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(normalized)
}

// buildDigestPrompt formats events and messages into the generation prompt.
func buildDigestPrompt(events []models.Event, messages []models.Message) string {
	var sb strings.Builder
	sb.WriteString("You are a personal assistant creating a daily digest. ")
	sb.WriteString("Combine the calendar events and emails below into a JSON object with exactly these keys: ")
	sb.WriteString(`"quickSummary" (one-paragraph overview), "events" (array of {title, time, note}), `)
	sb.WriteString(`"emails" (array of {subject, from, note, priority}), "actionItems" (array of strings).` + "\n\n")

	sb.WriteString("Calendar events:\n")
	sb.WriteString(formatEvents(events))
	sb.WriteString("\n\nEmails:\n")
	sb.WriteString(formatMessages(messages))

	sb.WriteString("\n\nRemember to:\n")
	sb.WriteString("- Keep the JSON structure exactly as shown\n")
	sb.WriteString("- Make the summary detailed but concise\n")
	sb.WriteString("- Include all fields even if empty\n")
	sb.WriteString("- Use priority consistently\n")
	sb.WriteString("- Highlight pending calendar invites that need attention\n")

	return sb.String()
}

func formatEvents(events []models.Event) string {
	if len(events) == 0 {
		return "No calendar events scheduled."
	}
	var lines []string
	for _, event := range events {
		attendees := make([]string, 0, len(event.Attendees))
		for _, a := range event.Attendees {
			attendees = append(attendees, a.Email)
		}
		attendeeList := "No attendees"
		if len(attendees) > 0 {
			attendeeList = strings.Join(attendees, ", ")
		}
		location := event.Location
		if location == "" {
			location = "No location"
		}
		lines = append(lines, fmt.Sprintf("- %s\n  Time: %s - %s\n  Location: %s\n  Attendees: %s",
			event.Title, event.Start, event.End, location, attendeeList))
	}
	return strings.Join(lines, "\n")
}

func formatMessages(messages []models.Message) string {
	if len(messages) == 0 {
		return "No new emails."
	}
	var lines []string
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("- Subject: %s\n  From: %s\n  From Email: %s\n  ThreadId: %s\n  Preview: %s",
			msg.Subject, msg.From, msg.FromEmail, msg.ThreadID, msg.Snippet))
	}
	return strings.Join(lines, "\n")
}

// Ensure Client implements DigestGenerator
var _ interfaces.DigestGenerator = (*Client)(nil)

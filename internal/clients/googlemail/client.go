// Package googlemail provides a client for the Gmail API
package googlemail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

const (
	DefaultRateLimit  = 5 // requests per second
	DefaultMaxResults = 5
)

// Client implements the MailClient interface
type Client struct {
	logger  *common.Logger
	limiter *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new Gmail client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:  common.NewSilentLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRecentMessages returns up to maxResults messages from the user's inbox,
// newest first, with headers, snippet, and plain-text body resolved.
func (c *Client) GetRecentMessages(ctx context.Context, cred *models.Credential, maxResults int) ([]models.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", models.ErrUpstreamFetch, err)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource(cred)))
	if err != nil {
		return nil, fmt.Errorf("%w: create gmail service: %v", models.ErrUpstreamFetch, err)
	}

	list, err := svc.Users.Messages.List("me").
		MaxResults(int64(maxResults)).
		LabelIds("INBOX").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", models.ErrUpstreamFetch, err)
	}

	messages := make([]models.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("%w: get message %s: %v", models.ErrUpstreamFetch, ref.Id, err)
		}
		messages = append(messages, formatMessage(msg))
	}

	c.logger.Debug().Int("messages", len(messages)).Msg("Mail messages fetched")
	return messages, nil
}

// formatMessage maps a Gmail API message onto the digest message shape.
func formatMessage(msg *gmail.Message) models.Message {
	m := models.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Subject:  "No Subject",
		From:     "Unknown Sender",
	}
	if msg.Payload == nil {
		return m
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			m.Subject = h.Value
		case "from":
			m.From = h.Value
			m.FromEmail = extractAddress(h.Value)
		case "date":
			m.Date = h.Value
		}
	}
	m.Body = extractBody(msg.Payload)
	return m
}

// extractAddress pulls the bare address out of a "Name <addr>" header value.
func extractAddress(from string) string {
	if open := strings.LastIndex(from, "<"); open >= 0 {
		if end := strings.LastIndex(from, ">"); end > open {
			return from[open+1 : end]
		}
	}
	return strings.TrimSpace(from)
}

// extractBody walks the MIME tree collecting text/plain parts.
func extractBody(payload *gmail.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" && len(payload.Parts) == 0 {
		return decodePart(payload.Body.Data)
	}
	var parts []string
	collectTextParts(payload.Parts, &parts)
	return strings.Join(parts, "\n")
}

func collectTextParts(parts []*gmail.MessagePart, out *[]string) {
	for _, part := range parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if text := decodePart(part.Body.Data); text != "" {
				*out = append(*out, text)
			}
			continue
		}
		if len(part.Parts) > 0 {
			collectTextParts(part.Parts, out)
		}
	}
}

func decodePart(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// tokenSource wraps the credential's current access token. EnsureFresh has
// already run by the time a fetch happens, so no refresh happens here.
func tokenSource(cred *models.Credential) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		Expiry:      cred.Expiry,
	})
}

// Ensure Client implements MailClient
var _ interfaces.MailClient = (*Client)(nil)

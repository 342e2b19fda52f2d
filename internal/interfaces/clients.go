// Package interfaces defines service contracts for the summary service
package interfaces

import (
	"context"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// CalendarClient fetches upcoming calendar events on the user's behalf.
type CalendarClient interface {
	// GetEvents returns events between timeMin and timeMax, earliest first.
	// Transport and auth failures wrap models.ErrUpstreamFetch.
	GetEvents(ctx context.Context, cred *models.Credential, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error)
}

// MailClient fetches recent email messages on the user's behalf.
type MailClient interface {
	// GetRecentMessages returns up to maxResults recent messages, newest first.
	// Transport and auth failures wrap models.ErrUpstreamFetch.
	GetRecentMessages(ctx context.Context, cred *models.Credential, maxResults int) ([]models.Message, error)
}

// DigestGenerator turns events and messages into digest text.
type DigestGenerator interface {
	// Generate returns the digest text and the prompt that produced it.
	// Failure modes wrap models.ErrGenerationEmpty, models.ErrGenerationTimeout
	// or models.ErrRateLimited.
	Generate(ctx context.Context, events []models.Event, messages []models.Message) (text string, prompt string, err error)
}

// TokenRefresher exchanges a refresh token for new token fields at the
// credential's token endpoint.
type TokenRefresher interface {
	// Refresh returns replacement token fields, or an error wrapping
	// models.ErrReauthRequired when the grant is no longer honored.
	Refresh(ctx context.Context, cred *models.Credential) (*models.TokenFields, error)
}

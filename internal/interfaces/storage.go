// Package interfaces defines service contracts for the summary service
package interfaces

import (
	"context"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// CredentialStore persists one OAuth credential record per user.
// Implementations must make per-user operations atomic; no cross-user
// locking is required.
type CredentialStore interface {
	// Find returns the stored credential or models.ErrNotFound.
	Find(ctx context.Context, userID string) (*models.Credential, error)

	// Save inserts or replaces the record for cred.UserID, preserving
	// CreatedAt on replace and stamping UpdatedAt.
	Save(ctx context.Context, cred *models.Credential) error

	// Delete removes the record. Idempotent: deleting a missing record succeeds.
	Delete(ctx context.Context, userID string) error

	// ListUserIDs returns the IDs of all users with a stored credential.
	ListUserIDs(ctx context.Context) ([]string, error)

	Close() error
}

// DigestCache stores generated digests keyed by user, append-only,
// most-recent wins.
type DigestCache interface {
	// GetRecent returns the most recent entry for userID with
	// GeneratedAt >= now-maxAge, or models.ErrNotFound if none qualifies.
	GetRecent(ctx context.Context, userID string, maxAge time.Duration) (*models.DigestEntry, error)

	// Put inserts a new entry with GeneratedAt = now and returns it.
	// Prior entries are never overwritten or deleted.
	Put(ctx context.Context, userID, digestText, sourcePrompt string) (*models.DigestEntry, error)

	// List returns up to limit entries for userID, most recent first.
	List(ctx context.Context, userID string, limit int) ([]*models.DigestEntry, error)

	Close() error
}

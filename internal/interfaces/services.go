// Package interfaces defines service contracts for the summary service
package interfaces

import (
	"context"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// CredentialService owns the credential lifecycle: scope policy on write,
// refresh-before-use on read, deletion on drift or refresh failure.
type CredentialService interface {
	// Find returns the stored credential or models.ErrNotFound.
	Find(ctx context.Context, userID string) (*models.Credential, error)

	// Upsert validates cred.GrantedScopes against the required set and stores
	// the record. On mismatch any existing record for the user is deleted
	// before models.ErrScopeMismatch is returned.
	Upsert(ctx context.Context, cred *models.Credential) error

	// EnsureFresh returns a credential whose access token is valid, refreshing
	// it first if needed. Returns models.ErrUnauthenticated when no record
	// exists, models.ErrReauthRequired when refresh fails or scopes drift
	// (the record is deleted in both cases).
	EnsureFresh(ctx context.Context, userID string) (*models.Credential, error)

	// Remove deletes the user's credential. Idempotent.
	Remove(ctx context.Context, userID string) error

	// ListUserIDs enumerates users with a stored credential.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// DigestService coordinates cache lookups, credential refresh, upstream
// fetches, generation, and cache commits.
type DigestService interface {
	// GetDigest returns a cached digest when one is fresh enough, otherwise
	// builds a new one. force bypasses the cache check.
	GetDigest(ctx context.Context, userID string, force bool) (*models.DigestResult, error)

	// History returns up to limit past digest entries, most recent first.
	History(ctx context.Context, userID string, limit int) ([]*models.DigestEntry, error)

	// Sweep rebuilds digests for every credentialed user. Per-user failures
	// are logged and skipped, never aborting the sweep.
	Sweep(ctx context.Context)
}

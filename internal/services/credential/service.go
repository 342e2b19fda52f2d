// Package credential owns the OAuth credential lifecycle: scope policy on
// write, refresh-before-use on read, deletion on drift or refresh failure.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// Service implements interfaces.CredentialService.
type Service struct {
	store     interfaces.CredentialStore
	refresher interfaces.TokenRefresher
	required  []string
	leeway    time.Duration
	logger    *common.Logger
}

// NewService creates a credential service enforcing the given required scope
// set. A nil requiredScopes falls back to models.RequiredScopes.
func NewService(store interfaces.CredentialStore, refresher interfaces.TokenRefresher, requiredScopes []string, logger *common.Logger) *Service {
	if requiredScopes == nil {
		requiredScopes = models.RequiredScopes
	}
	return &Service{
		store:     store,
		refresher: refresher,
		required:  requiredScopes,
		leeway:    common.TokenExpiryLeeway,
		logger:    logger,
	}
}

func (s *Service) Find(ctx context.Context, userID string) (*models.Credential, error) {
	return s.store.Find(ctx, userID)
}

// Upsert stores the credential after validating its scopes against the
// required set. Scope comparison is exact set equality: extra grants are as
// invalid as missing ones. On mismatch any stored record for the user is
// deleted first so the next request forces re-authorization.
func (s *Service) Upsert(ctx context.Context, cred *models.Credential) error {
	if !models.ScopesEqual(cred.GrantedScopes, s.required) {
		s.logger.Warn().
			Str("user_id", cred.UserID).
			Strs("granted", cred.GrantedScopes).
			Msg("Scope mismatch on credential upsert, removing stored record")
		if err := s.store.Delete(ctx, cred.UserID); err != nil {
			s.logger.Error().Err(err).Str("user_id", cred.UserID).Msg("Failed to delete mismatched credential")
		}
		return fmt.Errorf("user '%s': %w", cred.UserID, models.ErrScopeMismatch)
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// EnsureFresh returns a credential with a valid access token, refreshing it
// first when expired. The stored record is the single source of truth: every
// successful refresh is persisted before the credential is handed out.
func (s *Service) EnsureFresh(ctx context.Context, userID string) (*models.Credential, error) {
	cred, err := s.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user '%s': %w", userID, models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}

	if !cred.Expired(s.leeway) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		s.logger.Warn().Str("user_id", userID).Msg("Expired token with no refresh token, removing credential")
		if err := s.store.Delete(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete credential")
		}
		return nil, fmt.Errorf("user '%s': %w", userID, models.ErrReauthRequired)
	}

	fields, err := s.refresher.Refresh(ctx, cred)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Token refresh failed, removing credential")
		if delErr := s.store.Delete(ctx, userID); delErr != nil {
			s.logger.Error().Err(delErr).Str("user_id", userID).Msg("Failed to delete credential")
		}
		return nil, fmt.Errorf("refresh for user '%s': %w", userID, models.ErrReauthRequired)
	}

	// A token response restating scopes must still match exactly; drift
	// invalidates the record the same as a bad upsert.
	if len(fields.Scopes) > 0 && !models.ScopesEqual(fields.Scopes, s.required) {
		s.logger.Warn().
			Str("user_id", userID).
			Strs("granted", fields.Scopes).
			Msg("Scope drift on refreshed token, removing credential")
		if err := s.store.Delete(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete credential")
		}
		return nil, fmt.Errorf("scope drift for user '%s': %w", userID, models.ErrReauthRequired)
	}

	cred.AccessToken = fields.AccessToken
	if fields.RefreshToken != "" {
		cred.RefreshToken = fields.RefreshToken
	}
	cred.Expiry = fields.Expiry
	cred.LastRefreshed = time.Now().UTC()

	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist refreshed credential: %w", err)
	}

	s.logger.Debug().Str("user_id", userID).Time("expiry", cred.Expiry).Msg("Credential refreshed")
	return cred, nil
}

func (s *Service) Remove(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

func (s *Service) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.store.ListUserIDs(ctx)
}

// Ensure Service implements CredentialService
var _ interfaces.CredentialService = (*Service)(nil)

// Package credentialdb implements CredentialStore using BadgerHold.
// One record per user, keyed by user ID; upserts are atomic at the
// per-key level which is all the coordinator requires.
package credentialdb

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// Store implements interfaces.CredentialStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new CredentialStore backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create credential db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("CredentialDB opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Find(_ context.Context, userID string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.Get(userID, &cred); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("credential for user '%s': %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get credential for user '%s': %w", userID, err)
	}
	return &cred, nil
}

func (s *Store) Save(_ context.Context, cred *models.Credential) error {
	if cred.UserID == "" {
		return fmt.Errorf("credential user ID is required")
	}
	now := time.Now().UTC()
	var existing models.Credential
	if err := s.db.Get(cred.UserID, &existing); err == nil {
		cred.CreatedAt = existing.CreatedAt
	} else if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	if err := s.db.Upsert(cred.UserID, cred); err != nil {
		return fmt.Errorf("failed to save credential for user '%s': %w", cred.UserID, err)
	}
	s.logger.Debug().Str("user_id", cred.UserID).Msg("Credential saved")
	return nil
}

func (s *Store) Delete(_ context.Context, userID string) error {
	if err := s.db.Delete(userID, models.Credential{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete credential for user '%s': %w", userID, err)
	}
	s.logger.Debug().Str("user_id", userID).Msg("Credential deleted")
	return nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	var creds []models.Credential
	if err := s.db.Find(&creds, nil); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	ids := make([]string, len(creds))
	for i, c := range creds {
		ids[i] = c.UserID
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

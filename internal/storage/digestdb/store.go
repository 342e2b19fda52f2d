// Package digestdb implements DigestCache using BadgerHold.
// Entries are append-only: every Put inserts a new record under a fresh ID
// and prior entries are never touched, so readers always see complete rows.
package digestdb

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// Store implements interfaces.DigestCache using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger

	// lastSeen guards the per-user GeneratedAt monotonicity invariant when
	// concurrent writers race: a new entry is never stamped older than the
	// last one written by this process.
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewStore creates a new DigestCache backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create digest db path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open digest db at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("DigestDB opened")
	return &Store{db: db, logger: logger, lastSeen: make(map[string]time.Time)}, nil
}

func (s *Store) GetRecent(_ context.Context, userID string, maxAge time.Duration) (*models.DigestEntry, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	var entries []models.DigestEntry
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID")
	if err := s.db.Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to query digests for user '%s': %w", userID, err)
	}

	var best *models.DigestEntry
	for i := range entries {
		e := &entries[i]
		if e.GeneratedAt.Before(cutoff) {
			continue
		}
		if best == nil || e.GeneratedAt.After(best.GeneratedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no fresh digest for user '%s': %w", userID, models.ErrNotFound)
	}
	return best, nil
}

func (s *Store) Put(_ context.Context, userID, digestText, sourcePrompt string) (*models.DigestEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("digest user ID is required")
	}

	entry := &models.DigestEntry{
		ID:           uuid.New().String(),
		UserID:       userID,
		DigestText:   digestText,
		SourcePrompt: sourcePrompt,
		GeneratedAt:  s.stampMonotonic(userID),
	}

	if err := s.db.Insert(entry.ID, entry); err != nil {
		return nil, fmt.Errorf("failed to insert digest for user '%s': %w", userID, err)
	}
	s.logger.Debug().Str("user_id", userID).Time("generated_at", entry.GeneratedAt).Msg("Digest cached")
	return entry, nil
}

// stampMonotonic returns now clamped so per-user timestamps never go backwards.
func (s *Store) stampMonotonic(userID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if last, ok := s.lastSeen[userID]; ok && now.Before(last) {
		now = last
	}
	s.lastSeen[userID] = now
	return now
}

func (s *Store) List(_ context.Context, userID string, limit int) ([]*models.DigestEntry, error) {
	var entries []models.DigestEntry
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID")
	if err := s.db.Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list digests for user '%s': %w", userID, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].GeneratedAt.After(entries[j].GeneratedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	result := make([]*models.DigestEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

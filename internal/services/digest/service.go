// Package digest implements the refresh coordinator: it decides cache-hit vs
// cache-miss, refreshes credentials before use, fetches calendar and mail
// concurrently, generates the digest, and commits the cache entry.
package digest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// Options configures the coordinator.
type Options struct {
	StalenessWindow time.Duration // max age of a served cached digest
	FetchTimeout    time.Duration // per upstream fetch (calendar, mail)
	GenerateTimeout time.Duration // AI generation call
	WindowSpan      time.Duration // calendar look-ahead from now
	MaxEvents       int
	MaxEmails       int
	SweepWorkers    int
}

func (o *Options) applyDefaults() {
	if o.StalenessWindow <= 0 {
		o.StalenessWindow = common.DefaultStalenessWindow
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 60 * time.Second
	}
	if o.WindowSpan <= 0 {
		o.WindowSpan = 24 * time.Hour
	}
	if o.MaxEvents <= 0 {
		o.MaxEvents = 50
	}
	if o.MaxEmails <= 0 {
		o.MaxEmails = 5
	}
	if o.SweepWorkers <= 0 {
		o.SweepWorkers = 4
	}
}

// Service implements interfaces.DigestService.
type Service struct {
	credentials interfaces.CredentialService
	cache       interfaces.DigestCache
	calendar    interfaces.CalendarClient
	mail        interfaces.MailClient
	generator   interfaces.DigestGenerator
	opts        Options
	logger      *common.Logger
}

// NewService creates a new digest coordinator.
func NewService(
	credentials interfaces.CredentialService,
	cache interfaces.DigestCache,
	calendar interfaces.CalendarClient,
	mail interfaces.MailClient,
	generator interfaces.DigestGenerator,
	opts Options,
	logger *common.Logger,
) *Service {
	opts.applyDefaults()
	return &Service{
		credentials: credentials,
		cache:       cache,
		calendar:    calendar,
		mail:        mail,
		generator:   generator,
		opts:        opts,
		logger:      logger,
	}
}

// GetDigest returns a cached digest when one is within the staleness window,
// otherwise builds a fresh one. The cache-hit fast path never touches the
// credential store or any upstream collaborator.
//
// Concurrent misses for the same user are not de-duplicated: each caller
// computes and appends its own entry and last write wins for later reads.
func (s *Service) GetDigest(ctx context.Context, userID string, force bool) (*models.DigestResult, error) {
	if !force {
		entry, err := s.cache.GetRecent(ctx, userID, s.opts.StalenessWindow)
		if err == nil {
			s.logger.Debug().Str("user_id", userID).Time("generated_at", entry.GeneratedAt).Msg("Digest cache hit")
			return &models.DigestResult{
				Digest:      entry.DigestText,
				Cached:      true,
				GeneratedAt: entry.GeneratedAt,
			}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			// Cache lookup errors degrade to a miss rather than failing the request.
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Digest cache lookup failed, recomputing")
		}
	}

	cred, err := s.credentials.EnsureFresh(ctx, userID)
	if err != nil {
		// Unauthenticated / ReauthRequired are terminal for this request.
		return nil, err
	}

	events, messages, err := s.fetchUpstream(ctx, cred)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()
	text, prompt, err := s.generator.Generate(genCtx, events, messages)
	if err != nil {
		if genCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("generate digest for user '%s': %w", userID, models.ErrGenerationTimeout)
		}
		return nil, fmt.Errorf("generate digest for user '%s': %w", userID, err)
	}

	result := &models.DigestResult{
		Digest:      text,
		Cached:      false,
		GeneratedAt: time.Now().UTC(),
	}

	// A failed cache write is logged and swallowed: the computed digest is
	// worth more to the caller than cache consistency.
	entry, err := s.cache.Put(ctx, userID, text, prompt)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Digest cache write failed, returning uncached result")
	} else {
		result.GeneratedAt = entry.GeneratedAt
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("events", len(events)).
		Int("messages", len(messages)).
		Bool("forced", force).
		Msg("Digest generated")

	return result, nil
}

// fetchUpstream retrieves calendar events and mail messages concurrently.
// Both facets are required: a failure in either fails the whole fetch and no
// partial digest is generated.
func (s *Service) fetchUpstream(ctx context.Context, cred *models.Credential) ([]models.Event, []models.Message, error) {
	var (
		events   []models.Event
		messages []models.Message
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.opts.FetchTimeout)
		defer cancel()
		now := time.Now().UTC()
		evs, err := s.calendar.GetEvents(fctx, cred, now, now.Add(s.opts.WindowSpan), s.opts.MaxEvents)
		if err != nil {
			return fmt.Errorf("calendar: %w", err)
		}
		events = evs
		return nil
	})

	g.Go(func() error {
		fctx, cancel := context.WithTimeout(gctx, s.opts.FetchTimeout)
		defer cancel()
		msgs, err := s.mail.GetRecentMessages(fctx, cred, s.opts.MaxEmails)
		if err != nil {
			return fmt.Errorf("mail: %w", err)
		}
		messages = msgs
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, models.ErrUpstreamFetch) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", models.ErrUpstreamFetch, err)
	}
	return events, messages, nil
}

// History returns up to limit past digest entries, most recent first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.DigestEntry, error) {
	return s.cache.List(ctx, userID, limit)
}

// Sweep rebuilds digests for every user with a stored credential, with
// bounded concurrency. Per-user failures are logged and skipped.
func (s *Service) Sweep(ctx context.Context) {
	start := time.Now()

	userIDs, err := s.credentials.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Sweep: failed to enumerate credentialed users")
		return
	}
	if len(userIDs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SweepWorkers)

	var refreshed, failed atomic.Int64
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			if _, err := s.GetDigest(gctx, userID, true); err != nil {
				failed.Add(1)
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("Sweep: digest refresh failed")
				return nil // never abort the sweep
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info().
		Int("users", len(userIDs)).
		Int64("refreshed", refreshed.Load()).
		Int64("failed", failed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("Sweep: complete")
}

// Ensure Service implements DigestService
var _ interfaces.DigestService = (*Service)(nil)

package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// --- fakes ---

type fakeCredentials struct {
	mu       sync.Mutex
	creds    map[string]*models.Credential
	err      error
	failUser string // EnsureFresh fails with ReauthRequired for this user
	calls    int
}

func (f *fakeCredentials) Find(_ context.Context, userID string) (*models.Credential, error) {
	if c, ok := f.creds[userID]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeCredentials) Upsert(_ context.Context, cred *models.Credential) error {
	f.creds[cred.UserID] = cred
	return nil
}

func (f *fakeCredentials) EnsureFresh(_ context.Context, userID string) (*models.Credential, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if userID == f.failUser {
		return nil, models.ErrReauthRequired
	}
	if c, ok := f.creds[userID]; ok {
		return c, nil
	}
	return nil, models.ErrUnauthenticated
}

func (f *fakeCredentials) Remove(_ context.Context, userID string) error {
	delete(f.creds, userID)
	return nil
}

func (f *fakeCredentials) ListUserIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.creds))
	for id := range f.creds {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries []*models.DigestEntry
	putErr  error
	gets    int
}

func (f *fakeCache) GetRecent(_ context.Context, userID string, maxAge time.Duration) (*models.DigestEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	cutoff := time.Now().Add(-maxAge)
	var best *models.DigestEntry
	for _, e := range f.entries {
		if e.UserID != userID || e.GeneratedAt.Before(cutoff) {
			continue
		}
		if best == nil || e.GeneratedAt.After(best.GeneratedAt) {
			best = e
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (f *fakeCache) Put(_ context.Context, userID, text, prompt string) (*models.DigestEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	entry := &models.DigestEntry{
		ID:           "entry-" + userID,
		UserID:       userID,
		DigestText:   text,
		SourcePrompt: prompt,
		GeneratedAt:  time.Now().UTC(),
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeCache) List(_ context.Context, userID string, limit int) ([]*models.DigestEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DigestEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCache) Close() error { return nil }

type fakeCalendar struct {
	mu     sync.Mutex
	events []models.Event
	err    error
	calls  int
}

func (f *fakeCalendar) GetEvents(_ context.Context, _ *models.Credential, _, _ time.Time, _ int) ([]models.Event, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeMail struct {
	mu       sync.Mutex
	messages []models.Message
	err      error
	calls    int
}

func (f *fakeMail) GetRecentMessages(_ context.Context, _ *models.Credential, _ int) ([]models.Message, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, events []models.Event, messages []models.Message) (string, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", "", f.err
	}
	return f.text, "prompt", nil
}

type fixture struct {
	creds     *fakeCredentials
	cache     *fakeCache
	calendar  *fakeCalendar
	mail      *fakeMail
	generator *fakeGenerator
	svc       *Service
}

func newFixture(window time.Duration) *fixture {
	f := &fixture{
		creds: &fakeCredentials{creds: map[string]*models.Credential{
			"alice": {
				UserID:        "alice",
				AccessToken:   "access",
				RefreshToken:  "refresh",
				GrantedScopes: models.RequiredScopes,
				Expiry:        time.Now().Add(time.Hour),
			},
		}},
		cache: &fakeCache{},
		calendar: &fakeCalendar{events: []models.Event{
			{ID: "e1", Title: "Standup"},
			{ID: "e2", Title: "Planning"},
			{ID: "e3", Title: "1:1"},
		}},
		mail: &fakeMail{messages: []models.Message{
			{ID: "m1", Subject: "Invoice"},
			{ID: "m2", Subject: "Newsletter"},
		}},
		generator: &fakeGenerator{text: "Today: 3 meetings, 2 emails."},
	}
	f.svc = NewService(f.creds, f.cache, f.calendar, f.mail, f.generator,
		Options{StalenessWindow: window}, common.NewSilentLogger())
	return f
}

// --- tests ---

func TestMissComputesAndCaches(t *testing.T) {
	f := newFixture(30 * time.Minute)

	result, err := f.svc.GetDigest(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, "Today: 3 meetings, 2 emails.", result.Digest)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, f.calendar.calls)
	assert.Equal(t, 1, f.mail.calls)
	assert.Equal(t, 1, f.generator.calls)
	assert.Len(t, f.cache.entries, 1)
}

func TestHitServesCacheWithoutUpstreamCalls(t *testing.T) {
	f := newFixture(30 * time.Minute)
	ctx := context.Background()

	first, err := f.svc.GetDigest(ctx, "alice", false)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := f.svc.GetDigest(ctx, "alice", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Digest, second.Digest)

	// Fast path: no second credential check, fetch, or generation.
	assert.Equal(t, 1, f.creds.calls)
	assert.Equal(t, 1, f.calendar.calls)
	assert.Equal(t, 1, f.mail.calls)
	assert.Equal(t, 1, f.generator.calls)
}

func TestStaleEntryForcesRecompute(t *testing.T) {
	f := newFixture(20 * time.Millisecond)
	ctx := context.Background()

	_, err := f.svc.GetDigest(ctx, "alice", false)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	result, err := f.svc.GetDigest(ctx, "alice", false)
	require.NoError(t, err)
	assert.False(t, result.Cached, "entry past the window must recompute")
	assert.Equal(t, 2, f.generator.calls)
}

func TestForceBypassesCache(t *testing.T) {
	f := newFixture(30 * time.Minute)
	ctx := context.Background()

	_, err := f.svc.GetDigest(ctx, "alice", false)
	require.NoError(t, err)

	result, err := f.svc.GetDigest(ctx, "alice", true)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 2, f.generator.calls)
	assert.Len(t, f.cache.entries, 2)
}

func TestForcedRefreshesHaveNonDecreasingTimestamps(t *testing.T) {
	f := newFixture(30 * time.Minute)
	ctx := context.Background()

	first, err := f.svc.GetDigest(ctx, "alice", true)
	require.NoError(t, err)
	second, err := f.svc.GetDigest(ctx, "alice", true)
	require.NoError(t, err)

	assert.False(t, second.GeneratedAt.Before(first.GeneratedAt))
	assert.Len(t, f.cache.entries, 2)
}

func TestUnauthenticatedUserNoUpstreamCalls(t *testing.T) {
	f := newFixture(30 * time.Minute)

	_, err := f.svc.GetDigest(context.Background(), "stranger", false)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	assert.Zero(t, f.calendar.calls)
	assert.Zero(t, f.mail.calls)
	assert.Zero(t, f.generator.calls)
}

func TestReauthRequiredPropagates(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.creds.err = models.ErrReauthRequired

	_, err := f.svc.GetDigest(context.Background(), "alice", false)
	assert.ErrorIs(t, err, models.ErrReauthRequired)
	assert.Zero(t, f.generator.calls)
}

func TestCalendarFailureFailsWholeOperation(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.calendar.err = models.ErrUpstreamFetch

	_, err := f.svc.GetDigest(context.Background(), "alice", false)
	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
	assert.Zero(t, f.generator.calls, "no partial digest from mail only")
	assert.Empty(t, f.cache.entries)
}

func TestMailFailureFailsWholeOperation(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.mail.err = models.ErrUpstreamFetch

	_, err := f.svc.GetDigest(context.Background(), "alice", false)
	assert.ErrorIs(t, err, models.ErrUpstreamFetch)
	assert.Zero(t, f.generator.calls)
}

func TestGenerationEmptyIsErrorAndNotCached(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.generator.err = models.ErrGenerationEmpty

	_, err := f.svc.GetDigest(context.Background(), "alice", false)
	assert.ErrorIs(t, err, models.ErrGenerationEmpty)
	assert.Empty(t, f.cache.entries, "empty generation must not write a cache entry")
}

func TestCacheWriteFailureStillReturnsDigest(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.cache.putErr = errors.New("disk full")

	result, err := f.svc.GetDigest(context.Background(), "alice", false)
	require.NoError(t, err, "cache write failure must not surface to the caller")
	assert.Equal(t, "Today: 3 meetings, 2 emails.", result.Digest)
	assert.False(t, result.Cached)
}

func TestHistory(t *testing.T) {
	f := newFixture(30 * time.Minute)
	ctx := context.Background()

	_, err := f.svc.GetDigest(ctx, "alice", true)
	require.NoError(t, err)
	_, err = f.svc.GetDigest(ctx, "alice", true)
	require.NoError(t, err)

	entries, err := f.svc.History(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSweepRefreshesAllCredentialedUsers(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.creds.creds["bob"] = &models.Credential{
		UserID:        "bob",
		AccessToken:   "access",
		GrantedScopes: models.RequiredScopes,
		Expiry:        time.Now().Add(time.Hour),
	}

	f.svc.Sweep(context.Background())

	aliceEntries, _ := f.cache.List(context.Background(), "alice", 0)
	bobEntries, _ := f.cache.List(context.Background(), "bob", 0)
	assert.Len(t, aliceEntries, 1)
	assert.Len(t, bobEntries, 1)
}

func TestSweepContinuesPastPerUserFailures(t *testing.T) {
	f := newFixture(30 * time.Minute)
	f.creds.creds["bob"] = &models.Credential{
		UserID:        "bob",
		AccessToken:   "access",
		GrantedScopes: models.RequiredScopes,
		Expiry:        time.Now().Add(time.Hour),
	}
	f.creds.failUser = "bob"

	f.svc.Sweep(context.Background())

	aliceEntries, _ := f.cache.List(context.Background(), "alice", 0)
	bobEntries, _ := f.cache.List(context.Background(), "bob", 0)
	assert.NotEmpty(t, aliceEntries, "sweep must not abort on per-user failure")
	assert.Empty(t, bobEntries)
}

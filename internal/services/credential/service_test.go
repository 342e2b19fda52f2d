package credential

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/storage/credentialdb"
)

type fakeRefresher struct {
	fields *models.TokenFields
	err    error
	calls  int
}

func (f *fakeRefresher) Refresh(_ context.Context, _ *models.Credential) (*models.TokenFields, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.fields, nil
}

func newTestService(t *testing.T, refresher *fakeRefresher) *Service {
	t.Helper()
	logger := common.NewSilentLogger()
	store, err := credentialdb.NewStore(logger, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, refresher, nil, logger)
}

func validCredential(userID string, expiry time.Time) *models.Credential {
	return &models.Credential{
		UserID:        userID,
		AccessToken:   "access",
		RefreshToken:  "refresh",
		TokenEndpoint: "https://oauth2.googleapis.com/token",
		ClientID:      "cid",
		ClientSecret:  "csecret",
		GrantedScopes: models.RequiredScopes,
		Expiry:        expiry,
	}
}

func TestUpsertAndFind(t *testing.T) {
	svc := newTestService(t, &fakeRefresher{})
	ctx := context.Background()

	cred := validCredential("alice", time.Now().Add(time.Hour))
	require.NoError(t, svc.Upsert(ctx, cred))

	got, err := svc.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
}

func TestUpsertScopeMismatchDeletesRecord(t *testing.T) {
	svc := newTestService(t, &fakeRefresher{})
	ctx := context.Background()

	// Seed a valid record first
	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(time.Hour))))

	// Missing scope
	bad := validCredential("alice", time.Now().Add(time.Hour))
	bad.GrantedScopes = models.RequiredScopes[:len(models.RequiredScopes)-1]
	err := svc.Upsert(ctx, bad)
	assert.ErrorIs(t, err, models.ErrScopeMismatch)

	_, err = svc.Find(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound, "mismatch must delete the stored record")
}

func TestUpsertExtraScopeAlsoMismatches(t *testing.T) {
	svc := newTestService(t, &fakeRefresher{})
	ctx := context.Background()

	bad := validCredential("alice", time.Now().Add(time.Hour))
	bad.GrantedScopes = append(append([]string{}, models.RequiredScopes...), "https://www.googleapis.com/auth/drive")
	err := svc.Upsert(ctx, bad)
	assert.ErrorIs(t, err, models.ErrScopeMismatch)
}

func TestEnsureFreshNoRecord(t *testing.T) {
	refresher := &fakeRefresher{}
	svc := newTestService(t, refresher)

	_, err := svc.EnsureFresh(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	assert.Zero(t, refresher.calls, "no refresh call without a record")
}

func TestEnsureFreshValidTokenSkipsRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(time.Hour))))

	got, err := svc.EnsureFresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Zero(t, refresher.calls)
}

func TestEnsureFreshRefreshesExpiredToken(t *testing.T) {
	refresher := &fakeRefresher{fields: &models.TokenFields{
		AccessToken: "fresh-access",
		Expiry:      time.Now().Add(time.Hour),
	}}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(-time.Minute))))

	got, err := svc.EnsureFresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken, "refresh token kept when response omits one")
	assert.Equal(t, 1, refresher.calls)
	assert.False(t, got.LastRefreshed.IsZero())

	// Persisted, not just returned
	stored, err := svc.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
}

func TestEnsureFreshRotatesRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{fields: &models.TokenFields{
		AccessToken:  "fresh-access",
		RefreshToken: "rotated",
		Expiry:       time.Now().Add(time.Hour),
	}}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(-time.Minute))))

	got, err := svc.EnsureFresh(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.RefreshToken)
}

func TestEnsureFreshRefreshFailureDeletesRecord(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(-time.Minute))))

	_, err := svc.EnsureFresh(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrReauthRequired)

	_, err = svc.Find(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound, "failed refresh must leave no record behind")
}

func TestEnsureFreshScopeDriftDeletesRecord(t *testing.T) {
	refresher := &fakeRefresher{fields: &models.TokenFields{
		AccessToken: "fresh-access",
		Expiry:      time.Now().Add(time.Hour),
		Scopes:      []string{"openid"},
	}}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(-time.Minute))))

	_, err := svc.EnsureFresh(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrReauthRequired)

	_, err = svc.Find(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEnsureFreshExpiredWithoutRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	svc := newTestService(t, refresher)
	ctx := context.Background()

	cred := validCredential("alice", time.Now().Add(-time.Minute))
	cred.RefreshToken = ""
	require.NoError(t, svc.Upsert(ctx, cred))

	_, err := svc.EnsureFresh(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrReauthRequired)
	assert.Zero(t, refresher.calls)

	_, err = svc.Find(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc := newTestService(t, &fakeRefresher{})
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, validCredential("alice", time.Now().Add(time.Hour))))
	require.NoError(t, svc.Remove(ctx, "alice"))
	require.NoError(t, svc.Remove(ctx, "alice"))
}

func TestScopesEqualIsSetComparison(t *testing.T) {
	a := []string{"b", "a", "c"}
	b := []string{"a", "c", "b"}
	assert.True(t, models.ScopesEqual(a, b))
	assert.True(t, models.ScopesEqual([]string{"a", "a", "b"}, []string{"b", "a"}))
	assert.False(t, models.ScopesEqual([]string{"a"}, []string{"a", "b"}))
	assert.False(t, models.ScopesEqual([]string{"a", "b"}, []string{"a"}))
}

package models

import "errors"

// Expected error conditions are sentinel values so callers can branch with
// errors.Is instead of string matching. Wrapping with fmt.Errorf("...: %w")
// preserves the sentinel.
var (
	// ErrNotFound — no stored record for the requested key.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated — the user has no stored credential; they must
	// complete the authorization flow before a digest can be built.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrReauthRequired — the stored credential could not be refreshed or its
	// scopes drifted; the record has been deleted and the user must redo
	// authorization.
	ErrReauthRequired = errors.New("re-authentication required")

	// ErrScopeMismatch — granted scopes differ from the required set.
	ErrScopeMismatch = errors.New("granted scopes do not match required scopes")

	// ErrUpstreamFetch — calendar or mail fetch failed (transport or auth).
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrGenerationEmpty — the generator returned no usable content.
	ErrGenerationEmpty = errors.New("digest generation returned empty result")

	// ErrGenerationTimeout — the generation call exceeded its deadline.
	ErrGenerationTimeout = errors.New("digest generation timed out")

	// ErrRateLimited — the AI layer rejected the call for quota reasons.
	ErrRateLimited = errors.New("rate limited by generation API")

	// ErrCacheWrite — persisting a freshly generated digest failed. Non-fatal:
	// the digest is still returned to the caller.
	ErrCacheWrite = errors.New("digest cache write failed")
)

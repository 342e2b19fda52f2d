// Package common provides shared utilities for the summary service
package common

import "time"

// Default freshness windows for cached state
const (
	DefaultStalenessWindow = 30 * time.Minute // max age of a served digest
	DefaultSweepInterval   = 60 * time.Minute // background digest refresh
	TokenExpiryLeeway      = 1 * time.Minute  // refresh tokens slightly before expiry
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(generated time.Time, ttl time.Duration) bool {
	if generated.IsZero() {
		return false
	}
	return time.Since(generated) < ttl
}

// IsStale is the complement of IsFresh for a concrete entry age.
func IsStale(generated time.Time, ttl time.Duration) bool {
	return !IsFresh(generated, ttl)
}

package models

import "time"

// RequiredScopes is the process-wide scope set every stored credential must
// match exactly. Granting more or fewer scopes than this invalidates the
// record and forces re-authorization.
var RequiredScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
}

// Credential is the stored OAuth token set for one user.
// Exactly one record exists per user; every token refresh mutates it in place.
type Credential struct {
	UserID        string    `json:"user_id" badgerhold:"key"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AccessToken   string    `json:"-"`
	RefreshToken  string    `json:"-"`
	TokenEndpoint string    `json:"token_endpoint"`
	ClientID      string    `json:"-"`
	ClientSecret  string    `json:"-"`
	GrantedScopes []string  `json:"granted_scopes"`
	Expiry        time.Time `json:"expiry"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastRefreshed time.Time `json:"last_refreshed_at"`
}

// Expired reports whether the access token is past (or within leeway of) expiry.
// A zero expiry is treated as expired so unknown tokens are refreshed before use.
func (c *Credential) Expired(leeway time.Duration) bool {
	if c.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(leeway).After(c.Expiry)
}

// TokenFields is the subset of a credential replaced by a token refresh.
type TokenFields struct {
	AccessToken  string
	RefreshToken string // empty means keep the stored refresh token
	Expiry       time.Time
	Scopes       []string // empty means the token response did not restate scopes
}

// ScopesEqual compares two scope lists as sets. Order and duplicates are
// ignored; equality is strict in both directions.
func ScopesEqual(a, b []string) bool {
	as := dedupe(a)
	bs := dedupe(b)
	if len(as) != len(bs) {
		return false
	}
	for s := range as {
		if _, ok := bs[s]; !ok {
			return false
		}
	}
	return true
}

func dedupe(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

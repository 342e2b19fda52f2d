// Package googleauth handles the Google OAuth authorization flow and
// refresh-token exchange for stored credentials.
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/interfaces"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// Profile holds the identity fields returned by the userinfo endpoint.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Client drives the authorization-code flow against Google
type Client struct {
	config *oauth2.Config
	logger *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an OAuth client for the configured Google application.
// Scopes default to the full set the digest pipeline requires.
func NewClient(clientID, clientSecret, redirectURL string, opts ...ClientOption) *Client {
	c := &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       models.RequiredScopes,
			Endpoint:     google.Endpoint,
		},
		logger: common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL builds the consent-screen URL. Offline access and forced
// consent are required so Google returns a refresh token on every grant.
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps an authorization code for token fields and the scope set
// Google actually granted.
func (c *Client) Exchange(ctx context.Context, code string) (*models.TokenFields, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tokenFields(token), nil
}

// FetchProfile retrieves the user's identity using a freshly issued token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	return c.fetchProfileFrom(ctx, userinfoEndpoint, accessToken)
}

func (c *Client) fetchProfileFrom(ctx context.Context, endpoint, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	if profile.Subject == "" {
		return nil, fmt.Errorf("userinfo response missing subject")
	}
	return &profile, nil
}

// ClientID exposes the configured OAuth client ID for credential records.
func (c *Client) ClientID() string { return c.config.ClientID }

// ClientSecret exposes the configured OAuth client secret for credential records.
func (c *Client) ClientSecret() string { return c.config.ClientSecret }

// TokenEndpoint returns the token exchange URL used by refresh calls.
func (c *Client) TokenEndpoint() string { return c.config.Endpoint.TokenURL }

// Refresh exchanges the stored refresh token for new token fields. The stale
// access token is discarded by forcing an already-expired expiry on the seed
// token, so the token source always performs a network refresh.
func (c *Client) Refresh(ctx context.Context, cred *models.Credential) (*models.TokenFields, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("user '%s' has no refresh token: %w", cred.UserID, models.ErrReauthRequired)
	}

	src := c.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	})
	token, err := src.Token()
	if err != nil {
		c.logger.Warn().Err(err).Str("user_id", cred.UserID).Msg("Token refresh failed")
		return nil, fmt.Errorf("failed to refresh token for user '%s': %w", cred.UserID, err)
	}

	fields := tokenFields(token)
	if fields.RefreshToken == "" {
		// Google only rotates the refresh token occasionally; keep the old one.
		fields.RefreshToken = cred.RefreshToken
	}
	return fields, nil
}

// tokenFields converts an oauth2 token into the storable field set,
// pulling the granted scopes out of the token response extras.
func tokenFields(token *oauth2.Token) *models.TokenFields {
	fields := &models.TokenFields{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		fields.Scopes = strings.Fields(scope)
	}
	return fields
}

// Ensure Client implements TokenRefresher
var _ interfaces.TokenRefresher = (*Client)(nil)

package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// handleAuthLogin handles GET /api/auth/login.
// Redirects the browser to the Google consent screen.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	state, err := encodeOAuthState([]byte(s.app.Config.Auth.JWTSecret))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build OAuth state")
		WriteError(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	http.Redirect(w, r, s.app.AuthClient.AuthCodeURL(state), http.StatusFound)
}

// handleAuthCallback handles GET /api/auth/callback.
// Exchanges the authorization code, validates granted scopes, stores the
// credential, and redirects to the frontend with a session token.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		s.logger.Info().Str("error", errParam).Msg("OAuth consent denied")
		s.redirectFrontend(w, r, url.Values{"error": {"consent_denied"}})
		return
	}

	if err := decodeOAuthState(r.URL.Query().Get("state"), []byte(s.app.Config.Auth.JWTSecret)); err != nil {
		s.logger.Warn().Err(err).Msg("OAuth state validation failed")
		WriteError(w, http.StatusBadRequest, "Invalid state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		WriteError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	fields, err := s.app.AuthClient.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Authorization code exchange failed")
		s.redirectFrontend(w, r, url.Values{"error": {"exchange_failed"}})
		return
	}

	profile, err := s.app.AuthClient.FetchProfile(ctx, fields.AccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Profile fetch failed")
		s.redirectFrontend(w, r, url.Values{"error": {"profile_failed"}})
		return
	}

	now := time.Now().UTC()
	cred := &models.Credential{
		UserID:        profile.Subject,
		Email:         profile.Email,
		Name:          profile.Name,
		AccessToken:   fields.AccessToken,
		RefreshToken:  fields.RefreshToken,
		TokenEndpoint: s.app.AuthClient.TokenEndpoint(),
		ClientID:      s.app.AuthClient.ClientID(),
		ClientSecret:  s.app.AuthClient.ClientSecret(),
		GrantedScopes: fields.Scopes,
		Expiry:        fields.Expiry,
		CreatedAt:     now,
	}

	if err := s.app.CredentialService.Upsert(ctx, cred); err != nil {
		if errors.Is(err, models.ErrScopeMismatch) {
			s.logger.Info().Str("user_id", profile.Subject).Msg("Granted scopes incomplete, re-auth required")
			s.redirectFrontend(w, r, url.Values{"error": {"scope_mismatch"}})
			return
		}
		s.logger.Error().Err(err).Str("user_id", profile.Subject).Msg("Failed to store credential")
		s.redirectFrontend(w, r, url.Values{"error": {"storage_failed"}})
		return
	}

	token, err := signSession(cred, &s.app.Config.Auth)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign session token")
		s.redirectFrontend(w, r, url.Values{"error": {"session_failed"}})
		return
	}

	s.logger.Info().Str("user_id", profile.Subject).Str("email", profile.Email).Msg("User authenticated")
	s.redirectFrontend(w, r, url.Values{"token": {token}})
}

// handleAuthLogout handles POST /api/auth/logout.
// Removes the stored credential so future requests require a fresh grant.
func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := sessionFromContext(r.Context())
	if !ok {
		WriteErrorWithCode(w, http.StatusUnauthorized, "Authentication required", "reauth_required")
		return
	}

	if err := s.app.CredentialService.Remove(r.Context(), sess.UserID); err != nil {
		s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("Failed to remove credential")
		WriteError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	s.logger.Info().Str("user_id", sess.UserID).Msg("User logged out")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleAuthMe handles GET /api/auth/me.
func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := sessionFromContext(r.Context())
	if !ok {
		WriteErrorWithCode(w, http.StatusUnauthorized, "Authentication required", "reauth_required")
		return
	}

	cred, err := s.app.CredentialService.Find(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Session outlived the stored credential.
			WriteErrorWithCode(w, http.StatusUnauthorized, "Credential revoked, sign in again", "reauth_required")
			return
		}
		s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("Credential lookup failed")
		WriteError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"user_id": cred.UserID,
		"email":   cred.Email,
		"name":    cred.Name,
	})
}

// redirectFrontend sends the browser back to the frontend with the given
// query values appended.
func (s *Server) redirectFrontend(w http.ResponseWriter, r *http.Request, values url.Values) {
	target := s.app.Config.Auth.FrontendURL
	if target == "" {
		target = "/"
	}
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusFound)
}

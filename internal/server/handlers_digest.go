package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

const defaultHistoryLimit = 10

// handleDigest handles GET /api/digest.
// Serves the cached digest when one is fresh enough; ?force=true always
// rebuilds. Responses carry a cached flag and the generation timestamp.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := sessionFromContext(r.Context())
	if !ok {
		WriteErrorWithCode(w, http.StatusUnauthorized, "Authentication required", "reauth_required")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	result, err := s.app.DigestService.GetDigest(r.Context(), sess.UserID, force)
	if err != nil {
		s.writeDigestError(w, sess.UserID, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"digest":       result.Digest,
		"cached":       result.Cached,
		"generated_at": result.GeneratedAt,
	})
}

// handleDigestHistory handles GET /api/digest/history.
func (s *Server) handleDigestHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := sessionFromContext(r.Context())
	if !ok {
		WriteErrorWithCode(w, http.StatusUnauthorized, "Authentication required", "reauth_required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.app.DigestService.History(r.Context(), sess.UserID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("Digest history lookup failed")
		WriteError(w, http.StatusInternalServerError, "Failed to load digest history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// writeDigestError maps pipeline failures onto HTTP statuses without leaking
// upstream detail to the client.
func (s *Server) writeDigestError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, models.ErrReauthRequired):
		WriteErrorWithCode(w, http.StatusUnauthorized, "Google authorization required", "reauth_required")
	case errors.Is(err, models.ErrRateLimited):
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Digest generation rate limited")
		WriteError(w, http.StatusTooManyRequests, "Service is busy, try again shortly")
	case errors.Is(err, models.ErrGenerationTimeout):
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Digest generation timed out")
		WriteError(w, http.StatusGatewayTimeout, "Digest generation timed out")
	case errors.Is(err, models.ErrUpstreamFetch):
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Upstream fetch failed")
		WriteError(w, http.StatusBadGateway, "Failed to fetch calendar or mail data")
	case errors.Is(err, models.ErrGenerationEmpty):
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Digest generation returned no content")
		WriteError(w, http.StatusBadGateway, "Digest generation produced no content")
	default:
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Digest request failed")
		WriteError(w, http.StatusInternalServerError, "Failed to build digest")
	}
}

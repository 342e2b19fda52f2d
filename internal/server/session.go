package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devangb3/Calendar-Gmail-Summary/internal/common"
	"github.com/devangb3/Calendar-Gmail-Summary/internal/models"
)

// --- Session JWT helpers ---

// signSession creates a signed HMAC-SHA256 session token for the given user.
func signSession(cred *models.Credential, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   cred.UserID,
		"email": cred.Email,
		"name":  cred.Name,
		"iss":   "summary-server",
		"iat":   now.Unix(),
		"exp":   now.Add(config.GetSessionExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateSession parses and validates a session token using the given secret.
func validateSession(tokenString string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// --- OAuth state parameter encoding ---

// stateMaxAge bounds how long a consent-screen round trip may take.
const stateMaxAge = 10 * time.Minute

type oauthStatePayload struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// encodeOAuthState builds a signed state parameter for the authorization URL.
func encodeOAuthState(secret []byte) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	payload := oauthStatePayload{
		Nonce: base64.RawURLEncoding.EncodeToString(nonce),
		TS:    time.Now().Unix(),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadJSON)
	sig := mac.Sum(nil)

	return base64.RawURLEncoding.EncodeToString(payloadJSON) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// decodeOAuthState verifies the signature and age of a state parameter.
func decodeOAuthState(state string, secret []byte) error {
	payloadPart, sigPart, ok := strings.Cut(state, ".")
	if !ok {
		return fmt.Errorf("malformed state parameter")
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return fmt.Errorf("malformed state payload: %w", err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return fmt.Errorf("malformed state signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payloadJSON)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return fmt.Errorf("state signature mismatch")
	}

	var payload oauthStatePayload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return fmt.Errorf("invalid state payload: %w", err)
	}
	if time.Since(time.Unix(payload.TS, 0)) > stateMaxAge {
		return fmt.Errorf("state parameter expired")
	}
	return nil
}

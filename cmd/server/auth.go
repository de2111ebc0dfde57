package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/internal/protocol"
)

var (
	ErrAuthRequired = errors.New("authentication required: send AUTH JWT <token>")
	ErrAuthExpired  = errors.New("authentication expired: send AUTH JWT <token>")
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// Enabled enables authentication. If false, sessions use the server identity.
	Enabled bool `yaml:"enabled"`

	// JWTSecret is the shared secret for HS256/384/512 JWT validation.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer is the expected "iss" claim in JWTs (optional).
	Issuer string `yaml:"issuer"`

	// Audience is the expected "aud" claim in JWTs (optional).
	Audience string `yaml:"audience"`

	// NameClaim is the JWT claim for user's name (default: "name").
	NameClaim string `yaml:"name_claim"`

	// EmailClaim is the JWT claim for user's email (default: "email").
	EmailClaim string `yaml:"email_claim"`
}

// ConnectionState tracks per-connection authentication state.
type ConnectionState struct {
	identity      *core.Identity
	authenticated bool
	tokenExpiry   time.Time
}

// IsAuthenticated returns true if the connection has been authenticated.
func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

// Identity returns the connection's identity, or nil if not authenticated.
func (cs *ConnectionState) Identity() *core.Identity {
	return cs.identity
}

// Expired reports whether the token behind the session has expired.
func (cs *ConnectionState) Expired(now time.Time) bool {
	return cs.authenticated && !cs.tokenExpiry.IsZero() && now.After(cs.tokenExpiry)
}

// authResult represents the result of an authentication attempt.
type authResult struct {
	identity  core.Identity
	expiresAt time.Time
	err       error
}

// validateJWT validates a JWT token and extracts identity claims.
func (s *Server) validateJWT(tokenString string) authResult {
	if s.authConfig == nil || s.authConfig.JWTSecret == "" {
		return authResult{err: errors.New("authentication not configured")}
	}

	nameClaim := s.authConfig.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := s.authConfig.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.authConfig.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	if err != nil {
		return authResult{err: fmt.Errorf("invalid token: %w", err)}
	}

	if !token.Valid {
		return authResult{err: errors.New("invalid token")}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return authResult{err: errors.New("invalid token claims")}
	}

	if s.authConfig.Issuer != "" {
		issuer, _ := claims.GetIssuer()
		if issuer != s.authConfig.Issuer {
			return authResult{err: fmt.Errorf("invalid issuer: expected %s, got %s", s.authConfig.Issuer, issuer)}
		}
	}

	if s.authConfig.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, s.authConfig.Audience) {
			return authResult{err: fmt.Errorf("invalid audience: expected %s", s.authConfig.Audience)}
		}
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)

	if name == "" && email == "" {
		return authResult{err: fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)}
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return authResult{
		identity: core.Identity{
			Name:  name,
			Email: email,
		},
		expiresAt: expiresAt,
	}
}

// isAuthCommand reports whether line starts with the AUTH keyword.
func isAuthCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && strings.EqualFold(fields[0], "AUTH")
}

// parseAuthCommand parses an AUTH command and returns the auth type and token.
// Supported formats:
//   - AUTH JWT <token>
func parseAuthCommand(line string) (authType, token string, err error) {
	if !isAuthCommand(line) {
		return "", "", errors.New("not an AUTH command")
	}

	parts := strings.Fields(line)
	if len(parts) < 3 {
		return "", "", errors.New("invalid AUTH command: expected AUTH <type> <credentials>")
	}

	authType = strings.ToUpper(parts[1])
	token = parts[2]

	switch authType {
	case "JWT":
		return authType, token, nil
	default:
		return "", "", fmt.Errorf("unsupported auth type: %s", authType)
	}
}

// handleAuth processes an AUTH command and returns the response. On success
// the session's engine commits snapshots as the token's identity.
func (s *Server) handleAuth(sess *session, line string) protocol.Response {
	authType, token, err := parseAuthCommand(line)
	if err != nil {
		return protocol.Response{
			Success: false,
			Type:    "auth",
			Error:   err.Error(),
		}
	}

	result := s.validateJWT(token)
	if result.err != nil {
		logging.SecurityEvent("auth_failed", "server",
			"session_id", sess.id,
			"remote", sess.remote,
			"auth_type", authType,
			"error", result.err.Error(),
		)
		return protocol.Response{
			Success: false,
			Type:    "auth",
			Error:   result.err.Error(),
		}
	}

	sess.state.identity = &result.identity
	sess.state.authenticated = true
	sess.state.tokenExpiry = result.expiresAt
	sess.engine.Identity = result.identity

	logging.SecurityEvent("auth_succeeded", "server",
		"session_id", sess.id,
		"remote", sess.remote,
		"identity", result.identity.String(),
	)

	ar := protocol.AuthResponse{
		Authenticated: true,
		Identity:      result.identity.String(),
	}
	if !result.expiresAt.IsZero() {
		ar.ExpiresIn = int(time.Until(result.expiresAt).Seconds())
	}

	data, _ := json.Marshal(ar)
	return protocol.Response{
		Success: true,
		Type:    "auth",
		Result:  data,
	}
}

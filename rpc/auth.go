package rpc

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// ScopeWrite authorises state-changing farm_* methods.
	ScopeWrite = "farm:write"
	// ScopeDev authorises dev_* chain control methods.
	ScopeDev = "farm:dev"
)

// JWTConfig enables HS256 bearer tokens. An empty Secret disables JWT auth.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	ScopeClaim string
	ClockSkew  time.Duration
}

type tokenVerifier struct {
	cfg    JWTConfig
	secret []byte
}

func newTokenVerifier(cfg JWTConfig) (*tokenVerifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, nil
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("rpc: jwt secret must be at least 32 bytes")
	}
	if cfg.ScopeClaim == "" {
		cfg.ScopeClaim = "scope"
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &tokenVerifier{cfg: cfg, secret: []byte(secret)}, nil
}

func (v *tokenVerifier) verify(tokenString string) ([]string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	return extractScopes(claims, v.cfg.ScopeClaim), nil
}

func extractScopes(claims jwt.MapClaims, scopeClaim string) []string {
	switch v := claims[scopeClaim].(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func hasScope(scopes []string, required string) bool {
	for _, scope := range scopes {
		if scope == required {
			return true
		}
	}
	return false
}

func requiredScope(m method) string {
	if m.dev {
		return ScopeDev
	}
	return ScopeWrite
}

// requireAuth accepts the static AuthToken or, when configured, a signed JWT
// carrying the scope the method needs. With neither configured every call is
// allowed.
func (s *Server) requireAuth(r *http.Request, m method) *RPCError {
	if s.cfg.AuthToken == "" && s.auth == nil {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return nil
	}
	if s.auth == nil {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	scopes, err := s.auth.verify(token)
	if err != nil {
		s.logger.Debug("jwt rejected", slog.Any("error", err))
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	if scope := requiredScope(m); !hasScope(scopes, scope) {
		return &RPCError{Code: codeUnauthorized, Message: "insufficient scope", Data: scope}
	}
	return nil
}

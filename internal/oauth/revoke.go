package oauth

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpauth/authserver/internal/store"
)

// Revoke implements RFC 7009: the token is tried first as an access token
// (parsed as a JWT to recover its jti) and, failing that, as a refresh
// token. Per RFC 7009 section 2.2, an unknown or already-revoked token is
// not an error; the endpoint always reports success.
func (e *Engine) Revoke(ctx context.Context, token string) {
	if claims, err := e.keys.Verify(token); err == nil {
		if jti, ok := claims["jti"].(string); ok {
			if sub, ok := claims["sub"].(string); ok {
				_ = e.store.SRem(ctx, store.UserTokensKey(sub), jti)
			}
			_ = e.store.Delete(ctx, store.AccessTokenKey(jti))
			return
		}
	}

	hash := e.hashRefreshToken(token)
	_ = e.store.Delete(ctx, store.RefreshTokenKey(hash))
}

// IntrospectionResult is rendered directly as the RFC 7662 JSON response.
type IntrospectionResult struct {
	Active   bool   `json:"active"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Sub      string `json:"sub,omitempty"`
	Aud      string `json:"aud,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
	TokenType string `json:"token_type,omitempty"`
}

// Introspect implements RFC 7662: access tokens are checked for a live
// signature, expiry, and jti record; refresh tokens are checked for a live
// store record. Anything else reports active=false, never an error.
func (e *Engine) Introspect(ctx context.Context, token string) IntrospectionResult {
	if claims, err := e.keys.Verify(token); err == nil {
		jti, _ := claims["jti"].(string)
		if jti != "" {
			if _, err := e.store.Get(ctx, store.AccessTokenKey(jti)); err == nil {
				return IntrospectionResult{
					Active:    true,
					ClientID:  stringClaim(claims, "client_id"),
					Username:  stringClaim(claims, "username"),
					Scope:     stringClaim(claims, "scope"),
					Sub:       stringClaim(claims, "sub"),
					Aud:       stringClaim(claims, "aud"),
					Exp:       int64Claim(claims, "exp"),
					Iat:       int64Claim(claims, "iat"),
					TokenType: "access_token",
				}
			}
		}
		return IntrospectionResult{Active: false}
	}

	hash := e.hashRefreshToken(token)
	raw, err := e.store.Get(ctx, store.RefreshTokenKey(hash))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return IntrospectionResult{Active: false}
		}
		return IntrospectionResult{Active: false}
	}
	var rt refreshTokenRecord
	if err := json.Unmarshal(raw, &rt); err != nil {
		return IntrospectionResult{Active: false}
	}
	return IntrospectionResult{
		Active:    true,
		ClientID:  rt.ClientID,
		Username:  rt.Username,
		Scope:     rt.Scope,
		Sub:       rt.UserID,
		TokenType: "refresh_token",
	}
}

func stringClaim(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	return v
}

func int64Claim(claims map[string]any, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

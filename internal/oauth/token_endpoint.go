package oauth

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/pkce"
	"github.com/mcpauth/authserver/internal/store"
)

// TokenRequest is the parsed /token body, after client authentication has
// already been performed by the HTTP adapter (Basic or client_secret_post).
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
}

// AuthenticatedClient carries the result of client authentication into the
// grant dispatch so every grant can check client_id ownership uniformly.
type AuthenticatedClient struct {
	Client *clients.Client
}

// Exchange dispatches a /token request to the grant its grant_type names.
func (e *Engine) Exchange(ctx context.Context, client AuthenticatedClient, req TokenRequest) (*issuedTokens, error) {
	if !grantAllowed(client.Client.GrantTypes, req.GrantType) {
		return nil, registry.New(errGrantNotSupported)
	}

	switch req.GrantType {
	case "authorization_code":
		return e.exchangeAuthorizationCode(ctx, client.Client, req)
	case "refresh_token":
		return e.exchangeRefreshToken(ctx, client.Client, req)
	default:
		return nil, registry.New(errGrantNotSupported)
	}
}

func grantAllowed(granted []string, want string) bool {
	for _, g := range granted {
		if g == want {
			return true
		}
	}
	return false
}

func (e *Engine) exchangeAuthorizationCode(ctx context.Context, client *clients.Client, req TokenRequest) (*issuedTokens, error) {
	raw, err := e.store.Take(ctx, store.AuthCodeKey(req.Code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, registry.New(errInvalidGrant)
		}
		return nil, translateStoreErr(err)
	}
	var ac authzCode
	if err := json.Unmarshal(raw, &ac); err != nil {
		return nil, err
	}

	if ac.ClientID != client.ClientID {
		return nil, registry.New(errInvalidGrant)
	}
	if ac.RedirectURI != req.RedirectURI {
		return nil, registry.New(errInvalidGrant)
	}
	if !pkce.Verify(req.CodeVerifier, ac.CodeChallenge) {
		return nil, registry.New(errPKCEFailed)
	}

	id := identity{UserID: ac.UserID, Username: ac.Username, Email: ac.Email}
	return e.issueTokenPair(ctx, client.ClientID, id, ac.Scope)
}

func (e *Engine) exchangeRefreshToken(ctx context.Context, client *clients.Client, req TokenRequest) (*issuedTokens, error) {
	hash := e.hashRefreshToken(req.RefreshToken)
	raw, err := e.store.Take(ctx, store.RefreshTokenKey(hash))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, registry.New(errInvalidGrant)
		}
		return nil, translateStoreErr(err)
	}
	var rt refreshTokenRecord
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, err
	}

	if rt.ClientID != client.ClientID {
		return nil, registry.New(errInvalidGrant)
	}

	_ = e.store.Delete(ctx, store.AccessTokenKey(rt.JTI))
	_ = e.store.SRem(ctx, store.UserTokensKey(rt.UserID), rt.JTI)

	id := identity{UserID: rt.UserID, Username: rt.Username, Email: rt.Email}
	return e.issueTokenPair(ctx, client.ClientID, id, rt.Scope)
}

// issueTokenPair mints a fresh access token and rotating refresh token and
// writes every record the rest of the system depends on: the access-token
// record /verify reads by jti, the refresh-token record keyed by its own
// HMAC hash, and the user's jti index.
func (e *Engine) issueTokenPair(ctx context.Context, clientID string, id identity, scope string) (*issuedTokens, error) {
	accessToken, jti, err := e.issueAccessToken(e.issuer, id, clientID, scope, e.lifetimes.AccessToken)
	if err != nil {
		return nil, err
	}

	atr := accessTokenRecord{ClientID: clientID, UserID: id.UserID, Username: id.Username, Email: id.Email, Scope: scope}
	atrPayload, err := json.Marshal(atr)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, store.AccessTokenKey(jti), atrPayload, e.lifetimes.AccessToken); err != nil {
		return nil, translateStoreErr(err)
	}

	refreshToken, err := generateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	rt := refreshTokenRecord{ClientID: clientID, UserID: id.UserID, Username: id.Username, Email: id.Email, Scope: scope, JTI: jti}
	rtPayload, err := json.Marshal(rt)
	if err != nil {
		return nil, err
	}
	refreshHash := e.hashRefreshToken(refreshToken)
	if err := e.store.Put(ctx, store.RefreshTokenKey(refreshHash), rtPayload, e.lifetimes.RefreshToken); err != nil {
		return nil, translateStoreErr(err)
	}

	if err := e.store.SAdd(ctx, store.UserTokensKey(id.UserID), jti); err != nil {
		return nil, translateStoreErr(err)
	}

	return &issuedTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.lifetimes.AccessToken.Seconds()),
		Scope:        scope,
	}, nil
}

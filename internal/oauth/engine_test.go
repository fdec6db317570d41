// SPDX-FileCopyrightText: Copyright 2026 The authserver Authors.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/idp"
	"github.com/mcpauth/authserver/internal/keys"
	"github.com/mcpauth/authserver/internal/store"
)

const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

type testHarness struct {
	engine *Engine
	client *clients.Registration
	idpSrv *httptest.Server
}

func newHarness(t *testing.T, allowed map[string]bool) *testHarness {
	t.Helper()

	s := store.NewMemory()
	cr := clients.New(s, 0, func(id string) string { return "https://auth.example/register/" + id })

	reg, err := cr.Register(context.Background(), clients.Metadata{
		RedirectURIs: []string{"https://app.example/cb"},
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "upstream-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "login": "octocat", "email": "octocat@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	federator := idp.New(idp.Config{
		ClientID:     "upstream-client",
		ClientSecret: "upstream-secret",
		AuthorizeURL: srv.URL + "/login/oauth/authorize",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		UserInfoURL:  srv.URL + "/user",
		RedirectURI:  "https://auth.example/callback",
	}, func(username string) bool {
		if allowed == nil {
			return true
		}
		return allowed[username]
	})

	km, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "key.pem"), []byte("01234567890123456789012345678901"))
	require.NoError(t, err)

	engine := New(s, cr, federator, km, "https://auth.example", Lifetimes{
		AuthzCode:    60 * time.Second,
		AccessToken:  30 * 24 * time.Hour,
		RefreshToken: 365 * 24 * time.Hour,
	})

	return &testHarness{engine: engine, client: reg, idpSrv: srv}
}

func (h *testHarness) authorizeReq() AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:            h.client.Client.ClientID,
		RedirectURI:         "https://app.example/cb",
		ResponseType:        "code",
		State:               "client-state",
		Scope:               "",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
	}
}

func TestAuthorizeUnknownClientIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	req := h.authorizeReq()
	req.ClientID = "does-not-exist"

	res, err := h.engine.Authorize(context.Background(), req)
	require.NoError(t, err)
	require.Error(t, res.FatalError)

	var e *errs.Error
	require.True(t, errs.As(res.FatalError, &e))
	assert.Equal(t, errUnknownClient.Code, e.Code)
}

func TestAuthorizeRedirectURIMismatchIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	req := h.authorizeReq()
	req.RedirectURI = "https://app.example/cb/"

	res, err := h.engine.Authorize(context.Background(), req)
	require.NoError(t, err)
	require.Error(t, res.FatalError)
}

func TestAuthorizeBadCodeChallengeRedirectsWithError(t *testing.T) {
	h := newHarness(t, nil)
	req := h.authorizeReq()
	req.CodeChallenge = "too-short"

	res, err := h.engine.Authorize(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, res.FatalError)
	require.NotEmpty(t, res.RedirectURL)

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "invalid_request", u.Query().Get("error"))
	assert.Equal(t, "client-state", u.Query().Get("state"))
}

func TestFullAuthorizationCodeFlowWithPKCE(t *testing.T) {
	h := newHarness(t, map[string]bool{"octocat": true})
	ctx := context.Background()

	res, err := h.engine.Authorize(ctx, h.authorizeReq())
	require.NoError(t, err)
	require.NoError(t, res.FatalError)

	redirectTarget, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	idpState := redirectTarget.Query().Get("state")
	require.NotEmpty(t, idpState)

	callbackURL, err := h.engine.Callback(ctx, idpState, "upstream-auth-code")
	require.NoError(t, err)

	cb, err := url.Parse(callbackURL)
	require.NoError(t, err)
	code := cb.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "client-state", cb.Query().Get("state"))

	tokens, err := h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: testVerifier,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)

	claims, err := h.engine.keys.Verify(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "mcp-gateway", claims["aud"])
	assert.Equal(t, "octocat", claims["username"])

	// The same code cannot be redeemed twice.
	_, err = h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: testVerifier,
	})
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errInvalidGrant.Code, e.Code)
}

func TestExchangeRejectsMismatchedPKCEVerifier(t *testing.T) {
	h := newHarness(t, map[string]bool{"octocat": true})
	ctx := context.Background()

	res, err := h.engine.Authorize(ctx, h.authorizeReq())
	require.NoError(t, err)
	idpState := mustQueryParam(t, res.RedirectURL, "state")

	callbackURL, err := h.engine.Callback(ctx, idpState, "upstream-auth-code")
	require.NoError(t, err)
	code := mustQueryParam(t, callbackURL, "code")

	_, err = h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifi",
	})
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errPKCEFailed.Code, e.Code)
}

func TestRefreshTokenRotationIssuesNewTokensAndInvalidatesOld(t *testing.T) {
	h := newHarness(t, map[string]bool{"octocat": true})
	ctx := context.Background()

	tokens := completeFlow(t, h)

	rotated, err := h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: tokens.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.AccessToken, rotated.AccessToken)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// old refresh token is single-use
	_, err = h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: tokens.RefreshToken,
	})
	require.Error(t, err)
}

func TestRevokeThenIntrospectReportsInactive(t *testing.T) {
	h := newHarness(t, map[string]bool{"octocat": true})
	ctx := context.Background()

	tokens := completeFlow(t, h)

	result := h.engine.Introspect(ctx, tokens.AccessToken)
	assert.True(t, result.Active)

	h.engine.Revoke(ctx, tokens.AccessToken)

	result = h.engine.Introspect(ctx, tokens.AccessToken)
	assert.False(t, result.Active)
}

func TestCallbackWithUnknownStateIsBadRequestNotFatal(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.engine.Callback(context.Background(), "never-issued-state", "upstream-auth-code")
	require.Error(t, err)

	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errFlowStateNotFound.Code, e.Code)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
}

func TestRevokeOfUnknownTokenIsNotAnError(t *testing.T) {
	h := newHarness(t, nil)
	assert.NotPanics(t, func() {
		h.engine.Revoke(context.Background(), "not-a-real-token")
	})
}

func completeFlow(t *testing.T, h *testHarness) *issuedTokens {
	t.Helper()
	ctx := context.Background()

	res, err := h.engine.Authorize(ctx, h.authorizeReq())
	require.NoError(t, err)
	idpState := mustQueryParam(t, res.RedirectURL, "state")

	callbackURL, err := h.engine.Callback(ctx, idpState, "upstream-auth-code")
	require.NoError(t, err)
	code := mustQueryParam(t, callbackURL, "code")

	tokens, err := h.engine.Exchange(ctx, AuthenticatedClient{Client: &h.client.Client}, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: testVerifier,
	})
	require.NoError(t, err)
	return tokens
}

func mustQueryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	v := u.Query().Get(key)
	require.NotEmpty(t, v)
	return v
}

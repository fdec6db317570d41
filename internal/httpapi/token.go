package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/oauth"
)

// authenticateClient implements the client authentication step shared by
// /token, /revoke, and /introspect: Basic auth or client_secret_post for
// confidential clients, and a trusted client_id form field alone for
// public clients (token_endpoint_auth_method "none").
func (h *handlers) authenticateClient(r *http.Request) (*clients.Client, error) {
	clientID := r.FormValue("client_id")
	if user, pass, ok := r.BasicAuth(); ok {
		clientID = user
		return h.deps.Clients.AuthenticateSecret(r.Context(), clientID, pass)
	}

	if clientID == "" {
		return nil, registerErrRegistry.New(errMalformedJSON).WithDetail("reason", "missing client_id")
	}

	client, err := h.deps.Clients.Get(r.Context(), clientID)
	if err != nil {
		return nil, err
	}

	if client.TokenEndpointAuthMethod == "none" {
		return client, nil
	}

	secret := r.FormValue("client_secret")
	return h.deps.Clients.AuthenticateSecret(r.Context(), clientID, secret)
}

// token handles POST /token.
func (h *handlers) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errs.Handle(w, registerErrRegistry.New(errMalformedJSON))
		return
	}

	client, err := h.authenticateClient(r)
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	req := oauth.TokenRequest{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		CodeVerifier: r.FormValue("code_verifier"),
		RefreshToken: r.FormValue("refresh_token"),
	}

	tokens, err := h.deps.Engine.Exchange(r.Context(), oauth.AuthenticatedClient{Client: client}, req)
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"token_type":    tokens.TokenType,
		"expires_in":    tokens.ExpiresIn,
		"scope":         tokens.Scope,
	})
}

// revoke handles POST /revoke. Per RFC 7009 section 2.2 it always reports
// success, even for an unknown or already-revoked token, so as not to leak
// whether a token ever existed.
func (h *handlers) revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errs.Handle(w, registerErrRegistry.New(errMalformedJSON))
		return
	}
	if _, err := h.authenticateClient(r); err != nil {
		writeOAuthError(w, err)
		return
	}

	h.deps.Engine.Revoke(r.Context(), r.FormValue("token"))
	w.WriteHeader(http.StatusOK)
}

// introspect handles POST /introspect.
func (h *handlers) introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errs.Handle(w, registerErrRegistry.New(errMalformedJSON))
		return
	}
	if _, err := h.authenticateClient(r); err != nil {
		writeOAuthError(w, err)
		return
	}

	result := h.deps.Engine.Introspect(r.Context(), r.FormValue("token"))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// writeOAuthError renders a /token, /revoke, or /introspect failure. A 401
// here is always a client-authentication failure, so the challenge is the
// Basic scheme these endpoints actually authenticate with, per RFC 7617:
// `WWW-Authenticate: Basic realm="oauth", error="invalid_client"`.
func writeOAuthError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if errs.As(err, &e) {
		wwwAuth := ""
		if e.HTTPStatus == http.StatusUnauthorized {
			wwwAuth = fmt.Sprintf(`Basic realm="oauth", error=%q`, e.OAuthCode())
		}
		e.WriteOAuth(w, wwwAuth)
		return
	}
	errs.Handle(w, err)
}

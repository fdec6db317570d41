// Copyright 2026 The authserver Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package oauth implements the OAuth Engine: the authorization-code state
// machine (INIT -> AWAITING_IDP -> CODE_ISSUED -> TOKENS_ISSUED), the
// refresh-token grant, and RFC 7009/7662 revocation and introspection. Flow
// state lives entirely in the State Store; the Engine itself holds no
// per-request memory across suspension points.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/idp"
	"github.com/mcpauth/authserver/internal/keys"
	"github.com/mcpauth/authserver/internal/pkce"
	"github.com/mcpauth/authserver/internal/store"
)

// Lifetimes bundles the configured TTLs the Engine applies when writing
// records. All are required; callers translate config.Config's durations
// into this struct at wiring time.
type Lifetimes struct {
	AuthzCode    time.Duration
	AccessToken  time.Duration
	RefreshToken time.Duration
}

// Engine is the OAuth Engine. It is safe for concurrent use: all mutable
// state lives in the Store.
type Engine struct {
	store     store.Store
	clients   *clients.Registry
	idp       *idp.Federator
	keys      *keys.Manager
	issuer    string
	lifetimes Lifetimes
}

// New wires an Engine from its component dependencies.
func New(s store.Store, c *clients.Registry, f *idp.Federator, k *keys.Manager, issuer string, lifetimes Lifetimes) *Engine {
	return &Engine{store: s, clients: c, idp: f, keys: k, issuer: issuer, lifetimes: lifetimes}
}

// AuthorizeRequest is the validated input to Authorize, parsed from the
// incoming query string by the HTTP adapter.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeResult is either a redirect to the upstream IdP (success) or an
// unrecoverable failure that must render an HTML error page rather than
// redirect, because the redirect target itself could not be trusted.
type AuthorizeResult struct {
	RedirectURL string
	FatalError  error // non-nil => render an HTML error page, do not redirect
}

// Authorize validates an /authorize request in the exact order the spec
// requires: the client must exist, then redirect_uri must exactly match one
// of its registered values (byte for byte, no trailing-slash forgiveness),
// then response_type and the PKCE parameters are checked. A failure in the
// first two checks is fatal (we cannot trust where to send the user); every
// later failure is reported by redirecting back to the client with an
// error query parameter.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, err := e.clients.Get(ctx, req.ClientID)
	if err != nil {
		return &AuthorizeResult{FatalError: registry.New(errUnknownClient)}, nil
	}

	if !redirectURIRegistered(client.RedirectURIs, req.RedirectURI) {
		return &AuthorizeResult{FatalError: registry.New(errRedirectURIMismatch)}, nil
	}

	if req.ResponseType != "code" {
		return e.redirectWithError(req.RedirectURI, req.State, registry.New(errUnsupportedResponse)), nil
	}

	if req.CodeChallengeMethod != "S256" || !pkce.ValidChallengeLength(req.CodeChallenge) {
		return e.redirectWithError(req.RedirectURI, req.State, registry.New(errBadCodeChallenge)), nil
	}

	idpState, err := idp.GenerateState()
	if err != nil {
		return nil, err
	}

	fs := flowState{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ClientState:         req.State,
		IdpState:            idpState,
		Scope:               req.Scope,
	}
	payload, err := json.Marshal(fs)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, store.FlowStateKey(idpState), payload, 5*time.Minute); err != nil {
		return nil, translateStoreErr(err)
	}

	return &AuthorizeResult{RedirectURL: e.idp.Begin(idpState)}, nil
}

func (e *Engine) redirectWithError(redirectURI, clientState string, cause error) *AuthorizeResult {
	u, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		return &AuthorizeResult{FatalError: cause}
	}
	q := u.Query()
	q.Set("error", oauthCodeFor(cause))
	if clientState != "" {
		q.Set("state", clientState)
	}
	u.RawQuery = q.Encode()
	return &AuthorizeResult{RedirectURL: u.String()}
}

// Callback completes the authorization flow after the user returns from the
// upstream IdP: it atomically consumes the flow state keyed by idpState,
// exchanges the upstream code, mints an authorization code, and returns the
// URL to redirect the user back to the client.
func (e *Engine) Callback(ctx context.Context, idpState, idpCode string) (redirectURL string, err error) {
	raw, err := e.store.Take(ctx, store.FlowStateKey(idpState))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", registry.New(errFlowStateNotFound)
		}
		return "", translateStoreErr(err)
	}
	var fs flowState
	if err := json.Unmarshal(raw, &fs); err != nil {
		return "", err
	}

	profile, err := e.idp.Complete(ctx, idpCode)
	if err != nil {
		return e.redirectWithError(fs.RedirectURI, fs.ClientState, registry.New(errIdpDenied).WithDetail("cause", err.Error()).WithOAuthCode("access_denied")).RedirectURL, nil
	}

	code, err := generateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	ac := authzCode{
		ClientID:            fs.ClientID,
		RedirectURI:         fs.RedirectURI,
		CodeChallenge:       fs.CodeChallenge,
		CodeChallengeMethod: fs.CodeChallengeMethod,
		UserID:              profile.UserID,
		Username:            profile.UserName,
		Email:               profile.Email,
		Scope:               fs.Scope,
	}
	payload, err := json.Marshal(ac)
	if err != nil {
		return "", err
	}
	if err := e.store.Put(ctx, store.AuthCodeKey(code), payload, e.lifetimes.AuthzCode); err != nil {
		return "", translateStoreErr(err)
	}

	u, err := url.Parse(fs.RedirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("code", code)
	if fs.ClientState != "" {
		q.Set("state", fs.ClientState)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redirectURIRegistered(registered []string, candidate string) bool {
	for _, r := range registered {
		if r == candidate {
			return true
		}
	}
	return false
}

func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return registry.New(errStoreUnavailable)
	}
	return err
}

// oauthCodeFor extracts the RFC 6749 error code carried by an *errs.Error,
// falling back to a generic server_error string for anything else.
func oauthCodeFor(err error) string {
	type oauthCoder interface{ OAuthCode() string }
	var oc oauthCoder
	if errors.As(err, &oc) {
		return oc.OAuthCode()
	}
	return "server_error"
}

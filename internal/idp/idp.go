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

// Package idp implements the IdP Federator: it drives the upstream OAuth
// code exchange against GitHub, fetches the authenticated user's profile,
// and enforces the user allowlist.
package idp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/mcpauth/authserver/internal/errs"
)

var registry = errs.NewRegistry("IDP")

var (
	ErrExchangeFailed = registry.Register("EXCHANGE_FAILED", errs.KindInternal, "failed to exchange authorization code with the upstream provider")
	ErrProfileFailed  = registry.Register("PROFILE_FAILED", errs.KindInternal, "failed to fetch user profile from the upstream provider")
	ErrAccessDenied   = registry.Register("ACCESS_DENIED", errs.KindAuthorization, "user is not on the allowlist")
)

// Profile is the minimal identity this server cares about.
type Profile struct {
	UserID   string
	UserName string
	Email    string
}

// AllowlistFunc reports whether a username may authenticate.
type AllowlistFunc func(username string) bool

// Federator wraps the upstream OAuth provider described by Config.
type Federator struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	isAllowed   AllowlistFunc
}

// Config describes how to reach the upstream IdP.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	UserInfoURL  string
	RedirectURI  string
}

// New builds a Federator. isAllowed enforces the ALLOWED_USERS policy.
func New(cfg Config, isAllowed AllowlistFunc) *Federator {
	return &Federator{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: cfg.AuthorizeURL, TokenURL: cfg.TokenURL},
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"read:user", "user:email"},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		isAllowed:   isAllowed,
	}
}

// GenerateState returns a fresh random value to bind the upstream round trip
// to our own flow_state key.
func GenerateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idp: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Begin constructs the upstream authorization URL the user is redirected to,
// binding our own state value.
func (f *Federator) Begin(state string) string {
	return f.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Complete exchanges the authorization code for an upstream token, fetches
// the user's profile, and enforces the allowlist.
func (f *Federator) Complete(ctx context.Context, code string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	tok, err := f.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, registry.NewWithCause(ErrExchangeFailed, err)
	}

	profile, err := f.fetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	if !f.isAllowed(profile.UserName) {
		return nil, registry.New(ErrAccessDenied).WithOAuthCode("access_denied")
	}
	return profile, nil
}

// githubUser mirrors the subset of GitHub's /user response this server
// reads. GitHub is not OIDC-compliant (no id_token, no discovery document),
// so the profile is fetched with a plain authenticated GET rather than an
// OIDC UserInfo call.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

func (f *Federator) fetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.userInfoURL, nil)
	if err != nil {
		return nil, registry.NewWithCause(ErrProfileFailed, err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, registry.NewWithCause(ErrProfileFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, registry.New(ErrProfileFailed).WithDetail("status", resp.StatusCode).WithDetail("body", string(body))
	}

	var gu githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, registry.NewWithCause(ErrProfileFailed, err)
	}

	return &Profile{
		UserID:   fmt.Sprintf("%d", gu.ID),
		UserName: gu.Login,
		Email:    gu.Email,
	}, nil
}

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

// Package discovery renders the OAuth 2.0 Authorization Server Metadata
// document (RFC 8414) and backs the JWKS endpoint. Both must work
// correctly regardless of which subdomain of BASE_DOMAIN the request
// arrived on, so the issuer is taken from configuration rather than the
// incoming request.
package discovery

import (
	"encoding/json"
	"net/http"

	"github.com/mcpauth/authserver/internal/keys"
)

// Metadata is the subset of RFC 8414 fields this server publishes.
type Metadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// Handler serves the discovery document and the JWKS endpoint.
type Handler struct {
	issuer string
	keys   *keys.Manager
}

// New builds a Handler. issuer is the configured ISSUER_URL, used verbatim
// regardless of which BASE_DOMAIN subdomain served the request.
func New(issuer string, k *keys.Manager) *Handler {
	return &Handler{issuer: issuer, keys: k}
}

func (h *Handler) metadata() Metadata {
	return Metadata{
		Issuer:                            h.issuer,
		AuthorizationEndpoint:             h.issuer + "/authorize",
		TokenEndpoint:                     h.issuer + "/token",
		RegistrationEndpoint:              h.issuer + "/register",
		RevocationEndpoint:                h.issuer + "/revoke",
		IntrospectionEndpoint:             h.issuer + "/introspect",
		JWKSURI:                           h.issuer + "/jwks",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic", "none"},
		CodeChallengeMethodsSupported:     []string{"S256"},
		// mcp:* is this gateway's own coarse scope; it is unrelated to the
		// read:user/user:email scopes the IdP Federator requests from GitHub.
		ScopesSupported: []string{"mcp:*"},
	}
}

// ServeMetadata handles GET /.well-known/oauth-authorization-server.
func (h *Handler) ServeMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.metadata())
}

// ServeJWKS handles GET /jwks.
func (h *Handler) ServeJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.keys.JWKS())
}

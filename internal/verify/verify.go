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

// Package verify implements the Verification Endpoint that Traefik calls
// via its ForwardAuth middleware on every request to a protected MCP
// service. It performs exactly one State Store lookup and no outbound
// calls, since it sits on the hot path of every proxied request.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/keys"
	"github.com/mcpauth/authserver/internal/store"
)

var registry = errs.NewRegistry("VERIFY")

var (
	errMissingBearer    = registry.Register("MISSING_BEARER", errs.KindAuthentication, "missing bearer token")
	errTokenInvalid     = registry.Register("TOKEN_INVALID", errs.KindAuthentication, "access token is invalid, expired, or revoked")
	errStoreUnavailable = registry.Register("STORE_UNAVAILABLE", errs.KindUnavailable, "state store unavailable")
)

const expectedAudience = "mcp-gateway"

// Verifier checks a bearer access token and reports the identity it carries.
type Verifier struct {
	keys  *keys.Manager
	store store.Store
}

// New builds a Verifier.
func New(k *keys.Manager, s store.Store) *Verifier {
	return &Verifier{keys: k, store: s}
}

// Result is what a successful verification contributes to the response:
// the headers ForwardAuth copies onto the proxied request.
type Result struct {
	UserID   string
	Username string
	Token    string
}

// Verify validates the bearer token's signature and expiry, then confirms
// its jti still has a live record in the State Store — the one check that
// makes revocation and refresh rotation actually take effect, since a JWT's
// signature alone stays valid until it expires. Deleting a client does not
// remove these records, so its tokens keep verifying until they expire.
func (v *Verifier) Verify(ctx context.Context, bearerToken string) (*Result, error) {
	if bearerToken == "" {
		return nil, registry.New(errMissingBearer)
	}

	claims, err := v.keys.Verify(bearerToken)
	if err != nil {
		return nil, registry.NewWithCause(errTokenInvalid, err)
	}

	aud, _ := claims["aud"].(string)
	if aud != expectedAudience {
		return nil, registry.New(errTokenInvalid).WithDetail("reason", "audience mismatch")
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, registry.New(errTokenInvalid).WithDetail("reason", "missing jti")
	}

	raw, err := v.store.Get(ctx, store.AccessTokenKey(jti))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, registry.New(errTokenInvalid).WithDetail("reason", "token revoked or expired")
		}
		return nil, registry.NewWithCause(errStoreUnavailable, err)
	}

	var record struct {
		Username string `json:"username"`
	}
	username, _ := claims["username"].(string)
	if err := json.Unmarshal(raw, &record); err == nil && record.Username != "" {
		username = record.Username
	}

	sub, _ := claims["sub"].(string)
	return &Result{UserID: sub, Username: username, Token: bearerToken}, nil
}

// ExtractBearer reads the token from the Authorization header, accepted on
// both GET and POST per the spec's explicit resolution of the method
// question.
func ExtractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// WriteHeaders sets the X-User-Id/X-User-Name/X-Auth-Token headers
// ForwardAuth copies onto the proxied upstream request.
func (res *Result) WriteHeaders(w http.ResponseWriter) {
	w.Header().Set("X-User-Id", res.UserID)
	w.Header().Set("X-User-Name", res.Username)
	w.Header().Set("X-Auth-Token", res.Token)
}

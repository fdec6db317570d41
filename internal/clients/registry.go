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

package clients

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcpauth/authserver/internal/store"
)

// Registration is returned only at creation time: it's the one and only
// opportunity the caller has to see the plaintext secret and registration
// access token.
type Registration struct {
	Client                   Client
	ClientSecret             string // empty for public clients
	RegistrationAccessToken  string
	RegistrationClientURI    string
}

// Registry is the Client Registry service: CRUD over client registrations
// backed by the State Store.
type Registry struct {
	store          store.Store
	clientLifetime time.Duration
	clientURI      func(clientID string) string
}

// New builds a Registry. clientLifetime of 0 means registrations never
// expire; clientURI builds the RFC 7592 registration_client_uri for a given
// client id.
func New(s store.Store, clientLifetime time.Duration, clientURI func(string) string) *Registry {
	return &Registry{store: s, clientLifetime: clientLifetime, clientURI: clientURI}
}

// Register validates metadata, generates credentials, and persists a new
// client record.
func (r *Registry) Register(ctx context.Context, meta Metadata) (*Registration, error) {
	ApplyDefaults(&meta)
	if err := ValidateMetadata(&meta); err != nil {
		return nil, err
	}

	clientID, err := randomToken(16)
	if err != nil {
		return nil, err
	}

	var plainSecret, secretHash string
	if meta.TokenEndpointAuthMethod != "none" {
		plainSecret, err = randomToken(32)
		if err != nil {
			return nil, err
		}
		secretHash, err = hashSecret(plainSecret)
		if err != nil {
			return nil, err
		}
	}

	regToken, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	regTokenHash, err := hashSecret(regToken)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	client := Client{
		Metadata:                     meta,
		ClientID:                     clientID,
		ClientSecretHash:             secretHash,
		RegistrationAccessTokenHash:  regTokenHash,
		CreatedAt:                    now,
		ClientSecretExpiresAt:        0,
	}

	if err := r.put(ctx, &client); err != nil {
		return nil, err
	}

	return &Registration{
		Client:                  client,
		ClientSecret:            plainSecret,
		RegistrationAccessToken: regToken,
		RegistrationClientURI:   r.clientURI(clientID),
	}, nil
}

func (r *Registry) put(ctx context.Context, c *Client) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if r.clientLifetime > 0 {
		ttl = r.clientLifetime
	}
	if err := r.store.Put(ctx, store.ClientKey(c.ClientID), payload, ttl); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// Get looks up a client by id, translating a missing record into a
// registered not-found error.
func (r *Registry) Get(ctx context.Context, clientID string) (*Client, error) {
	raw, err := r.store.Get(ctx, store.ClientKey(clientID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, registry.New(errClientNotFound)
		}
		return nil, translateStoreErr(err)
	}
	var c Client
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Authenticate verifies a bearer registration access token against the
// stored hash for exactly one client_id.
func (r *Registry) Authenticate(ctx context.Context, clientID, bearerToken string) (*Client, error) {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.RegistrationAccessTokenHash), []byte(bearerToken)) != nil {
		return nil, registry.New(errBadRegistrationToken)
	}
	return c, nil
}

// AuthenticateSecret verifies a client_secret presented at the token
// endpoint (via HTTP Basic or client_secret_post) against the stored hash.
// Public clients (token_endpoint_auth_method "none") have no secret and
// always fail this check; the HTTP adapter must not call it for them.
func (r *Registry) AuthenticateSecret(ctx context.Context, clientID, secret string) (*Client, error) {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.ClientSecretHash == "" {
		return nil, registry.New(errBadClientSecret)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.ClientSecretHash), []byte(secret)) != nil {
		return nil, registry.New(errBadClientSecret)
	}
	return c, nil
}

// Update replaces a client's metadata in full (RFC 7592 PUT semantics). If
// bodyClientID is non-empty it must match clientID.
func (r *Registry) Update(ctx context.Context, existing *Client, bodyClientID string, meta Metadata) (*Client, error) {
	if bodyClientID != "" && bodyClientID != existing.ClientID {
		return nil, registry.New(errClientIDMismatch).WithOAuthCode("invalid_client_metadata")
	}
	ApplyDefaults(&meta)
	if err := ValidateMetadata(&meta); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Metadata = meta
	if err := r.put(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a client registration. Tokens already issued to it are not
// eagerly revoked here; the Verification Endpoint never consults the client
// registry at all, so a deleted client's outstanding access tokens keep
// verifying until their own jti record expires, bounding the revocation
// window to one access-token lifetime as the spec allows.
func (r *Registry) Delete(ctx context.Context, clientID string) error {
	if err := r.store.Delete(ctx, store.ClientKey(clientID)); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return registry.New(errStoreUnavailable)
	}
	return err
}

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

// Package keys implements the Key Manager: it owns the RSA key pair used to
// sign access-token JWTs, publishes a JWKS document, and holds the
// independent HMAC secret used to protect opaque tokens at rest.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"

	josejwk "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/logging"
)

// MinRSAKeyBits mirrors NIST SP 800-57 minimums for RSA signing keys.
const MinRSAKeyBits = 2048

var registry = errs.NewRegistry("KEYS")

var (
	ErrTokenExpired   = registry.Register("TOKEN_EXPIRED", errs.KindAuthentication, "token is expired")
	ErrTokenMalformed = registry.Register("TOKEN_MALFORMED", errs.KindAuthentication, "token is malformed")
	ErrUnknownKeyID   = registry.Register("UNKNOWN_KID", errs.KindAuthentication, "token signed by unrecognized key")
)

type signingKey struct {
	kid     string
	private *rsa.PrivateKey
}

// Manager holds the current and, during a rotation grace window, previous
// signing key. It is read-mostly after startup: signing and verification
// are pure functions of the held keys and require no per-call locking
// beyond the RWMutex guarding rotation itself.
type Manager struct {
	mu         sync.RWMutex
	current    *signingKey
	previous   *signingKey
	hmacSecret []byte
	path       string
}

// LoadOrGenerate loads an RSA private key PEM from path, generating a fresh
// 2048-bit key and writing it with 0600 permissions if the file is absent.
// hmacSecret is held unmodified for HMAC'ing opaque tokens before storage.
func LoadOrGenerate(path string, hmacSecret []byte) (*Manager, error) {
	m := &Manager{hmacSecret: hmacSecret, path: path}

	priv, err := loadPEM(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("keys: load %s: %w", path, err)
		}
		logging.Infow("signing key not found, generating new RSA key pair", "path", path)
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("keys: generate: %w", err)
		}
		if err := savePEM(path, priv); err != nil {
			return nil, fmt.Errorf("keys: save %s: %w", path, err)
		}
	}

	if priv.N.BitLen() < MinRSAKeyBits {
		return nil, fmt.Errorf("keys: RSA key at %s is %d bits, minimum is %d", path, priv.N.BitLen(), MinRSAKeyBits)
	}

	m.current = &signingKey{kid: deriveKID(priv), private: priv}
	logging.Infow("signing key loaded", "kid", m.current.kid)
	return m, nil
}

// deriveKID computes a stable key identifier from the public modulus, so
// restarts with the same key file keep producing the same kid without a
// separate sidecar record.
func deriveKID(priv *rsa.PrivateKey) string {
	sum := sha256.Sum256(priv.PublicKey.N.Bytes())
	return hex.EncodeToString(sum[:8])
}

func loadPEM(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		keyAny, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		rsaKey, ok := keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key at %s is not an RSA key", path)
		}
		return rsaKey, nil
	}
	return key, nil
}

func savePEM(path string, priv *rsa.PrivateKey) error {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}

// Rotate generates a fresh signing key, demoting the current key to
// "previous" for the grace window so tokens signed moments ago keep
// verifying. The new key is kept in memory only and is not written to path,
// so a restart loads the key file again and the rotated key is lost.
func (m *Manager) Rotate() error {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("keys: rotate: %w", err)
	}
	next := &signingKey{kid: deriveKID(priv), private: priv}

	m.mu.Lock()
	m.previous = m.current
	m.current = next
	m.mu.Unlock()

	logging.Infow("signing key rotated", "new_kid", next.kid)
	return nil
}

// Sign serializes claims into a compact RS256 JWS using the current key.
func (m *Manager) Sign(claims jwt.MapClaims) (string, error) {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = cur.kid
	signed, err := token.SignedString(cur.private)
	if err != nil {
		return "", fmt.Errorf("keys: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact JWS, selecting the verification key
// by its "kid" header among the current and (if within grace) previous
// keys, and returns its claims.
func (m *Manager) Verify(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		return m.publicKeyForKID(kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, registry.New(ErrTokenExpired)
		}
		return nil, registry.NewWithCause(ErrTokenMalformed, err)
	}
	return claims, nil
}

func (m *Manager) publicKeyForKID(kid string) (*rsa.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current != nil && kid == m.current.kid {
		return &m.current.private.PublicKey, nil
	}
	if m.previous != nil && kid == m.previous.kid {
		return &m.previous.private.PublicKey, nil
	}
	return nil, registry.New(ErrUnknownKeyID)
}

// JWKS returns the public portion of the current (and, during a rotation
// grace window, previous) signing keys.
func (m *Manager) JWKS() josejwk.JSONWebKeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]josejwk.JSONWebKey, 0, 2)
	if m.current != nil {
		keys = append(keys, josejwk.JSONWebKey{
			Key: &m.current.private.PublicKey, KeyID: m.current.kid, Algorithm: "RS256", Use: "sig",
		})
	}
	if m.previous != nil {
		keys = append(keys, josejwk.JSONWebKey{
			Key: &m.previous.private.PublicKey, KeyID: m.previous.kid, Algorithm: "RS256", Use: "sig",
		})
	}
	return josejwk.JSONWebKeySet{Keys: keys}
}

// HMACSecret returns the symmetric secret used to hash opaque tokens before
// they are written to the State Store.
func (m *Manager) HMACSecret() []byte { return m.hmacSecret }

// CurrentKID exposes the active key id, mostly useful for tests and admin
// diagnostics.
func (m *Manager) CurrentKID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.kid
}

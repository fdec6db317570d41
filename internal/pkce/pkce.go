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

// Package pkce implements RFC 7636 Proof Key for Code Exchange, S256 method
// only (the plain method is not supported anywhere in this server).
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	// MinVerifierLength and MaxVerifierLength bound a valid code_verifier
	// per RFC 7636 §4.1.
	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// GenerateVerifier returns a cryptographically random code_verifier of 32
// raw bytes, base64url-encoded without padding (43 characters).
func GenerateVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pkce: generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ComputeChallenge derives the S256 code_challenge for a given verifier:
// base64url(sha256(verifier)), unpadded.
func ComputeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidChallengeLength reports whether a code_challenge's length falls in
// the RFC 7636 bounds (inclusive).
func ValidChallengeLength(challenge string) bool {
	return len(challenge) >= MinVerifierLength && len(challenge) <= MaxVerifierLength
}

// Verify reports whether verifier matches the challenge recorded when the
// authorization code was issued, in constant time.
func Verify(verifier, challenge string) bool {
	computed := ComputeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

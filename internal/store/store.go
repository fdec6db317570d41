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

// Package store defines the State Store: a typed, TTL-capable key/value
// abstraction over a Redis-like backend, plus the key schema every other
// component writes through. No component does its own in-process caching of
// tokens or codes — the store is always the source of truth.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get and Take when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// ErrUnavailable is returned when the backing store cannot be reached within
// its deadline. Callers translate this to 503 with Retry-After.
var ErrUnavailable = errors.New("store: unavailable")

// Store is the minimal contract every component needs from the backing
// key/value store. Every method accepts a context carrying the caller's
// deadline; implementations must not block past it.
type Store interface {
	// Put writes value under key unconditionally, expiring after ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// PutIfAbsent atomically creates key only if it does not already exist.
	// It reports false (no error) when the key was already present.
	PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get reads the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take atomically reads and deletes key. Under concurrent callers,
	// exactly one receives the value and every other receives ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// SAdd adds member to the set at key.
	SAdd(ctx context.Context, key, member string) error

	// SRem removes member from the set at key.
	SRem(ctx context.Context, key, member string) error

	// SMembers returns every member of the set at key.
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Key schema. The prefix is bumped (e.g. "v2:oauth:client:") if a value's
// layout ever changes incompatibly.
const schemaPrefix = "oauth"

func ClientKey(clientID string) string     { return fmt.Sprintf("%s:client:%s", schemaPrefix, clientID) }
func FlowStateKey(state string) string     { return fmt.Sprintf("%s:state:%s", schemaPrefix, state) }
func AuthCodeKey(code string) string       { return fmt.Sprintf("%s:code:%s", schemaPrefix, code) }
func AccessTokenKey(jti string) string     { return fmt.Sprintf("%s:token:%s", schemaPrefix, jti) }
func RefreshTokenKey(hash string) string   { return fmt.Sprintf("%s:refresh:%s", schemaPrefix, hash) }
func UserTokensKey(userID string) string   { return fmt.Sprintf("%s:user_tokens:%s", schemaPrefix, userID) }

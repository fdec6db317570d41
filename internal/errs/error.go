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

package errs

import (
	"errors"
	"fmt"
)

// Error is a rich error carrying enough information for the HTTP adapter to
// render the correct status and body without inspecting anything else.
type Error struct {
	Code       string
	Kind       Kind
	HTTPStatus int
	Message    string
	Details    map[string]any

	// oauthCode, when set, is the RFC 6749 `error` value the OAuth endpoints
	// must render instead of the generic envelope (e.g. "invalid_grant").
	oauthCode string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a detail key/value and returns the receiver for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithOAuthCode sets the RFC 6749 error code to render at the OAuth
// endpoints (authorize/token/revoke/introspect), overriding the default
// derived from Kind.
func (e *Error) WithOAuthCode(code string) *Error {
	e.oauthCode = code
	return e
}

// OAuthCode returns the RFC 6749 error value for this error, falling back to
// a kind-derived default when none was set explicitly.
func (e *Error) OAuthCode() string {
	if e.oauthCode != "" {
		return e.oauthCode
	}
	switch e.Kind {
	case KindAuthentication:
		return "invalid_client"
	case KindNotFound, KindConflict:
		return "invalid_grant"
	case KindValidation:
		return "invalid_request"
	case KindUnavailable:
		return "temporarily_unavailable"
	default:
		return "server_error"
	}
}

// As reports whether err (or anything it wraps) is an *Error, assigning it
// to target like errors.As.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

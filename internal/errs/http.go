package errs

import (
	"encoding/json"
	"net/http"
)

// jsonBody is the generic JSON error envelope used by the registration and
// verification endpoints.
type jsonBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON renders e as the generic {code, message, details} envelope,
// setting any WWW-Authenticate the caller supplies for 401s.
func (e *Error) WriteJSON(w http.ResponseWriter, wwwAuthenticate string) {
	if wwwAuthenticate != "" {
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
	}
	e.setRetryAfter(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus)
	_ = json.NewEncoder(w).Encode(jsonBody{Code: e.Code, Message: e.Message, Details: e.Details})
}

// oauthBody is the RFC 6749 §5.2 error envelope required at the OAuth
// endpoints.
type oauthBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteOAuth renders e as the RFC 6749 {error, error_description} envelope.
func (e *Error) WriteOAuth(w http.ResponseWriter, wwwAuthenticate string) {
	if wwwAuthenticate != "" {
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
	}
	e.setRetryAfter(w)
	w.Header().Set("Content-Type", "application/json")
	status := e.HTTPStatus
	if status != 401 && status != http.StatusServiceUnavailable {
		// RFC 6749 uses 400 for every token-endpoint error except invalid_client;
		// a 503 from the State Store is left as-is so callers can retry.
		status = 400
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(oauthBody{Error: e.OAuthCode(), ErrorDescription: e.Message})
}

// setRetryAfter sets the Retry-After header the spec requires whenever a
// State Store outage surfaces as a 503, so ForwardAuth/token/introspect
// callers know to retry rather than treat the failure as permanent.
func (e *Error) setRetryAfter(w http.ResponseWriter) {
	if e.Kind == KindUnavailable {
		w.Header().Set("Retry-After", "1")
	}
}

// Handle writes err as a generic JSON error, coercing unregistered errors to
// an internal error that never leaks its message to the client.
func Handle(w http.ResponseWriter, err error) {
	var e *Error
	if As(err, &e) {
		e.WriteJSON(w, "")
		return
	}
	(&Error{Code: "INTERNAL_UNEXPECTED", Kind: KindInternal, HTTPStatus: 500, Message: "internal server error"}).WriteJSON(w, "")
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/errs"
)

type registrationCtxKey struct{}

func clientFromContext(ctx context.Context) *clients.Client {
	c, _ := ctx.Value(registrationCtxKey{}).(*clients.Client)
	return c
}

// requireRegistrationAuth enforces RFC 7592 bearer authentication on the
// /register/{clientID} management endpoints: the registration access token
// must match the one issued at registration time for this specific
// client_id, checked with a constant-time hash compare inside the registry.
func (h *handlers) requireRegistrationAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")
		token := bearerToken(r)
		if token == "" {
			writeWWWAuthenticate(w, http.StatusUnauthorized, "Bearer")
			return
		}

		client, err := h.deps.Clients.Authenticate(r.Context(), clientID, token)
		if err != nil {
			var e *errs.Error
			if errs.As(err, &e) {
				wwwAuth := ""
				if e.HTTPStatus == http.StatusUnauthorized {
					wwwAuth = "Bearer"
				}
				e.WriteJSON(w, wwwAuth)
				return
			}
			errs.Handle(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), registrationCtxKey{}, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func writeWWWAuthenticate(w http.ResponseWriter, status int, scheme string) {
	w.Header().Set("WWW-Authenticate", scheme)
	w.WriteHeader(status)
}

// writeRegistrationError renders a /register or /register/{id} failure in
// the RFC 7591 §3.2.2 shape: {error, error_description}, 400 for every
// validation failure, not the generic {code, message, details} envelope
// other endpoints use.
func writeRegistrationError(w http.ResponseWriter, err error) {
	var e *errs.Error
	if errs.As(err, &e) {
		e.WriteOAuth(w, "")
		return
	}
	errs.Handle(w, err)
}

// register handles POST /register: unauthenticated client registration.
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	// Decoding through clients.Client keeps unknown metadata fields in Extra.
	var body clients.Client
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeRegistrationError(w, registerErrRegistry.New(errMalformedJSON).WithOAuthCode("invalid_client_metadata"))
		return
	}

	reg, err := h.deps.Clients.Register(r.Context(), body.Metadata)
	if err != nil {
		writeRegistrationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(registrationResponse(reg))
}

func (h *handlers) getClient(w http.ResponseWriter, r *http.Request) {
	client := clientFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(client.PublicView())
}

func (h *handlers) updateClient(w http.ResponseWriter, r *http.Request) {
	existing := clientFromContext(r.Context())

	var body clients.Client
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeRegistrationError(w, registerErrRegistry.New(errMalformedJSON).WithOAuthCode("invalid_client_metadata"))
		return
	}
	updated, err := h.deps.Clients.Update(r.Context(), existing, body.ClientID, body.Metadata)
	if err != nil {
		writeRegistrationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(updated.PublicView())
}

func (h *handlers) deleteClient(w http.ResponseWriter, r *http.Request) {
	client := clientFromContext(r.Context())
	if err := h.deps.Clients.Delete(r.Context(), client.ClientID); err != nil {
		errs.Handle(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// registrationResponse flattens a freshly created Registration into the
// RFC 7591 §3.2.1 response shape: client metadata plus the one-time
// credentials.
func registrationResponse(reg *clients.Registration) map[string]any {
	body := map[string]any{}
	raw, _ := json.Marshal(reg.Client)
	_ = json.Unmarshal(raw, &body)

	if reg.ClientSecret != "" {
		body["client_secret"] = reg.ClientSecret
	}
	body["registration_access_token"] = reg.RegistrationAccessToken
	body["registration_client_uri"] = reg.RegistrationClientURI
	delete(body, "client_secret_hash")
	delete(body, "registration_access_token_hash")
	return body
}

var registerErrRegistry = errs.NewRegistry("HTTPAPI")
var errMalformedJSON = registerErrRegistry.Register("MALFORMED_JSON", errs.KindValidation, "request body is not valid JSON")

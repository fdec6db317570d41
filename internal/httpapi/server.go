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

// Package httpapi wires every component into an HTTP server: routing,
// middleware (request ID, timeouts, recovery, client authentication), and
// response rendering for each endpoint family.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/discovery"
	"github.com/mcpauth/authserver/internal/oauth"
	"github.com/mcpauth/authserver/internal/verify"
)

// InboundDeadline bounds every request this server accepts, per the
// concurrency model's 30 second inbound deadline.
const InboundDeadline = 30 * time.Second

// Deps bundles every component the HTTP adapter dispatches to.
type Deps struct {
	Clients   *clients.Registry
	Engine    *oauth.Engine
	Verifier  *verify.Verifier
	Discovery *discovery.Handler
}

// NewRouter builds the complete route table.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(InboundDeadline))
	// Rate limiting is out of scope here; it belongs at the reverse proxy
	// or as an additional r.Use() middleware if a deployment needs one.

	h := &handlers{deps: deps}

	r.Post("/register", h.register)
	r.Route("/register/{clientID}", func(r chi.Router) {
		r.Use(h.requireRegistrationAuth)
		r.Get("/", h.getClient)
		r.Put("/", h.updateClient)
		r.Delete("/", h.deleteClient)
	})

	r.Get("/authorize", h.authorize)
	r.Get("/callback", h.callback)
	r.Post("/token", h.token)
	r.Post("/revoke", h.revoke)
	r.Post("/introspect", h.introspect)

	r.Get("/verify", h.verify)
	r.Post("/verify", h.verify)

	r.Get("/jwks", deps.Discovery.ServeJWKS)
	r.Get("/.well-known/oauth-authorization-server", deps.Discovery.ServeMetadata)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type handlers struct {
	deps Deps
}

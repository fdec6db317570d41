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

// Command authserverd runs the OAuth 2.1 authorization server core: it
// loads configuration from the environment, wires every component, and
// serves the HTTP surface described in the discovery document until it
// receives a termination signal.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mcpauth/authserver/internal/clients"
	"github.com/mcpauth/authserver/internal/config"
	"github.com/mcpauth/authserver/internal/discovery"
	"github.com/mcpauth/authserver/internal/httpapi"
	"github.com/mcpauth/authserver/internal/idp"
	"github.com/mcpauth/authserver/internal/keys"
	"github.com/mcpauth/authserver/internal/logging"
	"github.com/mcpauth/authserver/internal/oauth"
	"github.com/mcpauth/authserver/internal/store"
	"github.com/mcpauth/authserver/internal/verify"
)

// gracefulShutdownTimeout matches the concurrency model's SIGTERM grace
// period: in-flight requests get 30 seconds to finish before the process
// exits regardless.
const gracefulShutdownTimeout = 30 * time.Second

func main() {
	defer func() { _ = logging.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalw("failed to load configuration", "error", err)
	}

	s, err := newStore(cfg.StoreURL)
	if err != nil {
		logging.Fatalw("failed to initialize state store", "error", err)
	}

	km, err := keys.LoadOrGenerate(cfg.JWTSigningKeyPath, cfg.HMACSecret)
	if err != nil {
		logging.Fatalw("failed to initialize key manager", "error", err)
	}

	clientRegistry := clients.New(s, cfg.ClientLifetime, cfg.RegistrationClientURI)

	federator := idp.New(idp.Config{
		ClientID:     cfg.IDPClientID,
		ClientSecret: cfg.IDPClientSecret,
		AuthorizeURL: cfg.IDPAuthorizeURL,
		TokenURL:     cfg.IDPTokenURL,
		UserInfoURL:  cfg.IDPUserInfoURL,
		RedirectURI:  cfg.IssuerURL + "/callback",
	}, cfg.IsUserAllowed)

	engine := oauth.New(s, clientRegistry, federator, km, cfg.IssuerURL, oauth.Lifetimes{
		AuthzCode:    cfg.AuthzCodeLifetime,
		AccessToken:  cfg.AccessTokenLifetime,
		RefreshToken: cfg.RefreshTokenLifetime,
	})

	verifier := verify.New(km, s)
	disc := discovery.New(cfg.IssuerURL, km)

	router := httpapi.NewRouter(httpapi.Deps{
		Clients:   clientRegistry,
		Engine:    engine,
		Verifier:  verifier,
		Discovery: disc,
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  httpapi.InboundDeadline,
		WriteTimeout: httpapi.InboundDeadline,
	}

	if closer, ok := s.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	go func() {
		logging.Infow("authserverd listening", "addr", cfg.ListenAddr, "issuer", cfg.IssuerURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalw("server exited unexpectedly", "error", err)
		}
	}()

	waitForShutdown(server)
}

func waitForShutdown(server *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh

	logging.Info("shutdown signal received, draining in-flight requests")
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Errorw("graceful shutdown did not complete cleanly", "error", err)
	}
}

// newStore picks the Store implementation from STORE_URL: "memory" (or any
// value starting with "memory:") selects the in-process implementation used
// in tests and single-node deployments; every other value is parsed as a
// "redis"/"rediss" URL for the production backend.
func newStore(storeURL string) (store.Store, error) {
	if storeURL == "memory" || strings.HasPrefix(storeURL, "memory:") {
		return store.NewMemory(), nil
	}
	return store.NewRedis(storeURL)
}

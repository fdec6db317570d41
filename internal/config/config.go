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

// Package config loads the authorization server's configuration from the
// environment. All values must be fully resolved before the rest of the
// server sees a Config; nothing downstream re-reads the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved, validated configuration for one process.
type Config struct {
	IssuerURL  string
	BaseDomain string

	IDPClientID     string
	IDPClientSecret string
	IDPAuthorizeURL string
	IDPTokenURL     string
	IDPUserInfoURL  string

	AllowedUsers []string // nil/empty means nobody; ["*"] means anybody

	JWTSigningKeyPath string
	HMACSecret        []byte

	StoreURL string

	ClientLifetime      time.Duration
	AccessTokenLifetime time.Duration
	RefreshTokenLifetime time.Duration
	AuthzCodeLifetime   time.Duration

	ListenAddr string
}

const (
	defaultClientLifetime       = 90 * 24 * time.Hour
	defaultAccessTokenLifetime  = 30 * 24 * time.Hour
	defaultRefreshTokenLifetime = 365 * 24 * time.Hour
	defaultAuthzCodeLifetime    = 60 * time.Second
	defaultListenAddr           = ":8080"

	// MinHMACSecretBytes mirrors the 256-bit minimum the teacher's signing
	// key validation uses for its own symmetric secret.
	MinHMACSecretBytes = 32
)

// Load reads and validates configuration from the process environment.
// Required keys absent from the environment produce a fatal error; no
// secret is ever given an in-code default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("CLIENT_LIFETIME_SECONDS", int(defaultClientLifetime.Seconds()))
	v.SetDefault("ACCESS_TOKEN_LIFETIME_SECONDS", int(defaultAccessTokenLifetime.Seconds()))
	v.SetDefault("REFRESH_TOKEN_LIFETIME_SECONDS", int(defaultRefreshTokenLifetime.Seconds()))
	v.SetDefault("AUTHZ_CODE_LIFETIME_SECONDS", int(defaultAuthzCodeLifetime.Seconds()))
	v.SetDefault("LISTEN_ADDR", defaultListenAddr)

	cfg := &Config{
		IssuerURL:       v.GetString("ISSUER_URL"),
		BaseDomain:      v.GetString("BASE_DOMAIN"),
		IDPClientID:     v.GetString("IDP_CLIENT_ID"),
		IDPClientSecret: v.GetString("IDP_CLIENT_SECRET"),
		IDPAuthorizeURL: v.GetString("IDP_AUTHORIZE_URL"),
		IDPTokenURL:     v.GetString("IDP_TOKEN_URL"),
		IDPUserInfoURL:  v.GetString("IDP_USERINFO_URL"),
		AllowedUsers:    parseAllowedUsers(v.GetString("ALLOWED_USERS")),

		JWTSigningKeyPath: v.GetString("JWT_SIGNING_KEY_PATH"),
		HMACSecret:        []byte(v.GetString("HMAC_SECRET")),

		StoreURL: v.GetString("STORE_URL"),

		ClientLifetime:       time.Duration(v.GetInt("CLIENT_LIFETIME_SECONDS")) * time.Second,
		AccessTokenLifetime:  time.Duration(v.GetInt("ACCESS_TOKEN_LIFETIME_SECONDS")) * time.Second,
		RefreshTokenLifetime: time.Duration(v.GetInt("REFRESH_TOKEN_LIFETIME_SECONDS")) * time.Second,
		AuthzCodeLifetime:    time.Duration(v.GetInt("AUTHZ_CODE_LIFETIME_SECONDS")) * time.Second,

		ListenAddr: v.GetString("LISTEN_ADDR"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseAllowedUsers splits the comma-separated allowlist. An empty string
// means nobody is allowed; "*" means anybody is.
func parseAllowedUsers(raw string) []string {
	if raw == "" {
		return nil
	}
	if raw == "*" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsUserAllowed reports whether username is permitted to authenticate,
// honoring the "*" wildcard and the empty-allowlist-means-nobody rule.
func (c *Config) IsUserAllowed(username string) bool {
	for _, u := range c.AllowedUsers {
		if u == "*" || u == username {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	var missing []string
	required := map[string]string{
		"ISSUER_URL":         c.IssuerURL,
		"BASE_DOMAIN":        c.BaseDomain,
		"IDP_CLIENT_ID":      c.IDPClientID,
		"IDP_CLIENT_SECRET":  c.IDPClientSecret,
		"IDP_AUTHORIZE_URL":  c.IDPAuthorizeURL,
		"IDP_TOKEN_URL":      c.IDPTokenURL,
		"IDP_USERINFO_URL":   c.IDPUserInfoURL,
		"STORE_URL":          c.StoreURL,
	}
	for key, val := range required {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration keys: %s", strings.Join(missing, ", "))
	}
	if len(c.HMACSecret) < MinHMACSecretBytes {
		return fmt.Errorf("HMAC_SECRET must be at least %d bytes, got %d", MinHMACSecretBytes, len(c.HMACSecret))
	}
	return nil
}

// RegistrationClientURI builds the RFC 7592 management URI for a client id.
func (c *Config) RegistrationClientURI(clientID string) string {
	return fmt.Sprintf("https://%s/register/%s", c.BaseDomain, clientID)
}

package clients

import "net/url"

var registry = newErrRegistry()

// ValidateMetadata applies the RFC 7591 validation rules in the exact order
// the spec requires: redirect_uris presence and shape, then grant_types,
// then response_types, then token_endpoint_auth_method.
func ValidateMetadata(m *Metadata) error {
	if err := validateRedirectURIs(m.RedirectURIs); err != nil {
		return err
	}
	if err := validateGrantTypes(m.GrantTypes); err != nil {
		return err
	}
	if err := validateResponseTypes(m.ResponseTypes); err != nil {
		return err
	}
	if err := validateAuthMethod(m.TokenEndpointAuthMethod); err != nil {
		return err
	}
	return nil
}

func validateRedirectURIs(uris []string) error {
	if len(uris) == 0 {
		return registry.New(errEmptyRedirectURIs).WithOAuthCode("invalid_redirect_uri")
	}
	for _, raw := range uris {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return registry.New(errInvalidRedirectURI).WithDetail("redirect_uri", raw).WithOAuthCode("invalid_redirect_uri")
		}
		if u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
			return registry.New(errInsecureRedirectURI).WithDetail("redirect_uri", raw).WithOAuthCode("invalid_redirect_uri")
		}
	}
	return nil
}

// isLoopbackHost allows the http:// scheme exception RFC 8252 grants native
// apps redirecting back to a local port, without relaxing /authorize's
// exact-match requirement on the matching itself.
func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]" || host == "::1"
}

func validateGrantTypes(grantTypes []string) error {
	for _, gt := range grantTypes {
		if _, ok := SupportedGrantTypes[gt]; !ok {
			return registry.New(errUnsupportedGrantType).WithDetail("grant_type", gt).WithOAuthCode("invalid_client_metadata")
		}
	}
	return nil
}

func validateResponseTypes(responseTypes []string) error {
	if len(responseTypes) == 0 {
		return nil
	}
	if len(responseTypes) != 1 || responseTypes[0] != "code" {
		return registry.New(errUnsupportedResponseType).WithOAuthCode("invalid_client_metadata")
	}
	return nil
}

func validateAuthMethod(method string) error {
	if method == "" {
		return nil
	}
	if _, ok := SupportedAuthMethods[method]; !ok {
		return registry.New(errUnsupportedAuthMethod).WithDetail("token_endpoint_auth_method", method).WithOAuthCode("invalid_client_metadata")
	}
	return nil
}

// ApplyDefaults fills GrantTypes/ResponseTypes/TokenEndpointAuthMethod with
// the spec's defaults when the caller omitted them.
func ApplyDefaults(m *Metadata) {
	if len(m.GrantTypes) == 0 {
		m.GrantTypes = []string{"authorization_code", "refresh_token"}
	}
	if len(m.ResponseTypes) == 0 {
		m.ResponseTypes = []string{"code"}
	}
	if m.TokenEndpointAuthMethod == "" {
		m.TokenEndpointAuthMethod = "client_secret_basic"
	}
}

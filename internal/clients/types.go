// Package clients implements the Client Registry: RFC 7591 dynamic
// registration and RFC 7592 management of OAuth client records.
package clients

import "encoding/json"

// SupportedGrantTypes is the complete set of grant types a client may
// request.
var SupportedGrantTypes = map[string]struct{}{
	"authorization_code": {},
	"refresh_token":       {},
}

// SupportedAuthMethods is the complete set of recognized
// token_endpoint_auth_method values.
var SupportedAuthMethods = map[string]struct{}{
	"client_secret_post":  {},
	"client_secret_basic": {},
	"none":                {},
}

// Metadata is the RFC 7591 client metadata both accepted on input and
// echoed on output. Fields this server doesn't recognize are preserved
// verbatim in Extra and merged back into the JSON representation, per
// RFC 7591 §3.2.1.
type Metadata struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	TOSURI                  string   `json:"tos_uri,omitempty"`
	PolicyURI               string   `json:"policy_uri,omitempty"`
	SoftwareID              string   `json:"software_id,omitempty"`
	SoftwareVersion         string   `json:"software_version,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownMetadataFields = map[string]struct{}{
	"redirect_uris": {}, "client_name": {}, "client_uri": {}, "logo_uri": {},
	"contacts": {}, "tos_uri": {}, "policy_uri": {}, "software_id": {},
	"software_version": {}, "grant_types": {}, "response_types": {},
	"token_endpoint_auth_method": {},
}

// Client is a stored client registration: the public metadata plus the
// fields that never leave the State Store in plaintext.
type Client struct {
	Metadata

	ClientID                    string `json:"client_id"`
	ClientSecretHash             string `json:"client_secret_hash,omitempty"`
	RegistrationAccessTokenHash string `json:"registration_access_token_hash,omitempty"`
	CreatedAt                    int64  `json:"created_at"`
	ClientSecretExpiresAt        int64  `json:"client_secret_expires_at"`
}

var knownClientFields = mergeKnown(knownMetadataFields, map[string]struct{}{
	"client_id": {}, "client_secret_hash": {}, "registration_access_token_hash": {},
	"created_at": {}, "client_secret_expires_at": {},
})

func mergeKnown(sets ...map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// MarshalJSON flattens the known fields and the preserved extra metadata
// into a single JSON object, known fields taking precedence on collision.
func (c Client) MarshalJSON() ([]byte, error) {
	type known Client
	base, err := json.Marshal(known(c))
	if err != nil {
		return nil, err
	}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(base, &flat); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, isKnown := knownClientFields[k]; !isKnown {
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra.
func (c *Client) UnmarshalJSON(data []byte) error {
	type known Client
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	*c = Client(k)

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	c.Extra = make(map[string]json.RawMessage)
	for key, v := range flat {
		if _, isKnown := knownClientFields[key]; !isKnown {
			c.Extra[key] = v
		}
	}
	return nil
}

// PublicView returns the metadata safe to return from GET /register/{id}:
// never the client secret or registration access token themselves.
func (c Client) PublicView() Client {
	view := c
	view.ClientSecretHash = ""
	view.RegistrationAccessTokenHash = ""
	return view
}

package oauth

// flowState is persisted under FlowStateKey between /authorize and /callback.
// It carries everything /callback needs to finish the round trip without
// trusting anything the client sends back except the opaque state value
// itself.
type flowState struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	ClientState         string `json:"client_state"`
	IdpState            string `json:"idp_state"`
	Scope               string `json:"scope"`
}

// authzCode is persisted under AuthCodeKey between /callback and /token.
type authzCode struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	UserID              string `json:"user_id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	Scope               string `json:"scope"`
}

// accessTokenRecord is persisted under AccessTokenKey for the lifetime of an
// access token, keyed by its jti. Its presence is exactly what /verify
// checks after validating the JWT signature and expiry.
type accessTokenRecord struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Scope    string `json:"scope"`
}

// refreshTokenRecord is persisted under RefreshTokenKey(hash), where hash is
// an HMAC of the opaque refresh token value, not a bcrypt hash: the value
// must be deterministically re-derivable from the token presented at
// /token so it can be used as the lookup key itself.
type refreshTokenRecord struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Scope    string `json:"scope"`
	JTI      string `json:"jti"`
}

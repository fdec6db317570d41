package oauth

import "github.com/mcpauth/authserver/internal/errs"

var registry = errs.NewRegistry("OAUTH")

var (
	errUnknownClient       = registry.Register("UNKNOWN_CLIENT", errs.KindValidation, "client_id is not registered")
	errRedirectURIMismatch = registry.Register("REDIRECT_URI_MISMATCH", errs.KindValidation, "redirect_uri does not exactly match a registered redirect_uris entry")
	errUnsupportedResponse = registry.Register("UNSUPPORTED_RESPONSE_TYPE", errs.KindValidation, "response_type must be code")
	errBadCodeChallenge    = registry.Register("BAD_CODE_CHALLENGE", errs.KindValidation, "code_challenge_method must be S256 with a challenge of 43 to 128 characters")
	errFlowStateNotFound   = registry.Register("FLOW_STATE_NOT_FOUND", errs.KindValidation, "authorization flow state not found or already consumed")
	errIdpDenied           = registry.Register("IDP_DENIED", errs.KindAuthorization, "upstream identity provider denied or rejected the request")
	errGrantNotSupported   = registry.Register("GRANT_NOT_SUPPORTED", errs.KindValidation, "grant_type is not supported by this client")
	errInvalidGrant        = registry.Register("INVALID_GRANT", errs.KindConflict, "authorization grant is invalid, expired, or already used")
	errPKCEFailed          = registry.Register("PKCE_FAILED", errs.KindConflict, "code_verifier does not match the code_challenge issued with this code")
	errStoreUnavailable    = registry.Register("STORE_UNAVAILABLE", errs.KindUnavailable, "state store unavailable")
)

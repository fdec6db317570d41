package clients

import "github.com/mcpauth/authserver/internal/errs"

func newErrRegistry() *errs.Registry { return errs.NewRegistry("CLIENTS") }

var (
	errEmptyRedirectURIs       = registry.Register("EMPTY_REDIRECT_URIS", errs.KindValidation, "redirect_uris must be a non-empty array")
	errInvalidRedirectURI      = registry.Register("INVALID_REDIRECT_URI", errs.KindValidation, "redirect_uris must each be an absolute URI with scheme and authority")
	errInsecureRedirectURI     = registry.Register("INSECURE_REDIRECT_URI", errs.KindValidation, "http:// redirect_uris are only permitted for localhost or 127.0.0.1")
	errUnsupportedGrantType    = registry.Register("UNSUPPORTED_GRANT_TYPE", errs.KindValidation, "grant_types must be a subset of authorization_code, refresh_token")
	errUnsupportedResponseType = registry.Register("UNSUPPORTED_RESPONSE_TYPE", errs.KindValidation, `response_types must be ["code"]`)
	errUnsupportedAuthMethod   = registry.Register("UNSUPPORTED_AUTH_METHOD", errs.KindValidation, "token_endpoint_auth_method must be one of client_secret_post, client_secret_basic, none")
	errClientNotFound          = registry.Register("CLIENT_NOT_FOUND", errs.KindNotFound, "client not found")
	errBadRegistrationToken    = registry.Register("BAD_REGISTRATION_TOKEN", errs.KindAuthentication, "registration access token is invalid")
	errBadClientSecret         = registry.Register("BAD_CLIENT_SECRET", errs.KindAuthentication, "client authentication failed")
	errClientIDMismatch        = registry.Register("CLIENT_ID_MISMATCH", errs.KindValidation, "client_id in body must match the path client_id")
	errStoreUnavailable        = registry.Register("STORE_UNAVAILABLE", errs.KindUnavailable, "state store unavailable")
)

// Package errs provides a registry-based typed error system shared by every
// component. Handlers never let a bare error cross the HTTP boundary; they
// convert it to an *errs.Error at the point it's raised, and the HTTP
// adapter is the only place that knows how to render one.
package errs

// Kind categorizes an error for HTTP status mapping and response shaping.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindUnavailable    Kind = "UNAVAILABLE"
	KindInternal       Kind = "INTERNAL"
)

func (k Kind) defaultHTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindAuthentication:
		return 401
	case KindAuthorization:
		return 403
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}

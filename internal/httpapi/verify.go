package httpapi

import (
	"fmt"
	"net/http"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/verify"
)

// verify handles GET and POST /verify, the ForwardAuth target Traefik calls
// on every proxied request. Both methods are accepted identically.
func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	token := verify.ExtractBearer(r)

	result, err := h.deps.Verifier.Verify(r.Context(), token)
	if err != nil {
		var e *errs.Error
		if errs.As(err, &e) {
			wwwAuth := ""
			if e.HTTPStatus == http.StatusUnauthorized {
				wwwAuth = fmt.Sprintf(`Bearer realm="mcp", error=%q`, "invalid_token")
			}
			e.WriteJSON(w, wwwAuth)
			return
		}
		errs.Handle(w, err)
		return
	}

	result.WriteHeaders(w)
	w.WriteHeader(http.StatusOK)
}

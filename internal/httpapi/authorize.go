package httpapi

import (
	"fmt"
	"net/http"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/oauth"
)

// authorize handles GET /authorize. A fatal validation failure (unknown
// client_id or a redirect_uri that doesn't exactly match a registered one)
// renders an HTML error page rather than redirecting, since the redirect
// target itself cannot be trusted in that case.
func (h *handlers) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := oauth.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		State:               q.Get("state"),
		Scope:               q.Get("scope"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	result, err := h.deps.Engine.Authorize(r.Context(), req)
	if err != nil {
		errs.Handle(w, err)
		return
	}

	if result.FatalError != nil {
		writeErrorPage(w, result.FatalError)
		return
	}

	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// callback handles GET /callback, the redirect target the upstream IdP
// sends the user back to.
func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	idpState := q.Get("state")
	idpCode := q.Get("code")

	redirectURL, err := h.deps.Engine.Callback(r.Context(), idpState, idpCode)
	if err != nil {
		errs.Handle(w, err)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func writeErrorPage(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>Authorization Error</title></head>"+
		"<body><h1>Authorization Error</h1><p>%s</p></body></html>", html(err.Error()))
}

func html(s string) string {
	replacer := map[byte]string{'<': "&lt;", '>': "&gt;", '&': "&amp;"}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if rep, ok := replacer[s[i]]; ok {
			out = append(out, rep...)
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

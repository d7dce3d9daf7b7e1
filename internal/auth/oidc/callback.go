package oidc

import (
	"crypto/subtle"
	"fmt"
	"html"
	"net/http"

	"github.com/gwlsn/signin/internal/auth"
)

type callbackResult struct {
	code string
	err  error
}

const callbackPage = `<!doctype html><html><body><p>%s</p><p>You can close this window and return to the terminal.</p></body></html>`

// callbackHandler handles the provider redirect on the loopback listener.
// Requests carrying the wrong state are answered with 400 and otherwise
// ignored, so a stray request cannot end the consent. The first valid
// callback is delivered to results; later ones are refused.
func (p *Provider) callbackHandler(expectedState string, results chan<- callbackResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		state := query.Get("state")
		if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		if _, err := p.verifyStateValue(state); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result callbackResult
		switch errCode := query.Get("error"); {
		case errCode == "access_denied":
			result.err = auth.ErrCancelled
		case errCode != "":
			msg := query.Get("error_description")
			if msg == "" {
				msg = errCode
			}
			result.err = &auth.RejectionError{Code: errCode, Message: msg}
		case query.Get("code") == "":
			result.err = &auth.RejectionError{Code: "missing_code", Message: "missing authorization code"}
		default:
			result.code = query.Get("code")
		}

		select {
		case results <- result:
		default:
			http.Error(w, "sign-in already completed", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if result.err != nil {
			_, _ = w.Write([]byte(sprintfPage("Sign-in did not complete.")))
			return
		}
		_, _ = w.Write([]byte(sprintfPage("Sign-in complete.")))
	}
}

func sprintfPage(headline string) string {
	return fmt.Sprintf(callbackPage, html.EscapeString(headline))
}

package identitytoolkit

import (
	"strings"

	"github.com/gwlsn/signin/internal/auth"
)

// Short human messages for the error codes the API returns most often.
var messages = map[string]string{
	"EMAIL_NOT_FOUND":             "no account found for this email",
	"INVALID_PASSWORD":            "invalid credentials",
	"INVALID_LOGIN_CREDENTIALS":   "invalid credentials",
	"INVALID_EMAIL":               "the email address is badly formatted",
	"MISSING_PASSWORD":            "password required",
	"MISSING_EMAIL":               "email required",
	"USER_DISABLED":               "this account has been disabled",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "too many attempts, try again later",
	"INVALID_IDP_RESPONSE":        "the provider credential is malformed or has expired",
	"OPERATION_NOT_ALLOWED":       "this sign-in method is disabled",
	"API_KEY_INVALID":             "the API key is not valid",
}

// rejection converts an API error message ("CODE" or "CODE : detail") into a RejectionError.
func rejection(raw string) *auth.RejectionError {
	code, detail, _ := strings.Cut(raw, ":")
	code = strings.TrimSpace(code)
	detail = strings.TrimSpace(detail)

	if msg, ok := messages[code]; ok {
		return &auth.RejectionError{Code: code, Message: msg}
	}
	if detail != "" {
		return &auth.RejectionError{Code: code, Message: detail}
	}
	return &auth.RejectionError{Code: code, Message: strings.ToLower(strings.ReplaceAll(code, "_", " "))}
}

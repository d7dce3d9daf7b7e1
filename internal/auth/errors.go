package auth

import (
	"context"
	"errors"
)

var (
	ErrIdentifierRequired = errors.New("identifier required")
	ErrSecretRequired     = errors.New("secret required")
	ErrCredentialRequired = errors.New("federated credential required")

	ErrRejected        = errors.New("credentials rejected")
	ErrCancelled       = errors.New("sign-in cancelled")
	ErrTransport       = errors.New("failed to reach authentication service")
	ErrInvalidResponse = errors.New("invalid response from authentication service")
	ErrNoProvider      = errors.New("federated provider not configured")
)

// Kind classifies a failure for callers that branch on it.
type Kind int

const (
	KindNone Kind = iota
	KindLocalValidation
	KindBackendRejection
	KindProviderCancelled
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindLocalValidation:
		return "local_validation"
	case KindBackendRejection:
		return "backend_rejection"
	case KindProviderCancelled:
		return "provider_cancelled"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// RejectionError carries the backend's reason for refusing a request.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Is makes every RejectionError match ErrRejected.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Classify maps an error onto the failure taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrIdentifierRequired),
		errors.Is(err, ErrSecretRequired),
		errors.Is(err, ErrCredentialRequired),
		errors.Is(err, ErrNoProvider):
		return KindLocalValidation
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled):
		return KindProviderCancelled
	case errors.Is(err, ErrRejected):
		return KindBackendRejection
	default:
		return KindTransport
	}
}

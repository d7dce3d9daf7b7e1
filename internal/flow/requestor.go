// Package flow turns user intents into single-completion requests against
// the auth backend and the configured federated providers.
package flow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/logger"
)

// Requestor dispatches sign-in, reset and sign-out requests. Every method
// returns immediately; the result arrives through the returned Pending.
type Requestor struct {
	backend   auth.Backend
	providers *auth.Registry
}

// NewRequestor creates a requestor. providers may be nil when no federated
// sign-in is configured.
func NewRequestor(backend auth.Backend, providers *auth.Registry) *Requestor {
	return &Requestor{backend: backend, providers: providers}
}

// SignIn validates creds and asks the backend to sign in with them.
func (r *Requestor) SignIn(ctx context.Context, creds auth.Credentials) *auth.Pending {
	if err := creds.Validate(); err != nil {
		return rejectLocally("sign_in", err)
	}
	return r.dispatch(ctx, "sign_in", func(ctx context.Context) auth.Outcome {
		session, err := r.backend.SignInWithPassword(ctx, creds)
		if err != nil {
			return auth.Failure(err)
		}
		return auth.Success(session)
	})
}

// SignInWithFederatedCredential exchanges a credential obtained elsewhere
// for a backend session.
func (r *Requestor) SignInWithFederatedCredential(ctx context.Context, cred auth.FederatedCredential) *auth.Pending {
	if cred.IDToken == "" {
		return rejectLocally("sign_in_federated", auth.ErrCredentialRequired)
	}
	return r.dispatch(ctx, "sign_in_federated", func(ctx context.Context) auth.Outcome {
		return r.exchange(ctx, cred)
	})
}

// SignInWithProvider runs the named provider's consent and exchanges the
// resulting credential. A consent that does not produce a credential never
// reaches the backend.
func (r *Requestor) SignInWithProvider(ctx context.Context, name string) *auth.Pending {
	provider, ok := r.providers.Provider(name)
	if !ok {
		return rejectLocally("sign_in_provider", fmt.Errorf("%w: %s", auth.ErrNoProvider, name))
	}
	return r.dispatch(ctx, "sign_in_provider", func(ctx context.Context) auth.Outcome {
		cred, err := provider.Consent(ctx)
		if err != nil {
			return auth.Failure(err)
		}
		if cred.IDToken == "" {
			return auth.Failure(auth.ErrCredentialRequired)
		}
		return r.exchange(ctx, cred)
	})
}

// RequestPasswordReset asks the backend to email a reset link. A blank
// identifier fails without contacting the backend.
func (r *Requestor) RequestPasswordReset(ctx context.Context, req auth.ResetRequest) *auth.Pending {
	if err := req.Validate(); err != nil {
		return rejectLocally("password_reset", err)
	}
	return r.dispatch(ctx, "password_reset", func(ctx context.Context) auth.Outcome {
		if err := r.backend.SendPasswordReset(ctx, req.Identifier); err != nil {
			return auth.Failure(err)
		}
		return auth.Success(nil)
	})
}

// SignOut invalidates the backend session.
func (r *Requestor) SignOut(ctx context.Context) *auth.Pending {
	return r.dispatch(ctx, "sign_out", func(ctx context.Context) auth.Outcome {
		if err := r.backend.SignOut(ctx); err != nil {
			return auth.Failure(err)
		}
		return auth.Success(nil)
	})
}

// SignOutFederated invalidates the backend session and makes the named
// provider forget its account selection. The provider step always runs,
// so the next consent asks for an account even when the backend step
// failed. It completes after both steps; only a backend failure fails the
// request, a provider failure is logged.
func (r *Requestor) SignOutFederated(ctx context.Context, name string) *auth.Pending {
	return r.dispatch(ctx, "sign_out_federated", func(ctx context.Context) auth.Outcome {
		backendErr := r.backend.SignOut(ctx)

		if provider, ok := r.providers.Provider(name); ok {
			if err := provider.SignOut(ctx); err != nil {
				logger.Warn("Federated sign-out failed", "provider", name, "error", err)
			}
		} else {
			logger.Warn("No federated provider to sign out of", "provider", name)
		}

		if backendErr != nil {
			return auth.Failure(backendErr)
		}
		return auth.Success(nil)
	})
}

// CurrentSession returns the backend's signed-in session, if any.
func (r *Requestor) CurrentSession() (*auth.Session, bool) {
	return r.backend.CurrentSession()
}

// Providers lists the configured federated provider names.
func (r *Requestor) Providers() []string {
	return r.providers.Names()
}

func (r *Requestor) exchange(ctx context.Context, cred auth.FederatedCredential) auth.Outcome {
	session, err := r.backend.SignInWithCredential(ctx, cred)
	if err != nil {
		return auth.Failure(err)
	}
	return auth.Success(session)
}

// dispatch runs fn on its own goroutine, detached from the caller's
// cancellation.
func (r *Requestor) dispatch(ctx context.Context, op string, fn func(context.Context) auth.Outcome) *auth.Pending {
	id := uuid.NewString()
	logger.Debug("Dispatching request", "op", op, "request_id", id, "backend", r.backend.Name())
	return auth.Go(context.WithoutCancel(ctx), func(ctx context.Context) auth.Outcome {
		outcome := fn(ctx)
		if outcome.OK() {
			logger.Debug("Request completed", "op", op, "request_id", id)
		} else {
			logger.Debug("Request failed", "op", op, "request_id", id, "kind", outcome.Kind().String(), "error", outcome.Err)
		}
		return outcome
	})
}

func rejectLocally(op string, err error) *auth.Pending {
	logger.Debug("Request rejected locally", "op", op, "error", err)
	return auth.Resolved(auth.Failure(err))
}

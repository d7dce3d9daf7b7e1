package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/nav"
)

const (
	msgLoginSuccess   = "Login Successful!"
	msgLoginFailed    = "Login failed"
	msgResetBlank     = "Please enter your registered email"
	msgResetSent      = "Reset link sent to your email"
	msgResetNotFound  = "Registered Email not Found"
	msgProviderOK     = "%s Sign-in Successful"
	msgProviderFailed = "%s Sign-in failed"
)

// Login collects credentials and drives password, federated and reset
// requests.
type Login struct {
	deps Deps

	mu              sync.Mutex
	identifier      string
	secret          string
	resetOpen       bool
	resetIdentifier string
}

func NewLogin(deps Deps) *Login {
	return &Login{deps: deps}
}

func (l *Login) SetIdentifier(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.identifier = v
}

func (l *Login) SetSecret(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.secret = v
}

func (l *Login) Identifier() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.identifier
}

// Submit signs in with the entered credentials. On success the login
// route is replaced by home; on failure the screen stays put.
func (l *Login) Submit(ctx context.Context) *auth.Pending {
	l.mu.Lock()
	creds := auth.Credentials{Identifier: l.identifier, Secret: l.secret}
	l.mu.Unlock()

	return l.deps.onComplete(l.deps.Requestor.SignIn(ctx, creds), func(o auth.Outcome) {
		if !o.OK() {
			msg := o.Message()
			if msg == "" {
				msg = msgLoginFailed
			}
			l.deps.Messenger.Show(msg)
			return
		}
		l.deps.Messenger.Show(msgLoginSuccess)
		l.deps.navigate(nav.Home, nav.PopUpTo(nav.Login, true))
	})
}

// SignInWith runs the named federated provider.
func (l *Login) SignInWith(ctx context.Context, provider string) *auth.Pending {
	return l.deps.onComplete(l.deps.Requestor.SignInWithProvider(ctx, provider), func(o auth.Outcome) {
		if !o.OK() {
			l.deps.Messenger.Show(providerFailure(provider, o))
			return
		}
		l.deps.Messenger.Show(fmt.Sprintf(msgProviderOK, provider))
		l.deps.navigate(nav.Home, nav.PopUpTo(nav.Login, true))
	})
}

// providerFailure reports a refused exchange plainly and adds the detail for
// failures that happened before the backend saw a credential.
func providerFailure(provider string, o auth.Outcome) string {
	base := fmt.Sprintf(msgProviderFailed, provider)
	if errors.Is(o.Err, auth.ErrRejected) {
		return base
	}
	return base + ": " + o.Message()
}

func (l *Login) OpenReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetOpen = true
}

func (l *Login) CancelReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetOpen = false
	l.resetIdentifier = ""
}

func (l *Login) ResetOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetOpen
}

func (l *Login) SetResetIdentifier(v string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIdentifier = v
}

// SubmitReset requests a reset link for the address typed into the dialog.
// The dialog closes only when the link was sent.
func (l *Login) SubmitReset(ctx context.Context) *auth.Pending {
	l.mu.Lock()
	req := auth.ResetRequest{Identifier: l.resetIdentifier}
	l.mu.Unlock()

	return l.deps.onComplete(l.deps.Requestor.RequestPasswordReset(ctx, req), func(o auth.Outcome) {
		switch {
		case o.OK():
			l.deps.Messenger.Show(msgResetSent)
			l.CancelReset()
		case o.Kind() == auth.KindLocalValidation:
			l.deps.Messenger.Show(msgResetBlank)
		default:
			l.deps.Messenger.Show(msgResetNotFound)
		}
	})
}

// GoToSignup leaves the login screen for registration.
func (l *Login) GoToSignup() {
	l.deps.navigate(nav.Signup, nav.PopUpTo(nav.Login, true))
}

// Providers lists the federated sign-in options to offer.
func (l *Login) Providers() []string {
	return l.deps.Requestor.Providers()
}

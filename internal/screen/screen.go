// Package screen holds the state and handlers behind each route. Handlers
// dispatch through the requestor and react to completions on the ui loop.
package screen

import (
	"context"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/logger"
	"github.com/gwlsn/signin/internal/nav"
	"github.com/gwlsn/signin/internal/ui"
)

// Requestor is the subset of flow.Requestor the screens use.
type Requestor interface {
	SignIn(ctx context.Context, creds auth.Credentials) *auth.Pending
	SignInWithProvider(ctx context.Context, name string) *auth.Pending
	RequestPasswordReset(ctx context.Context, req auth.ResetRequest) *auth.Pending
	SignOut(ctx context.Context) *auth.Pending
	SignOutFederated(ctx context.Context, name string) *auth.Pending
	CurrentSession() (*auth.Session, bool)
	Providers() []string
}

// Deps are the collaborators shared by all screens.
type Deps struct {
	Requestor Requestor
	Navigator *nav.Navigator
	Loop      *ui.Loop
	Messenger ui.Messenger
}

// onComplete runs handler on the ui loop once pending resolves.
func (d Deps) onComplete(pending *auth.Pending, handler func(auth.Outcome)) *auth.Pending {
	pending.OnComplete(func(o auth.Outcome) {
		d.Loop.Post(func() { handler(o) })
	})
	return pending
}

func (d Deps) navigate(dest nav.Route, opts ...nav.Option) {
	if err := d.Navigator.Navigate(dest, opts...); err != nil {
		logger.Error("Navigation failed", "route", dest, "error", err)
	}
}

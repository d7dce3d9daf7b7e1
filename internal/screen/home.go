package screen

import (
	"context"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/nav"
)

const (
	msgLogoutSuccess = "Logout Successful"
	msgLogoutFailed  = "Logout failed"
)

// Home is the authenticated area.
type Home struct {
	deps Deps
}

func NewHome(deps Deps) *Home {
	return &Home{deps: deps}
}

// Session returns the signed-in session shown on the screen.
func (h *Home) Session() (*auth.Session, bool) {
	return h.deps.Requestor.CurrentSession()
}

// Logout ends the backend session and returns to login.
func (h *Home) Logout(ctx context.Context) *auth.Pending {
	return h.deps.onComplete(h.deps.Requestor.SignOut(ctx), func(o auth.Outcome) {
		if !o.OK() {
			h.deps.Messenger.Show(msgLogoutFailed + ": " + o.Message())
			return
		}
		h.toLogin()
	})
}

// LogoutFederated also signs out of provider, so the next federated
// sign-in asks for an account again.
func (h *Home) LogoutFederated(ctx context.Context, provider string) *auth.Pending {
	return h.deps.onComplete(h.deps.Requestor.SignOutFederated(ctx, provider), func(o auth.Outcome) {
		if !o.OK() {
			h.deps.Messenger.Show(msgLogoutFailed + ": " + o.Message())
			return
		}
		h.deps.Messenger.Show(msgLogoutSuccess)
		h.toLogin()
	})
}

func (h *Home) toLogin() {
	h.deps.navigate(nav.Login, nav.PopUpTo(nav.Home, true))
}

package screen

import "github.com/gwlsn/signin/internal/nav"

const msgSignupUnavailable = "Registration is not available yet"

// Signup stands in for registration, which is not implemented.
type Signup struct {
	deps Deps
}

func NewSignup(deps Deps) *Signup {
	return &Signup{deps: deps}
}

// Back tells the user registration is unavailable and returns to login.
func (s *Signup) Back() {
	s.deps.Messenger.Show(msgSignupUnavailable)
	s.deps.navigate(nav.Login, nav.PopUpTo(nav.Signup, true))
}

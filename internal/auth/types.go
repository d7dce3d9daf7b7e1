package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Credentials is the identifier/secret pair collected on the login screen.
type Credentials struct {
	Identifier string
	Secret     string
}

// Validate rejects a blank identifier or an empty secret before any network call.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" {
		return ErrIdentifierRequired
	}
	if c.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}

// ResetRequest asks the backend to send a password-reset message.
type ResetRequest struct {
	Identifier string
}

// Validate rejects a blank identifier.
func (r ResetRequest) Validate() error {
	if strings.TrimSpace(r.Identifier) == "" {
		return ErrIdentifierRequired
	}
	return nil
}

// Session is a backend-issued authenticated context. Its token is opaque here.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	DisplayName  string
	Provider     string
	ExpiresAt    time.Time
}

// Expired reports whether the session has a known expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// FederatedCredential is an identity token issued by a third-party provider,
// exchanged once with the backend for a Session.
type FederatedCredential struct {
	Provider    string
	IDToken     string
	AccessToken string
	Subject     string
	Email       string
}

// Backend is the hosted authentication service.
type Backend interface {
	SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error)
	SignInWithCredential(ctx context.Context, cred FederatedCredential) (*Session, error)
	SendPasswordReset(ctx context.Context, identifier string) error
	SignOut(ctx context.Context) error
	CurrentSession() (*Session, bool)
	Name() string
}

// FederatedProvider runs an interactive consent flow with a third-party identity provider.
type FederatedProvider interface {
	Name() string
	Consent(ctx context.Context) (FederatedCredential, error)
	SignOut(ctx context.Context) error
}

// CurrentUser holds the backend's current session. Backends embed it.
type CurrentUser struct {
	mu      sync.RWMutex
	session *Session
}

// Set replaces the current session.
func (c *CurrentUser) Set(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Clear drops the current session.
func (c *CurrentUser) Clear() {
	c.Set(nil)
}

// CurrentSession returns a copy of the current session if one is set and unexpired.
func (c *CurrentUser) CurrentSession() (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.Expired(time.Now()) {
		return nil, false
	}
	s := *c.session
	return &s, true
}

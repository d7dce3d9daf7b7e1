package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/signin/internal/auth"
)

type fakeBackend struct {
	auth.CurrentUser

	mu         sync.Mutex
	passwords  map[string]string
	calls      map[string]int
	lastCred   auth.FederatedCredential
	signOutErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		passwords: map[string]string{"user@test.com": "correct"},
		calls:     map[string]int{},
	}
}

func (b *fakeBackend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) SignInWithPassword(_ context.Context, creds auth.Credentials) (*auth.Session, error) {
	b.record("password")
	if b.passwords[creds.Identifier] != creds.Secret {
		return nil, &auth.RejectionError{Code: "INVALID_LOGIN_CREDENTIALS", Message: "invalid credentials"}
	}
	s := &auth.Session{Token: "tok", UserID: creds.Identifier, Email: creds.Identifier}
	b.Set(s)
	return s, nil
}

func (b *fakeBackend) SignInWithCredential(_ context.Context, cred auth.FederatedCredential) (*auth.Session, error) {
	b.record("credential")
	b.mu.Lock()
	b.lastCred = cred
	b.mu.Unlock()
	s := &auth.Session{Token: "fed", UserID: cred.Subject, Provider: cred.Provider}
	b.Set(s)
	return s, nil
}

func (b *fakeBackend) SendPasswordReset(_ context.Context, identifier string) error {
	b.record("reset")
	if _, ok := b.passwords[identifier]; !ok {
		return &auth.RejectionError{Code: "EMAIL_NOT_FOUND", Message: "no account found for this email"}
	}
	return nil
}

func (b *fakeBackend) SignOut(_ context.Context) error {
	b.record("sign_out")
	if b.signOutErr != nil {
		return b.signOutErr
	}
	b.Clear()
	return nil
}

func (b *fakeBackend) Name() string { return "fake" }

type fakeProvider struct {
	name       string
	consentErr error
	signOutErr error
	release    chan struct{}

	mu       sync.Mutex
	consents int
	signOuts int
	selected bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Consent(ctx context.Context) (auth.FederatedCredential, error) {
	p.mu.Lock()
	p.consents++
	p.mu.Unlock()
	if p.consentErr != nil {
		return auth.FederatedCredential{}, p.consentErr
	}
	p.mu.Lock()
	p.selected = true
	p.mu.Unlock()
	return auth.FederatedCredential{Provider: "google.com", IDToken: "id-token", Subject: "sub-1"}, nil
}

func (p *fakeProvider) SignOut(_ context.Context) error {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	p.selected = false
	return p.signOutErr
}

func wait(t *testing.T, pending *auth.Pending) auth.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("request did not complete: %v", err)
	}
	return o
}

func newTestRequestor(backend auth.Backend, providers ...auth.FederatedProvider) *Requestor {
	registry := auth.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	return NewRequestor(backend, registry)
}

func TestSignIn(t *testing.T) {
	tests := []struct {
		name        string
		creds       auth.Credentials
		wantOK      bool
		wantKind    auth.Kind
		wantMessage string
		wantCalls   int
	}{
		{"correct password", auth.Credentials{Identifier: "user@test.com", Secret: "correct"}, true, auth.KindNone, "", 1},
		{"wrong password", auth.Credentials{Identifier: "user@test.com", Secret: "wrong"}, false, auth.KindBackendRejection, "invalid credentials", 1},
		{"blank identifier", auth.Credentials{Identifier: "   ", Secret: "correct"}, false, auth.KindLocalValidation, "identifier required", 0},
		{"empty secret", auth.Credentials{Identifier: "user@test.com"}, false, auth.KindLocalValidation, "secret required", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			r := newTestRequestor(backend)

			o := wait(t, r.SignIn(context.Background(), tt.creds))
			if o.OK() != tt.wantOK {
				t.Fatalf("OK() = %v, want %v (err %v)", o.OK(), tt.wantOK, o.Err)
			}
			if o.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", o.Kind(), tt.wantKind)
			}
			if o.Message() != tt.wantMessage {
				t.Errorf("Message() = %q, want %q", o.Message(), tt.wantMessage)
			}
			if got := backend.count("password"); got != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", got, tt.wantCalls)
			}
			if _, ok := r.CurrentSession(); ok != tt.wantOK {
				t.Errorf("CurrentSession() present = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestSignInIgnoresCallerCancellation(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRequestor(backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := wait(t, r.SignIn(ctx, auth.Credentials{Identifier: "user@test.com", Secret: "correct"}))
	if !o.OK() {
		t.Fatalf("cancelled caller context should not cancel the request: %v", o.Err)
	}
}

func TestRequestPasswordReset(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		wantOK     bool
		wantKind   auth.Kind
		wantCalls  int
	}{
		{"known email", "user@test.com", true, auth.KindNone, 1},
		{"unknown email", "ghost@test.com", false, auth.KindBackendRejection, 1},
		{"blank", "", false, auth.KindLocalValidation, 0},
		{"whitespace", "  \t", false, auth.KindLocalValidation, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			r := newTestRequestor(backend)

			o := wait(t, r.RequestPasswordReset(context.Background(), auth.ResetRequest{Identifier: tt.identifier}))
			if o.OK() != tt.wantOK || o.Kind() != tt.wantKind {
				t.Errorf("outcome ok=%v kind=%v, want ok=%v kind=%v", o.OK(), o.Kind(), tt.wantOK, tt.wantKind)
			}
			if got := backend.count("reset"); got != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestSignInWithProvider(t *testing.T) {
	t.Run("success exchanges credential", func(t *testing.T) {
		backend := newFakeBackend()
		provider := &fakeProvider{name: "Google"}
		r := newTestRequestor(backend, provider)

		o := wait(t, r.SignInWithProvider(context.Background(), "Google"))
		if !o.OK() {
			t.Fatalf("unexpected failure: %v", o.Err)
		}
		if backend.count("credential") != 1 || backend.lastCred.IDToken != "id-token" {
			t.Errorf("credential not exchanged: calls=%d cred=%+v", backend.count("credential"), backend.lastCred)
		}
		if o.Session.Provider != "google.com" {
			t.Errorf("session provider = %q", o.Session.Provider)
		}
	})

	t.Run("cancelled consent skips backend", func(t *testing.T) {
		backend := newFakeBackend()
		provider := &fakeProvider{name: "Google", consentErr: auth.ErrCancelled}
		r := newTestRequestor(backend, provider)

		o := wait(t, r.SignInWithProvider(context.Background(), "Google"))
		if o.Kind() != auth.KindProviderCancelled {
			t.Errorf("Kind() = %v, want provider cancelled", o.Kind())
		}
		if backend.count("credential") != 0 {
			t.Error("backend must not be called after a cancelled consent")
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		backend := newFakeBackend()
		r := newTestRequestor(backend)

		o := wait(t, r.SignInWithProvider(context.Background(), "Nope"))
		if !errors.Is(o.Err, auth.ErrNoProvider) {
			t.Errorf("err = %v, want ErrNoProvider", o.Err)
		}
		if o.Kind() != auth.KindLocalValidation {
			t.Errorf("Kind() = %v, want local validation", o.Kind())
		}
	})

	t.Run("noop provider", func(t *testing.T) {
		backend := newFakeBackend()
		r := newTestRequestor(backend, auth.NewNoopProvider("Google"))

		o := wait(t, r.SignInWithProvider(context.Background(), "Google"))
		if !errors.Is(o.Err, auth.ErrNoProvider) || backend.count("credential") != 0 {
			t.Errorf("err = %v calls = %d, want ErrNoProvider and no backend call", o.Err, backend.count("credential"))
		}
	})
}

func TestSignInWithFederatedCredential(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRequestor(backend)

	o := wait(t, r.SignInWithFederatedCredential(context.Background(), auth.FederatedCredential{Provider: "google.com"}))
	if o.Kind() != auth.KindLocalValidation || backend.count("credential") != 0 {
		t.Errorf("empty token: kind=%v calls=%d", o.Kind(), backend.count("credential"))
	}

	o = wait(t, r.SignInWithFederatedCredential(context.Background(), auth.FederatedCredential{Provider: "google.com", IDToken: "x", Subject: "s"}))
	if !o.OK() {
		t.Errorf("unexpected failure: %v", o.Err)
	}
}

func TestSignOutFederatedForcesReselection(t *testing.T) {
	backend := newFakeBackend()
	provider := &fakeProvider{name: "Google"}
	r := newTestRequestor(backend, provider)

	if o := wait(t, r.SignInWithProvider(context.Background(), "Google")); !o.OK() {
		t.Fatalf("sign in: %v", o.Err)
	}
	if o := wait(t, r.SignOutFederated(context.Background(), "Google")); !o.OK() {
		t.Fatalf("sign out: %v", o.Err)
	}
	if provider.selected {
		t.Error("provider should have forgotten the selected account")
	}
	if _, ok := r.CurrentSession(); ok {
		t.Error("backend session should be cleared")
	}
	if backend.count("sign_out") != 1 || provider.signOuts != 1 {
		t.Errorf("sign-out calls backend=%d provider=%d", backend.count("sign_out"), provider.signOuts)
	}
}

func TestSignOutFederatedWaitsForRevoke(t *testing.T) {
	backend := newFakeBackend()
	provider := &fakeProvider{name: "Google", release: make(chan struct{})}
	r := newTestRequestor(backend, provider)

	pending := r.SignOutFederated(context.Background(), "Google")
	select {
	case <-pending.Done():
		t.Fatal("completed before the provider finished signing out")
	case <-time.After(50 * time.Millisecond):
	}
	close(provider.release)
	if o := wait(t, pending); !o.OK() {
		t.Fatalf("unexpected failure: %v", o.Err)
	}
}

func TestSignOutFederatedProviderErrorIsNotSurfaced(t *testing.T) {
	backend := newFakeBackend()
	provider := &fakeProvider{name: "Google", signOutErr: errors.New("revoke failed")}
	r := newTestRequestor(backend, provider)

	if o := wait(t, r.SignOutFederated(context.Background(), "Google")); !o.OK() {
		t.Errorf("provider error should be logged, got failure %v", o.Err)
	}
}

func TestSignOutBackendError(t *testing.T) {
	backend := newFakeBackend()
	provider := &fakeProvider{name: "Google"}
	r := newTestRequestor(backend, provider)

	if o := wait(t, r.SignInWithProvider(context.Background(), "Google")); !o.OK() {
		t.Fatalf("sign in: %v", o.Err)
	}
	backend.signOutErr = auth.ErrTransport

	if o := wait(t, r.SignOut(context.Background())); o.Kind() != auth.KindTransport {
		t.Errorf("Kind() = %v, want transport", o.Kind())
	}
	o := wait(t, r.SignOutFederated(context.Background(), "Google"))
	if o.Kind() != auth.KindTransport {
		t.Errorf("SignOutFederated Kind() = %v, want transport", o.Kind())
	}
	// The account selection is forgotten even though the backend failed.
	if provider.signOuts != 1 || provider.selected {
		t.Errorf("provider signOuts=%d selected=%v, want 1 and false", provider.signOuts, provider.selected)
	}
}

func TestProviders(t *testing.T) {
	r := NewRequestor(newFakeBackend(), nil)
	if len(r.Providers()) != 0 {
		t.Errorf("Providers() = %v, want none", r.Providers())
	}
	r = newTestRequestor(newFakeBackend(), &fakeProvider{name: "Google"}, auth.NewNoopProvider("Apple"))
	if got := r.Providers(); len(got) != 2 || got[0] != "Apple" || got[1] != "Google" {
		t.Errorf("Providers() = %v", got)
	}
}

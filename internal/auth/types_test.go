package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"valid", Credentials{Identifier: "user@test.com", Secret: "correct"}, nil},
		{"empty identifier", Credentials{Secret: "x"}, ErrIdentifierRequired},
		{"whitespace identifier", Credentials{Identifier: "  \t", Secret: "x"}, ErrIdentifierRequired},
		{"empty secret", Credentials{Identifier: "user@test.com"}, ErrSecretRequired},
		// Whitespace is a legal password character
		{"whitespace secret", Credentials{Identifier: "user@test.com", Secret: " "}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.creds.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResetRequestValidate(t *testing.T) {
	for _, blank := range []string{"", " ", "\n\t "} {
		if err := (ResetRequest{Identifier: blank}).Validate(); !errors.Is(err, ErrIdentifierRequired) {
			t.Errorf("Validate(%q) = %v, want ErrIdentifierRequired", blank, err)
		}
	}
	if err := (ResetRequest{Identifier: "user@test.com"}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestCurrentUser(t *testing.T) {
	var cu CurrentUser
	if _, ok := cu.CurrentSession(); ok {
		t.Fatal("empty holder should have no session")
	}

	cu.Set(&Session{Token: "t1", ExpiresAt: time.Now().Add(time.Hour)})
	s, ok := cu.CurrentSession()
	if !ok || s.Token != "t1" {
		t.Fatalf("CurrentSession() = %+v, %v", s, ok)
	}
	// The returned session is a copy
	s.Token = "mutated"
	if again, _ := cu.CurrentSession(); again.Token != "t1" {
		t.Error("CurrentSession should return a copy")
	}

	cu.Set(&Session{Token: "old", ExpiresAt: time.Now().Add(-time.Minute)})
	if _, ok := cu.CurrentSession(); ok {
		t.Error("expired session should not be current")
	}

	cu.Set(&Session{Token: "t2"})
	cu.Clear()
	if _, ok := cu.CurrentSession(); ok {
		t.Error("cleared holder should have no session")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewNoopProvider("Google"))
	r.Register(NewNoopProvider("Apple"))

	if names := r.Names(); len(names) != 2 || names[0] != "Apple" || names[1] != "Google" {
		t.Errorf("Names() = %v, want [Apple Google]", names)
	}
	if _, ok := r.Provider("GitHub"); ok {
		t.Error("unexpected provider for unregistered name")
	}

	p, ok := r.Provider("Google")
	if !ok {
		t.Fatal("expected Google provider")
	}
	if _, err := p.Consent(context.Background()); !errors.Is(err, ErrNoProvider) {
		t.Errorf("Consent() error = %v, want ErrNoProvider", err)
	}
	if err := p.SignOut(context.Background()); err != nil {
		t.Errorf("SignOut() error = %v", err)
	}

	var nilRegistry *Registry
	if _, ok := nilRegistry.Provider("Google"); ok {
		t.Error("nil registry should have no providers")
	}
}

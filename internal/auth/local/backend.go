// Package local is an in-process stand-in for the hosted auth backend, used
// for development and offline testing. Users come from configuration as
// bcrypt or argon2 hashes.
package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/logger"
)

const defaultSessionTTL = time.Hour

// Backend implements auth.Backend against a fixed user table.
type Backend struct {
	auth.CurrentUser

	users      map[string]string
	hashAlgo   string
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewBackend creates a local backend. Emails are matched case-insensitively.
func NewBackend(users map[string]string, hashAlgo, secret string, sessionTTL time.Duration) (*Backend, error) {
	if len(users) == 0 {
		return nil, errors.New("local backend requires at least one user")
	}
	if secret == "" {
		return nil, errors.New("local backend requires a non-empty session secret")
	}
	algo, err := normalizeHashAlgo(hashAlgo)
	if err != nil {
		return nil, err
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	normalized := make(map[string]string, len(users))
	for email, hash := range users {
		normalized[normalizeEmail(email)] = hash
	}

	return &Backend{
		users:      normalized,
		hashAlgo:   algo,
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}, nil
}

// SignInWithPassword verifies the password hash and issues a signed session.
func (b *Backend) SignInWithPassword(_ context.Context, creds auth.Credentials) (*auth.Session, error) {
	email := normalizeEmail(creds.Identifier)
	hash, ok := b.users[email]
	if !ok {
		return nil, &auth.RejectionError{Code: "INVALID_LOGIN_CREDENTIALS", Message: "invalid credentials"}
	}
	match, err := verifyHash(b.hashAlgo, hash, creds.Secret)
	if err != nil {
		logger.Warn("Stored password hash is unusable", "email", email, "error", err)
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidResponse, err)
	}
	if !match {
		return nil, &auth.RejectionError{Code: "INVALID_LOGIN_CREDENTIALS", Message: "invalid credentials"}
	}
	return b.issue(email, email, "password")
}

// SignInWithCredential accepts any federated credential carrying a subject,
// registering the account on first use the way the hosted service does.
func (b *Backend) SignInWithCredential(_ context.Context, cred auth.FederatedCredential) (*auth.Session, error) {
	if cred.IDToken == "" {
		return nil, auth.ErrCredentialRequired
	}
	if cred.Subject == "" {
		return nil, &auth.RejectionError{Code: "INVALID_IDP_RESPONSE", Message: "the provider credential is malformed or has expired"}
	}
	userID := cred.Provider + ":" + cred.Subject
	return b.issue(userID, normalizeEmail(cred.Email), cred.Provider)
}

// SendPasswordReset logs a reset link for known users.
func (b *Backend) SendPasswordReset(_ context.Context, identifier string) error {
	email := normalizeEmail(identifier)
	if _, ok := b.users[email]; !ok {
		return &auth.RejectionError{Code: "EMAIL_NOT_FOUND", Message: "no account found for this email"}
	}
	logger.Info("Password reset link issued", "email", email, "oob_code", uuid.NewString())
	return nil
}

// SignOut drops the current session.
func (b *Backend) SignOut(_ context.Context) error {
	b.Clear()
	return nil
}

// Name returns backend name for logging
func (b *Backend) Name() string {
	return "local"
}

// Verify checks a session token's signature and expiry and returns its claims.
func (b *Backend) Verify(token string) (*auth.Session, error) {
	payload, err := b.verifySignedValue(token)
	if err != nil {
		return nil, err
	}
	var sp sessionPayload
	if err := json.Unmarshal(payload, &sp); err != nil {
		return nil, errors.New("invalid session payload")
	}
	expiry := time.Unix(sp.ExpiresAt, 0)
	if expiry.Before(b.now()) {
		return nil, errors.New("session expired")
	}
	return &auth.Session{
		Token:     token,
		UserID:    sp.Subject,
		Email:     sp.Email,
		Provider:  sp.Provider,
		ExpiresAt: expiry,
	}, nil
}

type sessionPayload struct {
	ID        string `json:"sid"`
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Provider  string `json:"provider"`
	ExpiresAt int64  `json:"expires_at"`
}

func (b *Backend) issue(subject, email, provider string) (*auth.Session, error) {
	expires := b.now().Add(b.sessionTTL)
	data, err := json.Marshal(sessionPayload{
		ID:        uuid.NewString(),
		Subject:   subject,
		Email:     email,
		Provider:  provider,
		ExpiresAt: expires.Unix(),
	})
	if err != nil {
		return nil, err
	}
	session := &auth.Session{
		Token:     b.signValue(data),
		UserID:    subject,
		Email:     email,
		Provider:  provider,
		ExpiresAt: expires,
	}
	b.Set(session)
	return session, nil
}

func (b *Backend) signValue(payload []byte) string {
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (b *Backend) verifySignedValue(value string) ([]byte, error) {
	encodedPayload, encodedSig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, errors.New("invalid session format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, errors.New("invalid session payload")
	}
	signature, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return nil, errors.New("invalid session signature")
	}
	expected := hmac.New(sha256.New, b.secret)
	expected.Write(payload)
	if subtle.ConstantTimeCompare(signature, expected.Sum(nil)) != 1 {
		return nil, errors.New("invalid session signature")
	}
	return payload, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

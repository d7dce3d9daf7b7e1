package oidc

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/logger"
	"golang.org/x/oauth2"
)

const (
	defaultConsentTimeout = 5 * time.Minute
	shutdownTimeout       = 2 * time.Second
)

// Options configures a Provider.
type Options struct {
	// Name is the display name ("Google").
	Name string
	// ProviderID identifies the provider to the auth backend ("google.com").
	ProviderID   string
	Issuer       string
	ClientID     string
	ClientSecret string
	// RedirectURL must be a loopback http URL. Port 0, or no port, picks a
	// free port per consent.
	RedirectURL    string
	Scopes         []string
	ConsentTimeout time.Duration
	// Opener hands the authorization URL to the user, typically by launching a browser.
	Opener func(authURL string) error
	// HTTPClient is used for discovery, key fetches, code exchange and revocation.
	HTTPClient *http.Client
}

// Provider runs the OpenID Connect authorization code flow (with PKCE) on a
// loopback redirect and returns the verified ID token as a federated credential.
type Provider struct {
	name          string
	providerID    string
	verifier      *oidc.IDTokenVerifier
	oauth2Config  oauth2.Config
	redirect      *url.URL
	secret        []byte
	opener        func(string) error
	timeout       time.Duration
	httpClient    *http.Client
	revocationURL string

	mu            sync.Mutex
	cachedAccount string
	accessToken   string
}

// NewProvider performs discovery against the issuer and returns a ready provider.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Issuer == "" {
		return nil, errors.New("oidc provider requires issuer")
	}
	if opts.ClientID == "" {
		return nil, errors.New("oidc provider requires client_id")
	}
	if opts.Opener == nil {
		return nil, errors.New("oidc provider requires an opener")
	}
	redirect, err := url.Parse(opts.RedirectURL)
	if err != nil || redirect.Scheme != "http" || redirect.Host == "" {
		return nil, fmt.Errorf("oidc provider requires an http loopback redirect_url, got %q", opts.RedirectURL)
	}
	if !isLoopback(redirect.Hostname()) {
		return nil, fmt.Errorf("redirect_url host %q is not a loopback address", redirect.Hostname())
	}
	if redirect.Port() == "" {
		redirect.Host = net.JoinHostPort(redirect.Hostname(), "0")
	}
	if redirect.Path == "" {
		redirect.Path = "/"
	}

	name := opts.Name
	if name == "" {
		name = "OIDC"
	}
	providerID := opts.ProviderID
	if providerID == "" {
		providerID = name
	}
	timeout := opts.ConsentTimeout
	if timeout <= 0 {
		timeout = defaultConsentTimeout
	}

	if opts.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, opts.HTTPClient)
	}
	provider, err := oidc.NewProvider(ctx, opts.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery for %s: %v", auth.ErrTransport, opts.Issuer, err)
	}

	var discovery struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&discovery); err != nil {
		logger.Debug("Discovery document has no readable revocation endpoint", "error", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return &Provider{
		name:         name,
		providerID:   providerID,
		verifier:     provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		oauth2Config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       normalizeScopes(opts.Scopes),
			Endpoint:     provider.Endpoint(),
		},
		redirect:      redirect,
		secret:        secret,
		opener:        opts.Opener,
		timeout:       timeout,
		httpClient:    opts.HTTPClient,
		revocationURL: discovery.RevocationEndpoint,
	}, nil
}

// Name returns the display name.
func (p *Provider) Name() string {
	return p.name
}

// CachedAccount returns the account remembered from the last successful consent.
func (p *Provider) CachedAccount() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cachedAccount
}

// Consent runs one interactive authorization. It returns auth.ErrCancelled if
// the user denies access, ctx ends, or the consent timeout elapses.
func (p *Provider) Consent(ctx context.Context) (auth.FederatedCredential, error) {
	ctx, cancel := context.WithTimeout(p.clientContext(ctx), p.timeout)
	defer cancel()

	ln, err := net.Listen("tcp", p.redirect.Host)
	if err != nil {
		return auth.FederatedCredential{}, fmt.Errorf("%w: loopback listener: %v", auth.ErrTransport, err)
	}

	redirect := *p.redirect
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	redirect.Host = net.JoinHostPort(p.redirect.Hostname(), port)
	cfg := p.oauth2Config
	cfg.RedirectURL = redirect.String()

	state, err := generateNonce()
	if err != nil {
		ln.Close()
		return auth.FederatedCredential{}, err
	}
	nonce, err := generateNonce()
	if err != nil {
		ln.Close()
		return auth.FederatedCredential{}, err
	}
	encodedState, err := p.signStatePayload(statePayload{
		State:     state,
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(p.timeout).Unix(),
	})
	if err != nil {
		ln.Close()
		return auth.FederatedCredential{}, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.Handle(redirect.Path, p.callbackHandler(encodedState, results))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Loopback callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(encodedState, p.authOptions(nonce, verifier)...)
	logger.Debug("Starting federated consent", "provider", p.name, "redirect", cfg.RedirectURL)
	if err := p.opener(authURL); err != nil {
		return auth.FederatedCredential{}, fmt.Errorf("%w: open consent page: %v", auth.ErrTransport, err)
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return auth.FederatedCredential{}, fmt.Errorf("%w: %v", auth.ErrCancelled, ctx.Err())
	}
	if result.err != nil {
		return auth.FederatedCredential{}, result.err
	}

	return p.exchange(ctx, &cfg, result.code, verifier, nonce)
}

func (p *Provider) exchange(ctx context.Context, cfg *oauth2.Config, code, verifier, nonce string) (auth.FederatedCredential, error) {
	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return auth.FederatedCredential{}, &auth.RejectionError{Code: retrieveErr.ErrorCode, Message: describeRetrieveError(retrieveErr)}
		}
		return auth.FederatedCredential{}, fmt.Errorf("%w: token exchange: %v", auth.ErrTransport, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return auth.FederatedCredential{}, fmt.Errorf("%w: missing id_token", auth.ErrInvalidResponse)
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return auth.FederatedCredential{}, fmt.Errorf("%w: verify id_token: %v", auth.ErrInvalidResponse, err)
	}
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return auth.FederatedCredential{}, fmt.Errorf("%w: invalid nonce", auth.ErrInvalidResponse)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return auth.FederatedCredential{}, fmt.Errorf("%w: %v", auth.ErrInvalidResponse, err)
	}

	p.mu.Lock()
	p.cachedAccount = claims.Email
	p.accessToken = token.AccessToken
	p.mu.Unlock()

	return auth.FederatedCredential{
		Provider:    p.providerID,
		IDToken:     rawIDToken,
		AccessToken: token.AccessToken,
		Subject:     idToken.Subject,
		Email:       claims.Email,
	}, nil
}

// SignOut forgets the cached account so the next consent re-prompts for
// account selection, and revokes the last access token when the issuer
// advertises a revocation endpoint.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	accessToken := p.accessToken
	p.cachedAccount = ""
	p.accessToken = ""
	p.mu.Unlock()

	if p.revocationURL == "" || accessToken == "" {
		return nil
	}

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: revoke: %v", auth.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: revoke returned status %d", auth.ErrInvalidResponse, resp.StatusCode)
	}
	return nil
}

// authOptions adds nonce, PKCE and the account selection hint.
func (p *Provider) authOptions(nonce, verifier string) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	}
	if account := p.CachedAccount(); account != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", account))
	} else {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	return opts
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, p.httpClient)
}

type statePayload struct {
	State     string `json:"state"`
	Nonce     string `json:"nonce"`
	ExpiresAt int64  `json:"expires_at"`
}

func (p *Provider) signStatePayload(payload statePayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.signValue(data), nil
}

func (p *Provider) verifyStateValue(value string) (statePayload, error) {
	payload, err := p.verifySignedValue(value)
	if err != nil {
		return statePayload{}, err
	}
	var state statePayload
	if err := json.Unmarshal(payload, &state); err != nil {
		return statePayload{}, err
	}
	if state.ExpiresAt < time.Now().Unix() {
		return statePayload{}, errors.New("state expired")
	}
	return state, nil
}

func (p *Provider) signValue(payload []byte) string {
	signature := hmac.New(sha256.New, p.secret)
	signature.Write(payload)
	sum := signature.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sum)
}

func (p *Provider) verifySignedValue(value string) ([]byte, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid state format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, errors.New("invalid state payload")
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.New("invalid state signature")
	}
	expected := hmac.New(sha256.New, p.secret)
	expected.Write(payload)
	if subtle.ConstantTimeCompare(signature, expected.Sum(nil)) != 1 {
		return nil, errors.New("invalid state signature")
	}
	return payload, nil
}

func describeRetrieveError(err *oauth2.RetrieveError) string {
	if err.ErrorDescription != "" {
		return err.ErrorDescription
	}
	if err.ErrorCode != "" {
		return strings.ReplaceAll(err.ErrorCode, "_", " ")
	}
	return "token exchange rejected"
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeScopes(scopes []string) []string {
	hasOpenID := false
	normalized := make([]string, 0, len(scopes)+1)
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
		}
		normalized = append(normalized, scope)
	}
	if len(normalized) == 0 {
		return []string{oidc.ScopeOpenID, "email", "profile"}
	}
	if !hasOpenID {
		normalized = append([]string{oidc.ScopeOpenID}, normalized...)
	}
	return normalized
}

func generateNonce() (string, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(random), nil
}

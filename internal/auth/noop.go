package auth

import "context"

// NoopProvider stands in for a federated provider that is not configured.
// Every consent fails without contacting anything.
type NoopProvider struct {
	name string
}

// NewNoopProvider returns a provider that always reports ErrNoProvider.
func NewNoopProvider(name string) *NoopProvider {
	return &NoopProvider{name: name}
}

// Name returns the display name the provider was registered under.
func (p *NoopProvider) Name() string {
	return p.name
}

// Consent always fails.
func (p *NoopProvider) Consent(_ context.Context) (FederatedCredential, error) {
	return FederatedCredential{}, ErrNoProvider
}

// SignOut has nothing to revoke.
func (p *NoopProvider) SignOut(_ context.Context) error {
	return nil
}

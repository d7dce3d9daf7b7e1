package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend modes
const (
	BackendIdentityToolkit = "identitytoolkit"
	BackendLocal           = "local"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultIssuer             = "https://accounts.google.com"
	DefaultRedirectURL        = "http://127.0.0.1:0/callback"
)

// Config holds all runtime settings.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Backend   BackendConfig   `yaml:"backend"`
	Federated FederatedConfig `yaml:"federated"`
}

// BackendConfig selects and configures the hosted auth backend.
type BackendConfig struct {
	Mode       string        `yaml:"mode"`
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RequestURI string        `yaml:"request_uri"`

	// Local mode only
	Users         map[string]string `yaml:"users"`
	HashAlgo      string            `yaml:"hash_algo"`
	SessionSecret string            `yaml:"session_secret"`
	SessionTTL    time.Duration     `yaml:"session_ttl"`
}

// FederatedConfig configures the OpenID Connect provider used for federated sign-in.
type FederatedConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Name           string        `yaml:"name"`
	Issuer         string        `yaml:"issuer"`
	ProviderID     string        `yaml:"provider_id"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	RedirectURL    string        `yaml:"redirect_url"`
	Scopes         []string      `yaml:"scopes"`
	ConsentTimeout time.Duration `yaml:"consent_timeout"`
}

// Default returns a config with every optional field populated.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Backend: BackendConfig{
			Mode:       BackendIdentityToolkit,
			URL:        DefaultIdentityToolkitURL,
			Timeout:    15 * time.Second,
			RequestURI: "http://localhost",
			HashAlgo:   "auto",
			SessionTTL: time.Hour,
		},
		Federated: FederatedConfig{
			Name:           "Google",
			Issuer:         DefaultIssuer,
			ProviderID:     "google.com",
			RedirectURL:    DefaultRedirectURL,
			Scopes:         []string{"openid", "email", "profile"},
			ConsentTimeout: 5 * time.Minute,
		},
	}
}

// Load reads the YAML file at path (if non-empty and present), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// Missing file is fine, env and defaults still apply
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.LogLevel, "SIGNIN_LOG_LEVEL")
	setString(&c.Backend.Mode, "SIGNIN_BACKEND_MODE")
	setString(&c.Backend.URL, "SIGNIN_BACKEND_URL")
	setString(&c.Backend.APIKey, "SIGNIN_API_KEY")
	setString(&c.Backend.SessionSecret, "SIGNIN_SESSION_SECRET")
	setString(&c.Federated.ClientID, "SIGNIN_CLIENT_ID")
	setString(&c.Federated.ClientSecret, "SIGNIN_CLIENT_SECRET")
	setString(&c.Federated.Issuer, "SIGNIN_ISSUER")
	setString(&c.Federated.RedirectURL, "SIGNIN_REDIRECT_URL")
	if v := os.Getenv("SIGNIN_FEDERATED_ENABLED"); v != "" {
		c.Federated.Enabled = v == "true" || v == "1"
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// Validate checks that the selected backend and provider are usable.
func (c *Config) Validate() error {
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	switch c.Backend.Mode {
	case BackendIdentityToolkit:
		if c.Backend.URL == "" {
			return errors.New("backend.url is required")
		}
		if c.Backend.APIKey == "" {
			return errors.New("backend.api_key is required for identitytoolkit mode")
		}
	case BackendLocal:
		if len(c.Backend.Users) == 0 {
			return errors.New("backend.users is required for local mode")
		}
		if c.Backend.SessionSecret == "" {
			return errors.New("backend.session_secret is required for local mode")
		}
	default:
		return fmt.Errorf("unsupported backend mode: %q", c.Backend.Mode)
	}

	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}

	if c.Federated.Enabled {
		if c.Federated.Issuer == "" {
			return errors.New("federated.issuer is required")
		}
		if c.Federated.ClientID == "" {
			return errors.New("federated.client_id is required")
		}
		if c.Federated.RedirectURL == "" {
			return errors.New("federated.redirect_url is required")
		}
		if c.Federated.Name == "" {
			c.Federated.Name = "Google"
		}
	}
	return nil
}

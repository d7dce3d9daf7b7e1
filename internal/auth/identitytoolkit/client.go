// Package identitytoolkit talks to a hosted authentication backend through the
// Identity Toolkit v1 REST API (the API behind Firebase Authentication).
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpclient "github.com/appleboy/go-httpclient"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/logger"
)

// APIKeyHeader carries the project API key on every request.
const APIKeyHeader = "X-Goog-Api-Key"

// Client is an auth.Backend backed by the Identity Toolkit REST API.
type Client struct {
	auth.CurrentUser

	baseURL    string
	requestURI string
	client     *http.Client
}

type clientOptions struct {
	transport  *http.Transport
	requestURI string
}

// Option configures a Client.
type Option func(*clientOptions)

// WithTransport replaces the default HTTP transport.
func WithTransport(t *http.Transport) Option {
	return func(o *clientOptions) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithRequestURI sets the continue URI sent with federated sign-in.
func WithRequestURI(uri string) Option {
	return func(o *clientOptions) {
		if uri != "" {
			o.requestURI = uri
		}
	}
}

// NewClient creates a client for the API rooted at baseURL. The API key is
// sent in the X-Goog-Api-Key header.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	o := clientOptions{
		transport:  http.DefaultTransport.(*http.Transport).Clone(),
		requestURI: "http://localhost",
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := httpclient.NewAuthClient("simple", apiKey,
		httpclient.WithTimeout(timeout),
		httpclient.WithTransport(o.transport),
		httpclient.WithHeaderName(APIKeyHeader),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identitytoolkit client: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		requestURI: o.requestURI,
		client:     client,
	}, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email"`
}

// signInResponse covers both signInWithPassword and signInWithIdp.
type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword exchanges an email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, creds auth.Credentials) (*auth.Session, error) {
	var resp signInResponse
	err := c.post(ctx, "accounts:signInWithPassword", passwordRequest{
		Email:             creds.Identifier,
		Password:          creds.Secret,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.startSession(resp, "password")
}

// SignInWithCredential exchanges a federated ID token for a session.
func (c *Client) SignInWithCredential(ctx context.Context, cred auth.FederatedCredential) (*auth.Session, error) {
	if cred.IDToken == "" {
		return nil, auth.ErrCredentialRequired
	}
	form := url.Values{}
	form.Set("id_token", cred.IDToken)
	form.Set("providerId", cred.Provider)
	if cred.AccessToken != "" {
		form.Set("access_token", cred.AccessToken)
	}

	var resp signInResponse
	err := c.post(ctx, "accounts:signInWithIdp", idpRequest{
		PostBody:            form.Encode(),
		RequestURI:          c.requestURI,
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	provider := resp.ProviderID
	if provider == "" {
		provider = cred.Provider
	}
	return c.startSession(resp, provider)
}

// SendPasswordReset asks the backend to email a reset link to identifier.
func (c *Client) SendPasswordReset(ctx context.Context, identifier string) error {
	var resp struct {
		Email string `json:"email"`
	}
	return c.post(ctx, "accounts:sendOobCode", oobRequest{
		RequestType: "PASSWORD_RESET",
		Email:       identifier,
	}, &resp)
}

// SignOut drops the local session. The REST API keeps no server-side state to clear.
func (c *Client) SignOut(_ context.Context) error {
	c.Clear()
	return nil
}

// Name returns backend name for logging
func (c *Client) Name() string {
	return "identitytoolkit"
}

func (c *Client) startSession(resp signInResponse, provider string) (*auth.Session, error) {
	if resp.IDToken == "" || resp.LocalID == "" {
		return nil, fmt.Errorf("%w: sign-in succeeded without idToken or localId", auth.ErrInvalidResponse)
	}
	session := &auth.Session{
		Token:        resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		Provider:     provider,
	}
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil && secs > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}
	c.Set(session)
	return session, nil
}

func (c *Client) post(ctx context.Context, method string, reqBody, out any) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", auth.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", auth.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response", auth.ErrInvalidResponse)
	}

	logger.Debug("identitytoolkit response", "method", method, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Only client errors are verdicts on the request; 5xx means the
		// service could not answer.
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%w: HTTP %d - %s", auth.ErrTransport, resp.StatusCode, envelope.Error.Message)
			}
			return rejection(envelope.Error.Message)
		}
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		return fmt.Errorf("%w: HTTP %d - %s", auth.ErrInvalidResponse, resp.StatusCode, bodyPreview)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrInvalidResponse, err)
	}
	return nil
}

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Identity Toolkit v1 endpoint.
const DefaultBaseURL = "https://identitytoolkit.googleapis.com/v1"

var (
	// ErrInvalidCredentials indicates an unknown account or a wrong password.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrAccountExists indicates the sign-up email is already registered.
	ErrAccountExists = errors.New("identity: account exists")
	// ErrWeakPassword indicates the provider rejected the password.
	ErrWeakPassword = errors.New("identity: weak password")
)

// Account is the provider's view of a signed-in user.
type Account struct {
	UID          string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// Client talks to the Identity Toolkit REST API with an API key.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint (emulator, tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClient constructs an identity client.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("identity: empty api key")
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type profileRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// SignIn verifies email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (Account, error) {
	var account Account
	err := c.post(ctx, "accounts:signInWithPassword", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &account)
	return account, err
}

// SignUp creates an account.
func (c *Client) SignUp(ctx context.Context, email, password string) (Account, error) {
	var account Account
	err := c.post(ctx, "accounts:signUp", passwordRequest{Email: email, Password: password, ReturnSecureToken: true}, &account)
	return account, err
}

// UpdateProfile sets the display name of the account behind idToken.
func (c *Client) UpdateProfile(ctx context.Context, idToken, displayName string) error {
	if idToken == "" {
		return errors.New("identity: empty id token")
	}
	return c.post(ctx, "accounts:update", profileRequest{IDToken: idToken, DisplayName: displayName}, nil)
}

func (c *Client) post(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// providerError maps the provider's error codes onto sentinel errors.
// Codes may carry a suffix, e.g. "WEAK_PASSWORD : Password should be at least 6 characters".
func providerError(resp *http.Response) error {
	var env errorEnvelope
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&env)
	code := strings.TrimSpace(strings.SplitN(env.Error.Message, ":", 2)[0])
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_EMAIL":
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, code)
	case "EMAIL_EXISTS":
		return ErrAccountExists
	case "WEAK_PASSWORD":
		return ErrWeakPassword
	}
	if code != "" {
		return fmt.Errorf("identity: http %d: %s", resp.StatusCode, code)
	}
	return fmt.Errorf("identity: http %d", resp.StatusCode)
}

package rtdb

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

var (
	// ErrUnauthorized indicates the database secret or token was rejected.
	ErrUnauthorized = errors.New("rtdb: unauthorized")
	// ErrStreamCanceled indicates the server canceled the stream (rules changed).
	ErrStreamCanceled = errors.New("rtdb: stream canceled by server")
	// ErrAuthRevoked indicates the credential expired mid-stream.
	ErrAuthRevoked = errors.New("rtdb: auth revoked")
	// ErrStreamClosed indicates the server closed the stream.
	ErrStreamClosed = errors.New("rtdb: stream closed")
)

// Client is a minimal Firebase Realtime Database REST client.
type Client struct {
	baseURL      string
	secret       string
	client       *http.Client
	streamClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the client used for one-shot requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithStreamClient overrides the client used for streaming; it must not set a Timeout.
func WithStreamClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.streamClient = client
		}
	}
}

// NewClient constructs a client for the database at baseURL.
func NewClient(baseURL, secret string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("rtdb: empty base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("rtdb: invalid base url: %w", err)
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		secret:       secret,
		client:       &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get decodes the value at path into out. A missing node decodes as JSON null.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Patch merges body into the node at path.
func (c *Client) Patch(ctx context.Context, path string, body any) error {
	if body == nil {
		return errors.New("rtdb: nil patch body")
	}
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

// Put replaces the node at path with body.
func (c *Client) Put(ctx context.Context, path string, body any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

func (c *Client) endpoint(path string) string {
	path = strings.Trim(path, "/")
	u := c.baseURL + "/" + path + ".json"
	if c.secret != "" {
		u += "?auth=" + url.QueryEscape(c.secret)
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type errorBody struct {
	Error string `json:"error"`
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		var body errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Error != "" {
			return fmt.Errorf("rtdb: http %d: %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("rtdb: http %d", resp.StatusCode)
	default:
		return nil
	}
}

package paas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client talks to the easyweb3 PaaS: it logs in with an API key and posts
// audit logs with the returned bearer token.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewClient returns nil when no base URL is configured, which turns every
// audit call into a no-op.
func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type CreateLogRequest struct {
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Level      string         `json:"level"`
	Details    map[string]any `json:"details"`
	SessionKey string         `json:"session_key"`
	Metadata   map[string]any `json:"metadata"`
}

func (c *Client) Login(ctx context.Context) error {
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return errors.New("paas api key is empty")
	}
	b, err := c.post(ctx, "/api/v1/auth/login", map[string]any{"api_key": apiKey}, "")
	if err != nil {
		return fmt.Errorf("paas login: %w", err)
	}
	var lr loginResponse
	if err := json.Unmarshal(b, &lr); err != nil {
		return err
	}
	exp, _ := time.Parse(time.RFC3339, strings.TrimSpace(lr.ExpiresAt))

	c.mu.Lock()
	c.token = strings.TrimSpace(lr.Token)
	c.expiresAt = exp
	c.mu.Unlock()
	return nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// EnsureToken logs in when there is no token or it expires within two minutes.
func (c *Client) EnsureToken(ctx context.Context) error {
	c.mu.RLock()
	tok, exp := c.token, c.expiresAt
	c.mu.RUnlock()
	if tok == "" || (!exp.IsZero() && time.Until(exp) < 2*time.Minute) {
		return c.Login(ctx)
	}
	return nil
}

func (c *Client) CreateLog(ctx context.Context, req CreateLogRequest) error {
	if err := c.EnsureToken(ctx); err != nil {
		return err
	}
	if _, err := c.post(ctx, "/api/v1/logs", req, c.Token()); err != nil {
		return fmt.Errorf("paas create log: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, token string) ([]byte, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return nil, errors.New("paas base url is empty")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}

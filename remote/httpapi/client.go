// Package httpapi implements remote.AgentClient against the REST surface of
// a hosted agents service: threads, thread messages, and runs, authenticated
// with a bearer token from a remote.CredentialProvider.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/remote"
)

var _ remote.AgentClient = (*Client)(nil)

// Option configures a Client after config-driven initialization.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// Client talks to the agents REST API. Stateless per call and safe for
// concurrent use; one Client is shared by all sessions in a process.
type Client struct {
	cfg  Config
	cred remote.CredentialProvider
	http *http.Client
}

// New creates a Client from configuration. Endpoint and a credential
// provider are required; defaults are applied for the rest.
func New(cfg *Config, cred remote.CredentialProvider, opts ...Option) (*Client, error) {
	merged := DefaultConfig()
	merged.Merge(cfg)

	if merged.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cred == nil {
		return nil, errors.New("credential provider is required")
	}

	c := &Client{
		cfg:  merged,
		cred: cred,
		http: newDefaultHTTPClient(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// newDefaultHTTPClient sets transport-level timeouts only; request lifetime
// is controlled by the caller's context deadline.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ForceAttemptHTTP2:     true,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
}

// CreateThread mints a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var env threadEnvelope
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &env); err != nil {
		return "", err
	}
	return env.ID, nil
}

// PostMessage appends a message to the thread.
func (c *Client) PostMessage(ctx context.Context, threadRef string, role protocol.Role, content string) error {
	body := map[string]string{
		"role":    string(role),
		"content": content,
	}
	return c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadRef)+"/messages", nil, body, nil)
}

// StartRun begins an agent run against the thread.
func (c *Client) StartRun(ctx context.Context, threadRef, agentRef string) (remote.RunHandle, error) {
	body := map[string]string{"assistant_id": agentRef}

	var env runEnvelope
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadRef)+"/runs", nil, body, &env); err != nil {
		return remote.RunHandle{}, err
	}
	return env.toHandle(), nil
}

// GetRun fetches the current status of a run.
func (c *Client) GetRun(ctx context.Context, threadRef, runID string) (remote.RunHandle, error) {
	path := "/threads/" + url.PathEscape(threadRef) + "/runs/" + url.PathEscape(runID)

	var env runEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return remote.RunHandle{}, err
	}
	return env.toHandle(), nil
}

// ListMessages returns the thread's full history, oldest first.
func (c *Client) ListMessages(ctx context.Context, threadRef string) ([]protocol.RemoteMessage, error) {
	query := url.Values{"order": []string{"asc"}}

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadRef)+"/messages", query, nil, &env); err != nil {
		return nil, err
	}

	msgs := make([]protocol.RemoteMessage, 0, len(env.Data))
	for _, m := range env.Data {
		msgs = append(msgs, protocol.RemoteMessage{
			ID:      m.ID,
			Role:    protocol.Role(m.Role),
			Content: m.text(),
		})
	}
	return msgs, nil
}

// do executes one authenticated JSON request against the API.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.cfg.APIVersion)
	endpoint := strings.TrimRight(c.cfg.Endpoint, "/") + path + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}

	token, err := c.cred.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire credential: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

type threadEnvelope struct {
	ID string `json:"id"`
}

type runEnvelope struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

// toHandle collapses the service's run states onto the local protocol:
// anything between queued and terminal counts as running.
func (e runEnvelope) toHandle() remote.RunHandle {
	h := remote.RunHandle{ID: e.ID}

	switch e.Status {
	case "queued":
		h.Status = remote.RunQueued
	case "completed":
		h.Status = remote.RunCompleted
	case "failed", "cancelled", "expired":
		h.Status = remote.RunFailed
	default:
		h.Status = remote.RunRunning
	}

	if e.LastError != nil {
		h.ErrorDetail = e.LastError.Code
		if e.LastError.Message != "" {
			h.ErrorDetail = e.LastError.Code + ": " + e.LastError.Message
		}
	}
	return h
}

type messageEnvelope struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

// text returns the message's final text part; non-text parts are ignored.
func (m messageEnvelope) text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if m.Content[i].Type == "text" {
			return m.Content[i].Text.Value
		}
	}
	return ""
}

type listEnvelope struct {
	Data []messageEnvelope `json:"data"`
}

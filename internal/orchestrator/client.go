// Package orchestrator implements the typed HTTP client for the external
// game-server panel's per-user API. The client is stateless: every call takes
// the caller's bearer credential, and no responses are cached or retried.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gamedash/internal/models"
)

// DefaultTimeout is applied when no explicit request timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client issues authenticated calls against the orchestrator's client API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the panel at baseURL. A non-positive timeout
// falls back to DefaultTimeout; a timed-out call surfaces as a TransportError.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type listResponse struct {
	Data []struct {
		Attributes models.RemoteServer `json:"attributes"`
	} `json:"data"`
}

type serverResponse struct {
	Attributes models.RemoteServer `json:"attributes"`
}

type usageResponse struct {
	Attributes models.RemoteUsage `json:"attributes"`
}

// ListServers returns every server the credential's panel account can see.
func (c *Client) ListServers(ctx context.Context, credential string) ([]models.RemoteServer, error) {
	var resp listResponse
	if err := c.do(ctx, credential, http.MethodGet, "/api/client", nil, &resp); err != nil {
		return nil, err
	}
	servers := make([]models.RemoteServer, 0, len(resp.Data))
	for _, item := range resp.Data {
		servers = append(servers, item.Attributes)
	}
	return servers, nil
}

// GetServer fetches a single server by its orchestrator-assigned identifier.
func (c *Client) GetServer(ctx context.Context, credential, externalID string) (*models.RemoteServer, error) {
	var resp serverResponse
	path := "/api/client/servers/" + url.PathEscape(externalID)
	if err := c.do(ctx, credential, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// GetUsage fetches the current resource reading for a server.
func (c *Client) GetUsage(ctx context.Context, credential, externalID string) (*models.RemoteUsage, error) {
	var resp usageResponse
	path := "/api/client/servers/" + url.PathEscape(externalID) + "/resources"
	if err := c.do(ctx, credential, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// SendPower submits a power signal (start, stop, restart, kill). The call
// returns once the orchestrator acknowledges receipt, not once the action
// completes; completion is observed on the next reconciliation pass.
func (c *Client) SendPower(ctx context.Context, credential, externalID, signal string) error {
	path := "/api/client/servers/" + url.PathEscape(externalID) + "/power"
	body := map[string]string{"signal": signal}
	return c.do(ctx, credential, http.MethodPost, path, body, nil)
}

// SendCommand submits a console command to a server.
func (c *Client) SendCommand(ctx context.Context, credential, externalID, command string) error {
	path := "/api/client/servers/" + url.PathEscape(externalID) + "/command"
	body := map[string]string{"command": command}
	return c.do(ctx, credential, http.MethodPost, path, body, nil)
}

// do performs one authenticated round trip. Non-2xx responses become a
// TransportError carrying the status and a truncated body excerpt.
func (c *Client) do(ctx context.Context, credential, method, path string, body, out any) error {
	if credential == "" {
		return ErrMissingCredential
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{Status: resp.StatusCode, Body: string(excerpt)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

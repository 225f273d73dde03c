package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensandbox/marimoproxy/pkg/types"
)

// Client is an HTTP client for the marimo-tools API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new client. baseURL includes the service prefix, e.g.
// "http://localhost:8888/user/alice".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// doRequest performs an HTTP request with token authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// doTool posts to a marimo-tools endpoint and decodes the response. Non-200
// responses are returned as errors carrying the server's message.
func (c *Client) doTool(ctx context.Context, name string, body interface{}) (*types.ToolResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/marimo-tools/"+name, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out types.ToolResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return &out, fmt.Errorf("API error (status %d): %s", resp.StatusCode, out.Error)
	}
	return &out, nil
}

// Convert asks the server to convert a notebook. Paths are resolved on the
// server.
func (c *Client) Convert(ctx context.Context, input, output string) (*types.ToolResponse, error) {
	return c.doTool(ctx, "convert", types.ConvertRequest{Input: input, Output: output})
}

// Restart stops the server's marimo process; the next editor request starts
// a new one.
func (c *Client) Restart(ctx context.Context) (*types.ToolResponse, error) {
	return c.doTool(ctx, "restart", nil)
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

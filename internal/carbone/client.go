package carbone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	u "carbone2pdf/internal/utils"
)

const (
	// DefaultEndpoint is the hosted Carbone render URL.
	DefaultEndpoint = "https://render.carbone.io/render"
	// DefaultAPIVersion is sent in the carbone-version header.
	DefaultAPIVersion = "4"

	versionHeader = "carbone-version"
)

// RenderResponse is the raw answer of the render endpoint.
type RenderResponse struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the response carries a rendered document.
func (r *RenderResponse) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Err returns nil for a successful response and a *RemoteRenderingError
// otherwise.
func (r *RenderResponse) Err() error {
	if r.OK() {
		return nil
	}
	return &RemoteRenderingError{StatusCode: r.StatusCode, Body: string(r.Body)}
}

// Client posts render requests to one endpoint with one bearer token.
type Client struct {
	Endpoint   string
	APIVersion string
	HTTP       *http.Client

	token string
}

// NewClient builds a client. A zero timeout keeps the transport default.
func NewClient(endpoint, apiVersion, token string, timeout time.Duration) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	apiVersion = strings.TrimSpace(apiVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		Endpoint:   endpoint,
		APIVersion: apiVersion,
		HTTP:       &http.Client{Timeout: timeout},
		token:      token,
	}
}

// NewClientFromConfig builds a client for cfg using token.
func NewClientFromConfig(cfg u.CarboneConfig, token string) *Client {
	return NewClient(cfg.EndpointURL, cfg.APIVersion, token, cfg.Timeout)
}

// Submit performs exactly one POST. Any HTTP status is returned as a
// response; only failures to get one are errors.
func (c *Client) Submit(ctx context.Context, req RenderRequest) (*RenderResponse, error) {
	if strings.TrimSpace(c.token) == "" {
		return nil, u.ErrMissingCredential
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(versionHeader, c.APIVersion)
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	started := time.Now()
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, &TransportError{URL: c.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: c.Endpoint, Err: fmt.Errorf("read response: %w", err)}
	}

	u.Debug("Render request completed",
		"status", resp.StatusCode,
		"bytes", len(data),
		"convert_to", req.ConvertTo,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &RenderResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// Render submits req and returns the document bytes, or the remote
// diagnostic as a *RemoteRenderingError.
func (c *Client) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		c.HTTP = &http.Client{}
	}
	return c.HTTP
}

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// HTTPTransport is the real wire transport over net/http.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
}

// NewHTTPTransport creates a transport against a base URL.
func NewHTTPTransport(cfg HTTPTransportConfig) *HTTPTransport {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		headers:    cfg.Headers,
	}
}

// Send issues one HTTP request and returns the status code and full body.
// Protocol-level interpretation of the status is the caller's job; only
// request construction and connection failures error here.
func (t *HTTPTransport) Send(ctx context.Context, verb, path string, params url.Values, headers map[string]string, body []byte) (int, []byte, error) {
	target := t.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, verb, target, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

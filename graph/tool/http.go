package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPTool is a tool for making HTTP requests.
//
// It supports GET and POST and returns the response status, headers, and
// body. Useful for steps that call REST APIs or webhooks.
//
// Input parameters:
//   - url: target URL (required)
//   - method: "GET" or "POST", defaults to "GET"
//   - headers: optional map of request headers
//   - body: optional request body string (POST)
//
// Output:
//   - status_code: HTTP status code
//   - headers: response headers
//   - body: response body as string
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool creates an HTTP tool. Timeouts come from the caller's
// context, not the client.
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{client: &http.Client{}}
}

// Name returns the tool identifier.
func (h *HTTPTool) Name() string {
	return "http_request"
}

// Call executes an HTTP request with the provided parameters.
func (h *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := "GET"
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != "GET" && method != "POST" {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if headers, ok := input["headers"].(map[string]interface{}); ok {
		for key, value := range headers {
			if valueStr, ok := value.(string); ok {
				req.Header.Set(key, valueStr)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	respHeaders := make(map[string]interface{})
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}

package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTool_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("X-Kind", "greeting")
			_, _ = w.Write([]byte("hello"))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			if r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusUnsupportedMediaType)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
		}
	}))
	defer server.Close()

	tool := NewHTTPTool()
	ctx := context.Background()

	t.Run("GET", func(t *testing.T) {
		out, err := tool.Call(ctx, map[string]interface{}{"url": server.URL})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["status_code"] != http.StatusOK || out["body"] != "hello" {
			t.Errorf("out = %v", out)
		}
		headers := out["headers"].(map[string]interface{})
		if headers["X-Kind"] != "greeting" {
			t.Errorf("headers = %v", headers)
		}
	})

	t.Run("POST with headers and body", func(t *testing.T) {
		out, err := tool.Call(ctx, map[string]interface{}{
			"url":     server.URL,
			"method":  "post",
			"body":    `{"topic":"solar"}`,
			"headers": map[string]interface{}{"Content-Type": "application/json"},
		})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if out["status_code"] != http.StatusCreated || out["body"] != `{"topic":"solar"}` {
			t.Errorf("out = %v", out)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		if _, err := tool.Call(ctx, map[string]interface{}{}); err == nil {
			t.Error("expected error without url")
		}
	})

	t.Run("unsupported method", func(t *testing.T) {
		_, err := tool.Call(ctx, map[string]interface{}{"url": server.URL, "method": "DELETE"})
		if err == nil {
			t.Error("expected error for unsupported method")
		}
	})
}

func TestHTTPTool_Name(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewHTTPTool()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Invoke(context.Background(), "http_request", map[string]interface{}{"url": "://bad"}); err == nil {
		t.Error("expected error for malformed url")
	}
}

package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s; want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q; want application/json", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("authorization = %q; want Bearer token-1", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		DefaultHeaders: map[string]string{"Authorization": "Bearer token-1"},
	})

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.PostJSON(context.Background(), "/submit", map[string]string{"url": "x"}, &out); err != nil {
		t.Fatalf("PostJSON() = %v; want nil", err)
	}
	if !out.Success || out.Message != "queued" {
		t.Fatalf("out = %+v; want success with message queued", out)
	}
}

func TestNon2xxBecomesTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"signature expired"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.GetJSON(context.Background(), "/thing", nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	var httpErr *Error
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *httpx.Error, got %T", err)
	}
	if httpErr.Status != http.StatusForbidden {
		t.Fatalf("status = %d; want 403", httpErr.Status)
	}
	if httpErr.Message != "signature expired" {
		t.Fatalf("message = %q; want %q", httpErr.Message, "signature expired")
	}
}

func TestErrorMessageFallsBackToBodyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.GetJSON(context.Background(), "/", nil)

	var httpErr *Error
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *httpx.Error, got %v", err)
	}
	if httpErr.Message != "upstream unavailable" {
		t.Fatalf("message = %q; want body text", httpErr.Message)
	}
}

func TestIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	err := c.GetJSON(context.Background(), "/", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout(%v) = false; want true", err)
	}

	if IsTimeout(errors.New("boom")) {
		t.Fatal("IsTimeout(plain error) = true; want false")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatal("IsTimeout(context.DeadlineExceeded) = false; want true")
	}
}

package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitParsesReceipt(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submit-demo-download-url" {
			t.Errorf("path = %q; want /submit-demo-download-url", r.URL.Path)
		}
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"demo queued"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	receipt, err := c.Submit(context.Background(), "https://demos.example.com/1-abc.dem.gz")
	if err != nil {
		t.Fatalf("Submit() = %v; want nil", err)
	}
	if !receipt.Success || receipt.Message != "demo queued" {
		t.Fatalf("receipt = %+v; want success", receipt)
	}
	if gotBody != `{"url":"https://demos.example.com/1-abc.dem.gz"}` {
		t.Fatalf("request body = %s", gotBody)
	}
}

func TestSubmitClassifiesStatuses(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"internal error is transient", http.StatusInternalServerError, `{"message":"boom"}`, CodeTransient},
		{"bad gateway is transient", http.StatusBadGateway, ``, CodeTransient},
		{"forbidden is expired", http.StatusForbidden, `{"message":"denied"}`, CodeExpired},
		{"expired message is expired", http.StatusBadRequest, `{"message":"URL signature expired"}`, CodeExpired},
		{"plain bad request is permanent", http.StatusBadRequest, `{"message":"malformed url"}`, CodePermanent},
		{"not found is permanent", http.StatusNotFound, ``, CodePermanent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, time.Second)
			_, err := c.Submit(context.Background(), "https://demos.example.com/x.dem")
			if err == nil {
				t.Fatal("expected error")
			}

			var delivery *DeliveryError
			if !errors.As(err, &delivery) {
				t.Fatalf("expected *DeliveryError, got %T", err)
			}
			if delivery.Code != tc.wantCode {
				t.Fatalf("code = %s; want %s", delivery.Code, tc.wantCode)
			}
			if delivery.Status != tc.status {
				t.Fatalf("status = %d; want %d", delivery.Status, tc.status)
			}
		})
	}
}

func TestSubmitTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond)
	_, err := c.Submit(context.Background(), "https://demos.example.com/x.dem")

	var delivery *DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
	if !delivery.Transient() {
		t.Fatalf("timeout classified as %s; want %s", delivery.Code, CodeTransient)
	}
}

func TestClassifyConnectionFailureIsTransient(t *testing.T) {
	// Server closed before the request: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.Submit(context.Background(), "https://demos.example.com/x.dem")

	var delivery *DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
	if !delivery.Transient() {
		t.Fatalf("connection failure classified as %s; want %s", delivery.Code, CodeTransient)
	}
}

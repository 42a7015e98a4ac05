package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/demo_relay/internal/events"
)

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{}, events.NewBroker())
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if !strings.Contains(body, "/docs/events") {
		t.Fatalf("docs missing event stream link")
	}
}

func TestEventsDocsPage(t *testing.T) {
	h := NewServer(&stubService{}, events.NewBroker())
	req := httptest.NewRequest(http.MethodGet, "/docs/events", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/ws/events") {
		t.Fatal("event docs missing websocket endpoint")
	}
}

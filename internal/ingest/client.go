// Package ingest submits captured demo URLs to the Leetify ingestion
// endpoint and classifies delivery failures for the retry policy.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/httpx"
)

const (
	// CodeTransient marks failures worth retrying: timeouts, aborted
	// requests and 5xx responses.
	CodeTransient = "TRANSIENT"
	// CodePermanent marks failures that will not improve on retry (4xx).
	CodePermanent = "PERMANENT"
	// CodeExpired marks a permanent failure caused by a stale, single-use
	// demo URL (403 or a message naming an expired signature). The caller
	// must drop the captured locator and re-capture.
	CodeExpired = "EXPIRED_LOCATOR"
)

// DeliveryError is a classified submission failure.
type DeliveryError struct {
	Code    string
	Status  int // HTTP status when known, otherwise 0
	Message string
	Cause   error
}

func (e *DeliveryError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status=%d: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Transient reports whether the failure is retryable.
func (e *DeliveryError) Transient() bool { return e.Code == CodeTransient }

// Expired reports whether the captured locator itself is unusable.
func (e *DeliveryError) Expired() bool { return e.Code == CodeExpired }

// Receipt is the ingestion service's acknowledgement.
type Receipt struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client performs single-shot submissions. Retry belongs to Submitter.
type Client struct {
	http *httpx.Client
}

// NewClient creates a delivery client against the ingestion base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: httpx.NewClient(httpx.Config{
			BaseURL: baseURL,
			Timeout: timeout,
			DefaultHeaders: map[string]string{
				"Accept": "application/json",
			},
		}),
	}
}

// Submit posts one demo URL to the ingestion endpoint. Failures come back as
// *DeliveryError.
func (c *Client) Submit(ctx context.Context, demoURL string) (Receipt, error) {
	var receipt Receipt
	body := struct {
		URL string `json:"url"`
	}{URL: demoURL}

	err := c.http.PostJSON(ctx, "/submit-demo-download-url", body, &receipt)
	if err != nil {
		return Receipt{}, Classify(err)
	}
	return receipt, nil
}

// Classify converts a raw transport error into a *DeliveryError.
//
//   - timeouts and aborted requests are transient
//   - 5xx responses are transient
//   - 403 or a body naming "expired"/"signature" is an expired locator
//   - every other HTTP error is permanent
//   - remaining transport-level failures (refused, reset) are transient
func Classify(err error) *DeliveryError {
	var delivery *DeliveryError
	if errors.As(err, &delivery) {
		return delivery
	}

	var httpErr *httpx.Error
	if errors.As(err, &httpErr) {
		msg := strings.ToLower(httpErr.Message)
		switch {
		case httpErr.Status >= 500 && httpErr.Status < 600:
			return &DeliveryError{Code: CodeTransient, Status: httpErr.Status, Message: httpErr.Message, Cause: err}
		case httpErr.Status == 403,
			strings.Contains(msg, "expired"),
			strings.Contains(msg, "signature"):
			return &DeliveryError{Code: CodeExpired, Status: httpErr.Status, Message: httpErr.Message, Cause: err}
		default:
			return &DeliveryError{Code: CodePermanent, Status: httpErr.Status, Message: httpErr.Message, Cause: err}
		}
	}

	if httpx.IsTimeout(err) {
		return &DeliveryError{Code: CodeTransient, Message: "request timed out", Cause: err}
	}
	return &DeliveryError{Code: CodeTransient, Message: err.Error(), Cause: err}
}

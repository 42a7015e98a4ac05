package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Notifier posts plain-text delivery outcomes to a webhook endpoint
// (ntfy style). A zero endpoint disables it.
type Notifier struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, client *http.Client) *Notifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notifier{endpoint: endpoint, client: client}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.endpoint != "" }

// DeliverySucceeded announces a relayed demo for a match.
func (n *Notifier) DeliverySucceeded(ctx context.Context, matchID string) error {
	return n.Send(ctx, fmt.Sprintf("demo for match %s relayed for analysis", matchID))
}

// DeliveryFailed announces a failed relay attempt with its reason.
func (n *Notifier) DeliveryFailed(ctx context.Context, matchID, reason string) error {
	return n.Send(ctx, fmt.Sprintf("demo relay for match %s failed: %s", matchID, reason))
}

// Send posts a message to the configured endpoint using HTTP POST.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if !n.Enabled() {
		return fmt.Errorf("notify endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification failed: status=%d", resp.StatusCode)
	}
	return nil
}

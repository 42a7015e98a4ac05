package ingest

import (
	"context"
	"testing"
	"time"
)

type scriptedDeliverer struct {
	results []error
	calls   int
}

func (d *scriptedDeliverer) Submit(ctx context.Context, demoURL string) (Receipt, error) {
	i := d.calls
	d.calls++
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	if err := d.results[i]; err != nil {
		return Receipt{}, err
	}
	return Receipt{Success: true, Message: "ok"}, nil
}

func newTestSubmitter(d Deliverer, delays *[]time.Duration, jitter time.Duration) *Submitter {
	s := NewSubmitter(d)
	s.sleep = func(ctx context.Context, delay time.Duration) error {
		*delays = append(*delays, delay)
		return nil
	}
	s.jitter = func() time.Duration { return jitter }
	return s
}

func transient() error {
	return &DeliveryError{Code: CodeTransient, Status: 502, Message: "bad gateway"}
}

func TestSubmitterSucceedsOnFourthAttempt(t *testing.T) {
	d := &scriptedDeliverer{results: []error{transient(), transient(), transient(), nil}}
	var delays []time.Duration
	s := newTestSubmitter(d, &delays, 0)

	receipt, err := s.Submit(context.Background(), "u")
	if err != nil {
		t.Fatalf("Submit() = %v; want nil", err)
	}
	if !receipt.Success {
		t.Fatal("receipt not successful")
	}
	if d.calls != 4 {
		t.Fatalf("attempts = %d; want 4", d.calls)
	}

	// Backoff schedule: 800ms, 1600ms, 3200ms (no jitter injected).
	want := []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond, 3200 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("sleeps = %v; want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay[%d] = %v; want %v", i, delays[i], want[i])
		}
	}
}

func TestSubmitterStopsOnPermanentFailure(t *testing.T) {
	d := &scriptedDeliverer{results: []error{
		&DeliveryError{Code: CodePermanent, Status: 400, Message: "malformed"},
	}}
	var delays []time.Duration
	s := newTestSubmitter(d, &delays, 0)

	_, err := s.Submit(context.Background(), "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if d.calls != 1 {
		t.Fatalf("attempts = %d; want 1", d.calls)
	}
	if len(delays) != 0 {
		t.Fatalf("slept %v; want no sleeps", delays)
	}
}

func TestSubmitterExhaustsTransientFailures(t *testing.T) {
	d := &scriptedDeliverer{results: []error{transient()}}
	var delays []time.Duration
	s := newTestSubmitter(d, &delays, 0)

	_, err := s.Submit(context.Background(), "u")
	delivery, ok := err.(*DeliveryError)
	if !ok {
		t.Fatalf("expected *DeliveryError, got %T", err)
	}
	if !delivery.Transient() {
		t.Fatalf("code = %s; want transient", delivery.Code)
	}
	if d.calls != 4 {
		t.Fatalf("attempts = %d; want 4", d.calls)
	}
	if len(delays) != 3 {
		t.Fatalf("sleeps = %d; want 3", len(delays))
	}
}

func TestSubmitterDelayBounds(t *testing.T) {
	// With maximum jitter, each delay must stay within
	// min(5000ms, 800ms*2^(n-1)) + 250ms.
	d := &scriptedDeliverer{results: []error{transient()}}
	var delays []time.Duration
	s := newTestSubmitter(d, &delays, jitterCeiling)

	_, _ = s.Submit(context.Background(), "u")

	bounds := []time.Duration{
		800*time.Millisecond + jitterCeiling,
		1600*time.Millisecond + jitterCeiling,
		3200*time.Millisecond + jitterCeiling,
	}
	for i, delay := range delays {
		base := delay - jitterCeiling
		if base <= 0 || delay > bounds[i] {
			t.Fatalf("delay[%d] = %v; want within (%v, %v]", i, delay, jitterCeiling, bounds[i])
		}
	}
}

func TestBackoffDelayCapsAtFiveSeconds(t *testing.T) {
	if d := backoffDelay(1); d != 800*time.Millisecond {
		t.Fatalf("backoffDelay(1) = %v", d)
	}
	if d := backoffDelay(4); d != 5*time.Second {
		t.Fatalf("backoffDelay(4) = %v; want capped 5s", d)
	}
	if d := backoffDelay(10); d != 5*time.Second {
		t.Fatalf("backoffDelay(10) = %v; want capped 5s", d)
	}
}

func TestSubmitterUnwrapsRawTransportErrors(t *testing.T) {
	d := &scriptedDeliverer{results: []error{
		context.DeadlineExceeded, // raw, not yet classified
		nil,
	}}
	var delays []time.Duration
	s := newTestSubmitter(d, &delays, 0)

	receipt, err := s.Submit(context.Background(), "u")
	if err != nil {
		t.Fatalf("Submit() = %v; want recovery on attempt 2", err)
	}
	if !receipt.Success || d.calls != 2 {
		t.Fatalf("receipt=%+v calls=%d; want success after 2 attempts", receipt, d.calls)
	}
}

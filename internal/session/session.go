// Package session runs one controller per match-room tab: it tracks the
// match the tab is viewing, reconciles with the correlation store, reacts to
// capture notifications and drives demo submission.
package session

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/events"
	"github.com/dgnsrekt/demo_relay/internal/ingest"
	"github.com/google/uuid"
)

// State is a page session lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateScanning      State = "scanning"
	StateIdle          State = "idle"
	StateReady         State = "ready"
	StateSubmitting    State = "submitting"
	StateDelivered     State = "delivered"
	StateFailed        State = "failed"
)

// defaultDisplayDelay is how long the delivered state is shown before the
// session resets to idle.
const defaultDisplayDelay = 3 * time.Second

var roomURLPattern = regexp.MustCompile(`/room/([^/?#]+)`)

// MatchIDFromURL extracts the match id from a match-room URL: the path
// segment after "/room/", terminated by "/", "?" or "#". Empty when the URL
// is not a match-room page.
func MatchIDFromURL(rawURL string) string {
	m := roomURLPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Store is the correlation store surface the session consumes.
type Store interface {
	Put(matchID, demoURL string, downloadHandle int) error
	Get(matchID string) (correlation.Entry, bool)
	Evict()
}

// Submitter delivers one demo URL, retry policy included.
type Submitter interface {
	Submit(ctx context.Context, demoURL string) (ingest.Receipt, error)
}

// ArtifactRemover deletes a downloaded demo file by its handle.
type ArtifactRemover interface {
	Remove(handle int) error
}

// Journal records pipeline events for audit.
type Journal interface {
	Append(kind string, data any)
}

// Info is a read-only session snapshot for the status surface.
type Info struct {
	SessionID string `json:"session_id"`
	TargetID  string `json:"target_id"`
	MatchID   string `json:"match_id,omitempty"`
	State     State  `json:"state"`
	DemoURL   string `json:"demo_url,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Session is the per-tab controller.
type Session struct {
	id       string
	targetID string

	store     Store
	submitter Submitter
	artifacts ArtifactRemover
	broker    *events.Broker
	journal   Journal

	displayDelay time.Duration
	autoUpload   func() bool

	mu             sync.Mutex
	state          State
	matchID        string
	demoURL        string
	downloadHandle int
	message        string
	// generation fences in-flight submits: a navigation bumps it and any
	// submit started under an older generation discards its side effects.
	generation uint64
}

func newSession(targetID string, m *Manager) *Session {
	return &Session{
		id:           uuid.NewString(),
		targetID:     targetID,
		store:        m.store,
		submitter:    m.submitter,
		artifacts:    m.artifacts,
		broker:       m.broker,
		journal:      m.journal,
		displayDelay: m.displayDelay,
		autoUpload:   m.autoUpload,
		state:        StateUninitialized,
	}
}

// ID returns the session id assigned for this page view lineage.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current observable session state.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		SessionID: s.id,
		TargetID:  s.targetID,
		MatchID:   s.matchID,
		State:     s.state,
		DemoURL:   s.demoURL,
		Message:   s.message,
	}
}

// HandleNavigation recomputes the match id from the tab's address. An
// unchanged id is a no-op; a changed id drops local capture state, evicts
// the store entry best-effort and rescans for the new match.
func (s *Session) HandleNavigation(rawURL string) {
	matchID := MatchIDFromURL(rawURL)

	s.mu.Lock()
	if s.state != StateUninitialized && matchID == s.matchID {
		s.mu.Unlock()
		return
	}
	leaving := s.matchID
	s.generation++
	s.matchID = matchID
	s.demoURL = ""
	s.downloadHandle = 0
	s.message = ""
	if leaving != "" {
		s.store.Evict()
		slog.Debug("session evicted correlation on navigation", "session_id", s.id, "from", leaving, "to", matchID)
	}
	if matchID == "" {
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateScanning)
	s.mu.Unlock()

	s.scan(matchID)
}

// scan consults the correlation store for the current match and settles the
// session into ready or idle.
func (s *Session) scan(matchID string) {
	entry, ok := s.store.Get(matchID)

	s.mu.Lock()
	if s.matchID != matchID {
		// Navigated again while the scan was in flight.
		s.mu.Unlock()
		return
	}
	if ok {
		s.demoURL = entry.DemoURL
		s.downloadHandle = entry.DownloadHandle
		s.setStateLocked(StateReady)
	} else {
		s.setStateLocked(StateIdle)
	}
	auto := ok && s.autoUpload != nil && s.autoUpload()
	s.mu.Unlock()

	if auto {
		go s.submitAuto()
	}
}

// HandleCapture applies a demo-detected notification. The notification does
// not carry a match id; it applies to this session's current match (known
// limitation when several match-room tabs are open at once). Re-applying an
// identical capture is a no-op.
func (s *Session) HandleCapture(d events.DemoDetected) {
	s.mu.Lock()
	if s.matchID == "" {
		s.mu.Unlock()
		return
	}
	if s.state == StateSubmitting {
		// A new capture arriving mid-submit replaces nothing; the submit
		// outcome settles the state first.
		s.mu.Unlock()
		return
	}
	if s.demoURL == d.URL && s.downloadHandle == d.DownloadHandle && s.state == StateReady {
		s.mu.Unlock()
		return
	}
	matchID := s.matchID
	s.demoURL = d.URL
	s.downloadHandle = d.DownloadHandle
	s.message = ""
	if err := s.store.Put(matchID, d.URL, d.DownloadHandle); err != nil {
		slog.Warn("session failed to persist capture", "session_id", s.id, "match_id", matchID, "error", err)
	}
	s.setStateLocked(StateReady)
	auto := s.autoUpload != nil && s.autoUpload()
	s.mu.Unlock()

	slog.Info("session captured demo", "session_id", s.id, "match_id", matchID, "download_handle", d.DownloadHandle)
	if auto {
		go s.submitAuto()
	}
}

// Submit delivers the captured demo URL. Only valid from ready; otherwise it
// is a no-op prompting the user to capture first.
func (s *Session) Submit(ctx context.Context) (ingest.Receipt, error) {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		if state == StateSubmitting {
			return ingest.Receipt{}, newError(CodeNotReady, "a submission is already in progress", nil)
		}
		return ingest.Receipt{}, newError(CodeNoCapture, "no captured demo for this match; download the demo on the match page first", nil)
	}
	gen := s.generation
	matchID := s.matchID
	demoURL := s.demoURL
	handle := s.downloadHandle
	s.setStateLocked(StateSubmitting)
	s.mu.Unlock()

	if s.journal != nil {
		s.journal.Append(events.TypeDelivery, map[string]any{"match_id": matchID, "phase": "start"})
	}
	receipt, err := s.submitter.Submit(ctx, demoURL)

	s.mu.Lock()
	if s.generation != gen {
		// The tab moved to another match mid-flight; the result no longer
		// belongs to this session's state.
		s.mu.Unlock()
		slog.Info("session discarding stale submit result", "session_id", s.id, "match_id", matchID)
		return receipt, err
	}

	if err == nil {
		s.store.Evict()
		s.demoURL = ""
		s.downloadHandle = 0
		s.message = receipt.Message
		s.setStateLocked(StateDelivered)
		s.mu.Unlock()

		s.cleanupArtifact(handle)
		s.publishDelivery(matchID, true, receipt.Message, "")
		s.scheduleReset(gen)
		return receipt, nil
	}

	delivery := ingest.Classify(err)
	if delivery.Expired() {
		const remediation = "demo link expired; download the demo again to re-capture"
		s.store.Evict()
		s.demoURL = ""
		s.downloadHandle = 0
		s.message = remediation
		s.setStateLocked(StateIdle)
		s.mu.Unlock()

		s.publishDelivery(matchID, false, "", delivery.Message)
		return ingest.Receipt{}, newError(CodeExpiredLocator, remediation, delivery)
	}

	// Transient-exhausted or permanent: the capture stays usable for retry.
	s.message = delivery.Message
	s.setStateLocked(StateReady)
	s.mu.Unlock()

	s.publishDelivery(matchID, false, "", delivery.Message)
	return ingest.Receipt{}, newError(CodeDeliveryFailed, delivery.Message, delivery)
}

// submitAuto runs an auto-upload submission in the background.
func (s *Session) submitAuto() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.Submit(ctx); err != nil {
		slog.Warn("auto upload failed", "session_id", s.id, "error", err)
	}
}

// cleanupArtifact removes the downloaded demo file best-effort. Failure is
// logged and never affects the delivered outcome.
func (s *Session) cleanupArtifact(handle int) {
	if handle == 0 || s.artifacts == nil {
		return
	}
	if err := s.artifacts.Remove(handle); err != nil {
		slog.Warn("demo artifact cleanup failed", "session_id", s.id, "download_handle", handle, "error", err)
	}
}

// scheduleReset returns the session to idle after the display delay, unless
// it navigated or captured again in the meantime.
func (s *Session) scheduleReset(gen uint64) {
	delay := s.displayDelay
	if delay <= 0 {
		delay = defaultDisplayDelay
	}
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || s.state != StateDelivered {
			return
		}
		s.message = ""
		s.setStateLocked(StateIdle)
	})
}

func (s *Session) publishDelivery(matchID string, success bool, message, errMsg string) {
	if s.journal != nil {
		s.journal.Append(events.TypeDelivery, map[string]any{
			"match_id": matchID,
			"success":  success,
			"error":    errMsg,
		})
	}
	if s.broker != nil {
		s.broker.Publish(events.Event{Type: events.TypeDelivery, Payload: events.Delivery{
			MatchID: matchID,
			Success: success,
			Message: message,
			Error:   errMsg,
		}})
	}
}

// setStateLocked transitions state and announces it. Callers hold s.mu.
func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	slog.Debug("session state", "session_id", s.id, "match_id", s.matchID, "from", prev, "to", next)
	if s.broker != nil {
		s.broker.Publish(events.Event{Type: events.TypeSessionState, Payload: events.SessionState{
			SessionID: s.id,
			MatchID:   s.matchID,
			State:     string(next),
		}})
	}
}

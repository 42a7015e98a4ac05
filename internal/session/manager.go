package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/events"
	"github.com/dgnsrekt/demo_relay/internal/ingest"
)

// Manager owns one Session per attached match-room tab and routes watcher
// callbacks (attach, navigation, capture) to them.
type Manager struct {
	store     Store
	submitter Submitter
	artifacts ArtifactRemover
	broker    *events.Broker
	journal   Journal

	displayDelay time.Duration
	autoUpload   func() bool

	mu       sync.Mutex
	sessions map[string]*Session // keyed by CDP target id
}

// ManagerConfig wires the manager's collaborators.
type ManagerConfig struct {
	Store        Store
	Submitter    Submitter
	Artifacts    ArtifactRemover
	Broker       *events.Broker
	Journal      Journal
	DisplayDelay time.Duration
	// AutoUpload is polled on each capture; sessions submit immediately
	// upon reaching ready when it reports true.
	AutoUpload func() bool
}

// NewManager creates an empty manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		store:        cfg.Store,
		submitter:    cfg.Submitter,
		artifacts:    cfg.Artifacts,
		broker:       cfg.Broker,
		journal:      cfg.Journal,
		displayDelay: cfg.DisplayDelay,
		autoUpload:   cfg.AutoUpload,
		sessions:     make(map[string]*Session),
	}
}

// Attach creates (or replaces) the session for a tab and runs its initial
// scan against the tab's current address.
func (m *Manager) Attach(targetID, rawURL string) *Session {
	s := newSession(targetID, m)

	m.mu.Lock()
	m.sessions[targetID] = s
	m.mu.Unlock()

	slog.Info("session attached", "session_id", s.id, "target_id", targetID, "match_id", MatchIDFromURL(rawURL))
	s.HandleNavigation(rawURL)
	return s
}

// Detach drops the session for a closed tab.
func (m *Manager) Detach(targetID string) {
	m.mu.Lock()
	s, ok := m.sessions[targetID]
	if ok {
		delete(m.sessions, targetID)
	}
	m.mu.Unlock()
	if ok {
		slog.Info("session detached", "session_id", s.id, "target_id", targetID)
	}
}

// Navigated forwards an address change (SPA or full) to the tab's session.
func (m *Manager) Navigated(targetID, rawURL string) {
	m.mu.Lock()
	s, ok := m.sessions[targetID]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.HandleNavigation(rawURL)
}

// CaptureDetected fans a classified download out to every session. Each
// session decides for itself whether the capture applies; per-session
// problems are logged and swallowed because the correlation store write has
// already happened upstream.
func (m *Manager) CaptureDetected(d events.DemoDetected) {
	for _, s := range m.snapshotSessions() {
		s.HandleCapture(d)
	}
}

// Submit drives the submit action for the session currently holding a
// capture. With no ready session it fails with a capture-first prompt.
func (m *Manager) Submit(ctx context.Context) (ingest.Receipt, error) {
	var target *Session
	for _, s := range m.snapshotSessions() {
		if s.Snapshot().State == StateReady {
			target = s
			break
		}
	}
	if target == nil {
		return ingest.Receipt{}, newError(CodeNoCapture, "no captured demo; download the demo on the match page first", nil)
	}
	return target.Submit(ctx)
}

// SubmitURL relays an explicitly supplied demo locator, bypassing session
// state. Used when the locator was resolved out of band, for example through
// the match lookup endpoints.
func (m *Manager) SubmitURL(ctx context.Context, matchID, demoURL string) (ingest.Receipt, error) {
	if m.journal != nil {
		m.journal.Append(events.TypeDelivery, map[string]any{"match_id": matchID, "phase": "start", "direct": true})
	}
	receipt, err := m.submitter.Submit(ctx, demoURL)
	if err != nil {
		delivery := ingest.Classify(err)
		m.publishDelivery(matchID, false, "", delivery.Message)
		if delivery.Expired() {
			return ingest.Receipt{}, newError(CodeExpiredLocator, "demo link expired; resolve a fresh one and retry", delivery)
		}
		return ingest.Receipt{}, newError(CodeDeliveryFailed, delivery.Message, delivery)
	}
	m.publishDelivery(matchID, true, receipt.Message, "")
	return receipt, nil
}

func (m *Manager) publishDelivery(matchID string, success bool, message, errMsg string) {
	if m.journal != nil {
		m.journal.Append(events.TypeDelivery, map[string]any{
			"match_id": matchID,
			"success":  success,
			"error":    errMsg,
		})
	}
	if m.broker != nil {
		m.broker.Publish(events.Event{Type: events.TypeDelivery, Payload: events.Delivery{
			MatchID: matchID,
			Success: success,
			Message: message,
			Error:   errMsg,
		}})
	}
}

// Sessions returns snapshots of all live sessions, ordered by target id for
// stable output.
func (m *Manager) Sessions() []Info {
	sessions := m.snapshotSessions()
	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Snapshot())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].TargetID < infos[j].TargetID })
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) snapshotSessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

package controller

import (
	"context"
	"strings"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/faceit"
	"github.com/dgnsrekt/demo_relay/internal/ingest"
	"github.com/dgnsrekt/demo_relay/internal/session"
	"github.com/dgnsrekt/demo_relay/internal/settings"
	"github.com/dgnsrekt/demo_relay/internal/watcher"
)

// StatusInfo is the agent-wide status snapshot returned by the control API.
type StatusInfo struct {
	WatcherState string             `json:"watcher_state"`
	TabCount     int                `json:"tab_count"`
	HasCapture   bool               `json:"has_capture"`
	Capture      *correlation.Entry `json:"capture,omitempty"`
	Sessions     []session.Info     `json:"sessions"`
	Tabs         []watcher.TabInfo  `json:"tabs"`
}

// Service wraps the capture pipeline for the control API.
type Service struct {
	watch    *watcher.Watcher
	sessions *session.Manager
	store    *correlation.Store
	settings *settings.Service

	faceitBaseURL string
	httpTimeout   time.Duration
}

func NewService(w *watcher.Watcher, sessions *session.Manager, store *correlation.Store, st *settings.Service, faceitBaseURL string) *Service {
	if faceitBaseURL == "" {
		faceitBaseURL = faceit.DefaultBaseURL
	}
	return &Service{
		watch:         w,
		sessions:      sessions,
		store:         store,
		settings:      st,
		faceitBaseURL: faceitBaseURL,
		httpTimeout:   10 * time.Second,
	}
}

func (s *Service) Status(ctx context.Context) (StatusInfo, error) {
	info := StatusInfo{
		WatcherState: s.watch.State(),
		TabCount:     s.watch.TabCount(),
		Sessions:     s.sessions.Sessions(),
		Tabs:         s.watch.Tabs(),
	}
	if entry, ok := s.store.Peek(); ok {
		info.HasCapture = true
		info.Capture = &entry
	}
	if info.Sessions == nil {
		info.Sessions = []session.Info{}
	}
	if info.Tabs == nil {
		info.Tabs = []watcher.TabInfo{}
	}
	return info, nil
}

// Capture returns the currently held correlation, if still fresh.
func (s *Service) Capture(ctx context.Context) (correlation.Entry, bool) {
	return s.store.Peek()
}

// ClearCapture drops the held correlation.
func (s *Service) ClearCapture(ctx context.Context) error {
	s.store.Evict()
	return nil
}

// SubmitDemo relays a demo URL. With an explicit demoURL it bypasses session
// state; otherwise it goes through the first ready session's capture.
func (s *Service) SubmitDemo(ctx context.Context, demoURL string) (ingest.Receipt, error) {
	demoURL = strings.TrimSpace(demoURL)
	if demoURL != "" {
		return s.sessions.SubmitURL(ctx, "", demoURL)
	}
	return s.sessions.Submit(ctx)
}

// RemoveDownload deletes a tracked demo artifact from disk.
func (s *Service) RemoveDownload(ctx context.Context, handle int) error {
	if handle <= 0 {
		return &session.CodedError{Code: session.CodeValidation, Message: "handle must be positive"}
	}
	if err := s.watch.Downloads().Remove(handle); err != nil {
		return &session.CodedError{Code: session.CodeSessionNotFound, Message: err.Error(), Cause: err}
	}
	return nil
}

func (s *Service) Sessions(ctx context.Context) []session.Info {
	return s.sessions.Sessions()
}

func (s *Service) GetSettings(ctx context.Context) settings.Settings {
	return s.settings.Load()
}

func (s *Service) UpdateSettings(ctx context.Context, p settings.Partial) (settings.Settings, []string, error) {
	return s.settings.Save(p)
}

// faceitClient builds a client with the credentials currently on disk.
// Settings can change at runtime, so the client is not cached.
func (s *Service) faceitClient() (*faceit.Client, error) {
	st := s.settings.Load()
	if strings.TrimSpace(st.FaceitAPIKey) == "" {
		return nil, &session.CodedError{Code: session.CodeValidation, Message: "faceit api key is not configured"}
	}
	return faceit.NewClient(s.faceitBaseURL, st.FaceitAPIKey, s.httpTimeout), nil
}

// ListMatches returns the configured player's recent match history.
func (s *Service) ListMatches(ctx context.Context) ([]faceit.Match, error) {
	st := s.settings.Load()
	if strings.TrimSpace(st.FaceitPlayerID) == "" {
		return nil, &session.CodedError{Code: session.CodeValidation, Message: "faceit player id is not configured"}
	}
	client, err := s.faceitClient()
	if err != nil {
		return nil, err
	}
	matches, err := client.PlayerMatches(ctx, st.FaceitPlayerID, st.MaxMatches)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []faceit.Match{}
	}
	return matches, nil
}

// MatchDemo returns the demo locators recorded for a match.
func (s *Service) MatchDemo(ctx context.Context, matchID string) (faceit.MatchDetails, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return faceit.MatchDetails{}, &session.CodedError{Code: session.CodeValidation, Message: "match_id is required"}
	}
	client, err := s.faceitClient()
	if err != nil {
		return faceit.MatchDetails{}, err
	}
	return client.MatchDetails(ctx, matchID)
}

// MatchStats returns per-player scoreboard rows for a match.
func (s *Service) MatchStats(ctx context.Context, matchID string) ([]faceit.PlayerStats, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, &session.CodedError{Code: session.CodeValidation, Message: "match_id is required"}
	}
	client, err := s.faceitClient()
	if err != nil {
		return nil, err
	}
	stats, err := client.MatchStats(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []faceit.PlayerStats{}
	}
	return stats, nil
}

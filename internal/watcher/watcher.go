// Package watcher is the process-wide capture coordinator. It attaches to
// match-room tabs in a running Chromium over CDP, observes browser download
// events, classifies them and feeds positive captures to the correlation
// store and the page sessions.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/demo_relay/internal/classify"
	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/events"
	"github.com/dgnsrekt/demo_relay/internal/session"
)

const defaultRescanInterval = 5 * time.Second

// Config holds watcher construction options.
type Config struct {
	CDPURL         string
	TabURLFilter   string // substring a tab URL must contain to be attached
	DownloadDir    func() string
	RescanInterval time.Duration
}

// Journal records pipeline events for audit.
type Journal interface {
	Append(kind string, data any)
}

// Watcher coordinates CDP tab attachment and download capture.
type Watcher struct {
	cfg       Config
	sessions  *session.Manager
	store     *correlation.Store
	broker    *events.Broker
	journal   Journal
	downloads *DownloadTracker
	registry  *TabRegistry

	mu          sync.Mutex
	watching    bool
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        map[target.ID]context.CancelFunc
}

// New creates a Watcher. journal may be nil.
func New(cfg Config, sessions *session.Manager, store *correlation.Store, broker *events.Broker, journal Journal) *Watcher {
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = defaultRescanInterval
	}
	if cfg.DownloadDir == nil {
		cfg.DownloadDir = func() string { return "" }
	}
	return &Watcher{
		cfg:       cfg,
		sessions:  sessions,
		store:     store,
		broker:    broker,
		journal:   journal,
		downloads: NewDownloadTracker(cfg.DownloadDir),
		registry:  NewTabRegistry(),
		tabs:      make(map[target.ID]context.CancelFunc),
	}
}

// Downloads exposes the artifact tracker (sessions use it for cleanup).
func (w *Watcher) Downloads() *DownloadTracker { return w.downloads }

// State reports "watching" once EnsureWatching has succeeded, else "idle".
func (w *Watcher) State() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return "watching"
	}
	return "idle"
}

// TabCount returns the number of attached match-room tabs.
func (w *Watcher) TabCount() int { return w.registry.Count() }

// Tabs returns a snapshot of attached tabs.
func (w *Watcher) Tabs() []TabInfo { return w.registry.List() }

// EnsureWatching connects to the browser and subscribes to download events.
// Idempotent: only the first successful call does work, so re-entrant
// startup paths cannot double-subscribe. The background rescan loop runs
// until ctx is canceled.
func (w *Watcher) EnsureWatching(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return nil
	}

	slog.Info("connecting to browser", "cdp_url", w.cfg.CDPURL)
	w.allocCtx, w.allocCancel = chromedp.NewRemoteAllocator(context.Background(), w.cfg.CDPURL)

	tempCtx, tempCancel := chromedp.NewContext(w.allocCtx)
	defer tempCancel()
	if err := chromedp.Run(tempCtx); err != nil {
		w.allocCancel()
		w.allocCtx = nil
		return fmt.Errorf("watcher: connect to browser: %w", err)
	}

	attached, err := w.attachMatchingLocked(tempCtx)
	if err != nil {
		w.allocCancel()
		w.allocCtx = nil
		return err
	}

	slog.Info("watching for demo downloads", "tabs", attached, "tab_url_filter", w.cfg.TabURLFilter)
	w.watching = true
	go w.rescanLoop(ctx)
	return nil
}

// Close detaches from all tabs and drops the browser connection.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, cancel := range w.tabs {
		cancel()
		delete(w.tabs, id)
	}
	if w.allocCancel != nil {
		w.allocCancel()
		w.allocCancel = nil
		w.allocCtx = nil
	}
	w.watching = false
	slog.Info("watcher closed")
	return nil
}

// rescanLoop periodically attaches to match-room tabs opened after startup.
func (w *Watcher) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if !w.watching {
				w.mu.Unlock()
				return
			}
			tempCtx, tempCancel := chromedp.NewContext(w.allocCtx)
			if _, err := w.attachMatchingLocked(tempCtx); err != nil {
				slog.Debug("tab rescan failed", "error", err)
			}
			tempCancel()
			w.mu.Unlock()
		}
	}
}

// attachMatchingLocked enumerates page targets and attaches to new ones
// passing the URL filter. Caller holds w.mu.
func (w *Watcher) attachMatchingLocked(enumCtx context.Context) (int, error) {
	targets, err := chromedp.Targets(enumCtx)
	if err != nil {
		return 0, fmt.Errorf("watcher: enumerate targets: %w", err)
	}

	attached := 0
	for _, t := range targets {
		if t.Type != "page" || !w.matchesTabURL(t.URL) {
			continue
		}
		if _, exists := w.tabs[t.TargetID]; exists {
			continue
		}
		if err := w.attachToTabLocked(t.TargetID, t.URL); err != nil {
			slog.Error("failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attached++
	}
	return attached, nil
}

// attachToTabLocked opens a per-tab CDP context, enables the page domain and
// download events, and creates the tab's session. Caller holds w.mu.
func (w *Watcher) attachToTabLocked(targetID target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(w.allocCtx, chromedp.WithTargetID(targetID))

	actions := []chromedp.Action{page.Enable()}
	behavior := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).WithEventsEnabled(true)
	if dir := w.cfg.DownloadDir(); dir != "" {
		behavior = behavior.WithDownloadPath(dir)
	}
	actions = append(actions, behavior)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		tabCancel()
		return fmt.Errorf("watcher: enable domains: %w", err)
	}

	w.tabs[targetID] = tabCancel
	info := w.registry.Register(targetID, url)
	w.sessions.Attach(string(targetID), url)

	chromedp.ListenTarget(tabCtx, w.tabEventHandler(targetID))
	go w.reapOnClose(tabCtx, targetID)

	slog.Info("attached to match-room tab", "target_id", targetID, "match_id", info.MatchID, "url", truncateURL(url))
	return nil
}

// reapOnClose removes registry and session state when the tab goes away.
func (w *Watcher) reapOnClose(tabCtx context.Context, targetID target.ID) {
	<-tabCtx.Done()
	w.registry.Remove(targetID)
	w.sessions.Detach(string(targetID))

	w.mu.Lock()
	delete(w.tabs, targetID)
	w.mu.Unlock()
	slog.Info("tab detached", "target_id", targetID)
}

// tabEventHandler routes CDP events for one tab.
func (w *Watcher) tabEventHandler(targetID target.ID) func(ev any) {
	return func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				w.onNavigated(targetID, e.Frame.URL, "full")
			}
		case *page.EventNavigatedWithinDocument:
			w.onNavigated(targetID, e.URL, "spa")
		case *browser.EventDownloadWillBegin:
			w.onDownloadWillBegin(e.GUID, e.URL, e.SuggestedFilename)
		case *browser.EventDownloadProgress:
			w.downloads.Progress(e.GUID, string(e.State))
		}
	}
}

func (w *Watcher) onNavigated(targetID target.ID, url, kind string) {
	info := w.registry.Register(targetID, url)
	slog.Debug("tab navigated", "target_id", targetID, "kind", kind, "match_id", info.MatchID, "url", truncateURL(url))
	w.sessions.Navigated(string(targetID), url)
}

// onDownloadWillBegin classifies a starting download and, on a positive
// match, records the correlation and notifies sessions. The store write
// happens before any notification so a session that scans instead of
// receiving the push still observes the capture.
func (w *Watcher) onDownloadWillBegin(guid, url, filename string) {
	if !classify.Match(url, filename) {
		slog.Debug("ignoring non-demo download", "filename", filename, "url", truncateURL(url))
		return
	}

	handle := w.downloads.Begin(guid, url, filename)
	slog.Info("demo download detected", "download_handle", handle, "filename", filename, "url", truncateURL(url))

	// With exactly one match-room tab the capture's match is unambiguous
	// and the store write can happen here, ahead of notification. With
	// several open rooms each session stamps its own match id on receipt.
	if matchID, ok := w.soleMatchID(); ok {
		if err := w.store.Put(matchID, url, handle); err != nil {
			slog.Warn("correlation store write failed", "match_id", matchID, "error", err)
		}
	}

	if w.journal != nil {
		w.journal.Append(events.TypeDemoDetected, map[string]any{
			"download_handle": handle,
			"filename":        filename,
		})
	}

	detected := events.DemoDetected{URL: url, Filename: filename, DownloadHandle: handle}
	w.broker.Publish(events.Event{Type: events.TypeDemoDetected, Payload: detected})
	w.sessions.CaptureDetected(detected)
}

// soleMatchID returns the match id shared by the attached room tabs when it
// is unambiguous.
func (w *Watcher) soleMatchID() (string, bool) {
	matchID := ""
	for _, info := range w.registry.List() {
		if info.MatchID == "" {
			continue
		}
		if matchID != "" && matchID != info.MatchID {
			return "", false
		}
		matchID = info.MatchID
	}
	return matchID, matchID != ""
}

func (w *Watcher) matchesTabURL(url string) bool {
	if w.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(w.cfg.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}

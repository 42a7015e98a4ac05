package watcher

import (
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/demo_relay/internal/session"
)

// TabInfo describes an attached match-room tab.
type TabInfo struct {
	TargetID string
	URL      string
	MatchID  string
}

// TabRegistry maps CDP target IDs to tab metadata.
type TabRegistry struct {
	tabs map[target.ID]*TabInfo
	mu   sync.RWMutex
}

func NewTabRegistry() *TabRegistry {
	return &TabRegistry{tabs: make(map[target.ID]*TabInfo)}
}

// Register records or refreshes a tab, re-deriving its match id from the URL.
func (r *TabRegistry) Register(targetID target.ID, url string) *TabInfo {
	info := &TabInfo{
		TargetID: string(targetID),
		URL:      url,
		MatchID:  session.MatchIDFromURL(url),
	}
	r.mu.Lock()
	r.tabs[targetID] = info
	r.mu.Unlock()
	return info
}

func (r *TabRegistry) Get(targetID target.ID) (*TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tabs[targetID]
	return info, ok
}

func (r *TabRegistry) Remove(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, targetID)
}

func (r *TabRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}

// List returns a snapshot of all registered tabs.
func (r *TabRegistry) List() []TabInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TabInfo, 0, len(r.tabs))
	for _, info := range r.tabs {
		out = append(out, *info)
	}
	return out
}

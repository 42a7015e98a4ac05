// Package settings persists operator settings as a JSON file under the data
// directory and validates partial updates before they land.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

const fileName = "settings.json"

var playerIDRe = regexp.MustCompile(`^[a-f0-9-]{36}$`)

// Settings is the full operator-facing configuration.
type Settings struct {
	FaceitAPIKey   string `json:"faceitApiKey"`
	FaceitPlayerID string `json:"faceitPlayerId"`
	AutoUpload     bool   `json:"autoUpload"`
	MaxMatches     int    `json:"maxMatches"`
	DownloadPath   string `json:"downloadPath"`
}

// Partial is a sparse update; nil fields are left untouched.
type Partial struct {
	FaceitAPIKey   *string `json:"faceitApiKey,omitempty"`
	FaceitPlayerID *string `json:"faceitPlayerId,omitempty"`
	AutoUpload     *bool   `json:"autoUpload,omitempty"`
	MaxMatches     *int    `json:"maxMatches,omitempty"`
	DownloadPath   *string `json:"downloadPath,omitempty"`
}

// Defaults returns the settings used before anything is saved.
func Defaults() Settings {
	return Settings{
		MaxMatches:   20,
		DownloadPath: "",
	}
}

// Service owns the settings file.
type Service struct {
	path string

	mu  sync.RWMutex
	cur Settings
}

// NewService loads existing settings from dir or starts from defaults.
func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("settings: mkdir %s: %w", dir, err)
	}
	s := &Service{
		path: filepath.Join(dir, fileName),
		cur:  Defaults(),
	}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Load returns the current settings.
func (s *Service) Load() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save validates and applies a partial update, persisting the merged result.
// Validation failures return the full error list and change nothing.
func (s *Service) Save(p Partial) (Settings, []string, error) {
	if errs := Validate(p); len(errs) > 0 {
		return s.Load(), errs, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.cur
	if p.FaceitAPIKey != nil {
		merged.FaceitAPIKey = *p.FaceitAPIKey
	}
	if p.FaceitPlayerID != nil {
		merged.FaceitPlayerID = *p.FaceitPlayerID
	}
	if p.AutoUpload != nil {
		merged.AutoUpload = *p.AutoUpload
	}
	if p.MaxMatches != nil {
		merged.MaxMatches = *p.MaxMatches
	}
	if p.DownloadPath != nil {
		merged.DownloadPath = *p.DownloadPath
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return s.cur, nil, fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return s.cur, nil, fmt.Errorf("settings: write: %w", err)
	}
	s.cur = merged
	return merged, nil, nil
}

// Validate checks a partial update and returns human-readable problems.
func Validate(p Partial) []string {
	var errs []string
	if p.FaceitAPIKey != nil && *p.FaceitAPIKey != "" && len(*p.FaceitAPIKey) < 10 {
		errs = append(errs, "Faceit API key appears to be too short")
	}
	if p.FaceitPlayerID != nil && *p.FaceitPlayerID != "" && !playerIDRe.MatchString(*p.FaceitPlayerID) {
		errs = append(errs, "Faceit Player ID should be a valid UUID format")
	}
	if p.MaxMatches != nil && (*p.MaxMatches < 1 || *p.MaxMatches > 100) {
		errs = append(errs, "Max matches should be between 1 and 100")
	}
	return errs
}

// reload replaces current settings from disk.
func (s *Service) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("settings: parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.cur = loaded
	s.mu.Unlock()
	return nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AgentConfig holds all configuration for the demo relay agent.
type AgentConfig struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	LaunchBrowser bool

	// Control API bind settings
	BindAddr       string
	BindCandidates []string
	AutoFallback   bool

	// Tab matching
	TabURLFilter string

	// Storage
	DataDir     string
	DownloadDir string

	// Upstream endpoints
	IngestBaseURL string
	FaceitBaseURL string

	// Behavior
	DisplayDelay   time.Duration
	RescanInterval time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// Outcome notifications (optional webhook)
	NotifyURL string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*AgentConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &AgentConfig{
		CDPAddress:     getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:        getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		LaunchBrowser:  getEnvBoolOrDefault("AGENT_LAUNCH_BROWSER", false),
		BindAddr:       getEnvOrDefault("AGENT_BIND_ADDR", ""),
		BindCandidates: getEnvListOrDefault("AGENT_BIND_CANDIDATES", []string{"127.0.0.1:8190", "127.0.0.1:8191", "127.0.0.1:8192"}),
		AutoFallback:   getEnvBoolOrDefault("AGENT_BIND_AUTO_FALLBACK", true),
		TabURLFilter:   getEnvOrDefault("AGENT_TAB_URL_FILTER", "faceit.com"),
		DataDir:        getEnvOrDefault("AGENT_DATA_DIR", "./relay_data"),
		DownloadDir:    getEnvOrDefault("AGENT_DOWNLOAD_DIR", ""),
		IngestBaseURL:  getEnvOrDefault("AGENT_INGEST_BASE_URL", "https://api.cs-prod.leetify.com"),
		FaceitBaseURL:  getEnvOrDefault("AGENT_FACEIT_BASE_URL", "https://open.faceit.com/data/v4"),
		DisplayDelay:   getEnvDurationOrDefault("AGENT_DISPLAY_DELAY_MS", 3000*time.Millisecond),
		RescanInterval: getEnvDurationOrDefault("AGENT_RESCAN_INTERVAL_MS", 5000*time.Millisecond),
		LogLevel:       strings.ToLower(getEnvOrDefault("AGENT_LOG_LEVEL", "info")),
		LogFile:        getEnvOrDefault("AGENT_LOG_FILE", "logs/demo_relay.log"),
		NotifyURL:      getEnvOrDefault("AGENT_NOTIFY_URL", ""),
	}

	if cfg.RescanInterval < time.Second {
		cfg.RescanInterval = time.Second
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *AgentConfig) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

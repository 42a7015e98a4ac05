package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.CDPURL() != "http://127.0.0.1:9222" {
		t.Fatalf("CDPURL() = %q", cfg.CDPURL())
	}
	if cfg.TabURLFilter != "faceit.com" {
		t.Fatalf("TabURLFilter = %q", cfg.TabURLFilter)
	}
	if cfg.RescanInterval != 5*time.Second {
		t.Fatalf("RescanInterval = %v", cfg.RescanInterval)
	}
	if len(cfg.BindCandidates) == 0 {
		t.Fatal("no bind candidates")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("AGENT_BIND_CANDIDATES", "127.0.0.1:9000 , 127.0.0.1:9001,")
	t.Setenv("AGENT_RESCAN_INTERVAL_MS", "250")
	t.Setenv("AGENT_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.CDPPort != 9333 {
		t.Fatalf("CDPPort = %d", cfg.CDPPort)
	}
	if len(cfg.BindCandidates) != 2 || cfg.BindCandidates[1] != "127.0.0.1:9001" {
		t.Fatalf("BindCandidates = %v", cfg.BindCandidates)
	}
	if cfg.RescanInterval != time.Second {
		t.Fatalf("RescanInterval = %v; want clamped to 1s", cfg.RescanInterval)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHROMIUM_CDP_PORT", "not-a-port")
	t.Setenv("AGENT_BIND_AUTO_FALLBACK", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.CDPPort != 9222 {
		t.Fatalf("CDPPort = %d; want default", cfg.CDPPort)
	}
	if !cfg.AutoFallback {
		t.Fatal("AutoFallback should keep its default")
	}
}

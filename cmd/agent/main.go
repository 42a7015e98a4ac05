package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/api"
	"github.com/dgnsrekt/demo_relay/internal/browser"
	"github.com/dgnsrekt/demo_relay/internal/config"
	"github.com/dgnsrekt/demo_relay/internal/controller"
	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/events"
	"github.com/dgnsrekt/demo_relay/internal/ingest"
	"github.com/dgnsrekt/demo_relay/internal/journal"
	"github.com/dgnsrekt/demo_relay/internal/netutil"
	"github.com/dgnsrekt/demo_relay/internal/notify"
	"github.com/dgnsrekt/demo_relay/internal/session"
	"github.com/dgnsrekt/demo_relay/internal/settings"
	"github.com/dgnsrekt/demo_relay/internal/watcher"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// downloadArtifacts bridges the session manager's artifact cleanup to the
// watcher's download tracker. The watcher is built after the manager, so
// the pointer is filled in once both exist; nothing submits before then.
type downloadArtifacts struct {
	w *watcher.Watcher
}

func (d *downloadArtifacts) Remove(handle int) error {
	if d.w == nil {
		return errors.New("watcher not started")
	}
	return d.w.Downloads().Remove(handle)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("demo_relay config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"bind_candidates", cfg.BindCandidates,
		"tab_url_filter", cfg.TabURLFilter,
		"data_dir", cfg.DataDir,
		"ingest_base_url", cfg.IngestBaseURL,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.BindCandidates, cfg.AutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: filepath.Join(cfg.DataDir, "profile"),
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	settingsSvc, err := settings.NewService(cfg.DataDir)
	if err != nil {
		slog.Error("failed to init settings", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	store, err := correlation.NewStore(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open correlation store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	jw, err := journal.NewWriter(cfg.DataDir, 25)
	if err != nil {
		slog.Error("failed to open journal", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := jw.Close(); err != nil {
			slog.Debug("journal close failed", "error", err)
		}
	}()

	broker := events.NewBroker()
	submitter := ingest.NewSubmitter(ingest.NewClient(cfg.IngestBaseURL, 10*time.Second))

	artifacts := &downloadArtifacts{}
	sessions := session.NewManager(session.ManagerConfig{
		Store:        store,
		Submitter:    submitter,
		Artifacts:    artifacts,
		Broker:       broker,
		Journal:      jw,
		DisplayDelay: cfg.DisplayDelay,
		AutoUpload:   func() bool { return settingsSvc.Load().AutoUpload },
	})

	downloadDir := func() string {
		if p := settingsSvc.Load().DownloadPath; p != "" {
			return p
		}
		return cfg.DownloadDir
	}
	w := watcher.New(watcher.Config{
		CDPURL:         cfg.CDPURL(),
		TabURLFilter:   cfg.TabURLFilter,
		DownloadDir:    downloadDir,
		RescanInterval: cfg.RescanInterval,
	}, sessions, store, broker, jw)
	artifacts.w = w
	defer func() {
		if err := w.Close(); err != nil {
			slog.Debug("watcher close failed", "error", err)
		}
	}()

	if err := w.EnsureWatching(ctx); err != nil {
		slog.Warn("browser watch not started, will keep retrying", "cdp_url", cfg.CDPURL(), "error", err)
	}

	svc := controller.NewService(w, sessions, store, settingsSvc, cfg.FaceitBaseURL)
	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, broker)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("demo_relay listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		return nil
	})

	// Reconnect loop: the browser may start after the agent, or restart.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.RescanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if w.State() == "watching" {
					continue
				}
				if err := w.EnsureWatching(gctx); err != nil {
					slog.Debug("browser watch retry failed", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		err := settingsSvc.Watch(gctx, func(s settings.Settings) {
			slog.Info("settings applied",
				"auto_upload", s.AutoUpload,
				"max_matches", s.MaxMatches,
			)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("settings hot-reload disabled", "error", err)
		}
		return nil
	})

	if cfg.NotifyURL != "" {
		notifier := notify.New(cfg.NotifyURL, nil)
		g.Go(func() error {
			return deliveryNotifyLoop(gctx, broker, notifier)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("demo_relay exited with error", "error", err)
		os.Exit(1)
	}
}

// deliveryNotifyLoop forwards submission outcomes to the configured webhook.
func deliveryNotifyLoop(ctx context.Context, broker *events.Broker, notifier *notify.Notifier) error {
	id, ch := broker.Subscribe()
	defer broker.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if evt.Type != events.TypeDelivery {
				continue
			}
			d, ok := evt.Payload.(events.Delivery)
			if !ok {
				continue
			}
			notifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			var err error
			if d.Success {
				err = notifier.DeliverySucceeded(notifyCtx, d.MatchID)
			} else {
				err = notifier.DeliveryFailed(notifyCtx, d.MatchID, d.Error)
			}
			cancel()
			if err != nil {
				slog.Debug("delivery notification failed", "match_id", d.MatchID, "error", err)
			}
		}
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/demo_relay/internal/controller"
	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/events"
	"github.com/dgnsrekt/demo_relay/internal/faceit"
	"github.com/dgnsrekt/demo_relay/internal/ingest"
	"github.com/dgnsrekt/demo_relay/internal/session"
	"github.com/dgnsrekt/demo_relay/internal/settings"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	Status(ctx context.Context) (controller.StatusInfo, error)
	Capture(ctx context.Context) (correlation.Entry, bool)
	ClearCapture(ctx context.Context) error
	SubmitDemo(ctx context.Context, demoURL string) (ingest.Receipt, error)
	RemoveDownload(ctx context.Context, handle int) error
	Sessions(ctx context.Context) []session.Info
	GetSettings(ctx context.Context) settings.Settings
	UpdateSettings(ctx context.Context, p settings.Partial) (settings.Settings, []string, error)
	ListMatches(ctx context.Context) ([]faceit.Match, error)
	MatchDemo(ctx context.Context, matchID string) (faceit.MatchDetails, error)
	MatchStats(ctx context.Context, matchID string) ([]faceit.PlayerStats, error)
}

func NewServer(svc Service, broker *events.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Demo Relay Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	router.Get("/events", events.SSEHandler(broker))
	router.Get("/ws/events", events.WSHandler(broker))

	registerPipelineHandlers(api, svc)
	registerSettingsHandlers(api, svc)
	registerMatchHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *session.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case session.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case session.CodeSessionNotFound:
			return huma.Error404NotFound(coded.Message)
		case session.CodeNoCapture, session.CodeNotReady:
			return huma.Error409Conflict(coded.Message)
		case session.CodeExpiredLocator:
			return huma.Error410Gone(coded.Message)
		case session.CodeDeliveryFailed:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

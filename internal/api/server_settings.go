package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/demo_relay/internal/settings"
)

// maskedSettings hides the API key from read responses while signalling
// whether one is configured.
type maskedSettings struct {
	HasAPIKey      bool   `json:"has_api_key"`
	FaceitPlayerID string `json:"faceitPlayerId"`
	AutoUpload     bool   `json:"autoUpload"`
	MaxMatches     int    `json:"maxMatches"`
	DownloadPath   string `json:"downloadPath"`
}

func mask(s settings.Settings) maskedSettings {
	return maskedSettings{
		HasAPIKey:      s.FaceitAPIKey != "",
		FaceitPlayerID: s.FaceitPlayerID,
		AutoUpload:     s.AutoUpload,
		MaxMatches:     s.MaxMatches,
		DownloadPath:   s.DownloadPath,
	}
}

func registerSettingsHandlers(api huma.API, svc Service) {
	type settingsOutput struct {
		Body maskedSettings
	}
	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Get agent settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			out := &settingsOutput{}
			out.Body = mask(svc.GetSettings(ctx))
			return out, nil
		})

	type updateSettingsInput struct {
		Body settings.Partial
	}
	type updateSettingsOutput struct {
		Body struct {
			Settings maskedSettings `json:"settings"`
			Errors   []string       `json:"errors"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Update agent settings", Description: "Partial update. When any field fails validation nothing is applied and the errors list explains why.", Tags: []string{"Settings"}},
		func(ctx context.Context, input *updateSettingsInput) (*updateSettingsOutput, error) {
			applied, verrs, err := svc.UpdateSettings(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &updateSettingsOutput{}
			out.Body.Settings = mask(applied)
			out.Body.Errors = verrs
			if out.Body.Errors == nil {
				out.Body.Errors = []string{}
			}
			return out, nil
		})
}

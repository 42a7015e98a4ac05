package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/demo_relay/internal/controller"
	"github.com/dgnsrekt/demo_relay/internal/correlation"
	"github.com/dgnsrekt/demo_relay/internal/session"
)

func registerPipelineHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type statusOutput struct {
		Body controller.StatusInfo
	}
	huma.Register(api, huma.Operation{OperationID: "get-status", Method: http.MethodGet, Path: "/api/v1/status", Summary: "Agent status with sessions, tabs and current capture", Tags: []string{"Pipeline"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			info, err := svc.Status(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body = info
			return out, nil
		})

	type captureOutput struct {
		Body struct {
			HasCapture bool               `json:"has_capture"`
			Capture    *correlation.Entry `json:"capture,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-capture", Method: http.MethodGet, Path: "/api/v1/capture", Summary: "Get the currently held demo capture", Tags: []string{"Pipeline"}},
		func(ctx context.Context, input *struct{}) (*captureOutput, error) {
			out := &captureOutput{}
			if entry, ok := svc.Capture(ctx); ok {
				out.Body.HasCapture = true
				out.Body.Capture = &entry
			}
			return out, nil
		})

	type clearCaptureOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "clear-capture", Method: http.MethodDelete, Path: "/api/v1/capture", Summary: "Drop the held demo capture", Tags: []string{"Pipeline"}},
		func(ctx context.Context, input *struct{}) (*clearCaptureOutput, error) {
			if err := svc.ClearCapture(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &clearCaptureOutput{}
			out.Body.Status = "cleared"
			return out, nil
		})

	type submitOutput struct {
		Body struct {
			Success bool   `json:"success"`
			Message string `json:"message,omitempty"`
		}
	}
	type submitInput struct {
		// The body is optional; without one the captured locator is used.
		RawBody []byte `contentType:"application/json" required:"false"`
	}
	// SkipValidateBody: the handler parses the raw bytes itself; huma would
	// otherwise validate JSON bodies against the binary-string RawBody schema.
	huma.Register(api, huma.Operation{OperationID: "submit-demo", Method: http.MethodPost, Path: "/api/v1/demo/submit", Summary: "Relay a demo URL for analysis", Tags: []string{"Pipeline"}, SkipValidateBody: true},
		func(ctx context.Context, input *submitInput) (*submitOutput, error) {
			var demoURL string
			if len(input.RawBody) > 0 {
				var body struct {
					DemoURL string `json:"demo_url"`
				}
				if err := json.Unmarshal(input.RawBody, &body); err != nil {
					return nil, huma.Error400BadRequest("invalid request body")
				}
				demoURL = body.DemoURL
			}
			receipt, err := svc.SubmitDemo(ctx, demoURL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &submitOutput{}
			out.Body.Success = receipt.Success
			out.Body.Message = receipt.Message
			return out, nil
		})
	// huma marks RawBody inputs required regardless of the required tag; the
	// registered operation is shared with the request path, so clearing the
	// flag here restores the optional body declared above.
	api.OpenAPI().Paths["/api/v1/demo/submit"].Post.RequestBody.Required = false

	type sessionsOutput struct {
		Body struct {
			Sessions []session.Info `json:"sessions"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-sessions", Method: http.MethodGet, Path: "/api/v1/sessions", Summary: "List attached page sessions", Tags: []string{"Pipeline"}},
		func(ctx context.Context, input *struct{}) (*sessionsOutput, error) {
			out := &sessionsOutput{}
			out.Body.Sessions = svc.Sessions(ctx)
			if out.Body.Sessions == nil {
				out.Body.Sessions = []session.Info{}
			}
			return out, nil
		})

	type removeDownloadInput struct {
		Handle int `path:"handle" doc:"Download handle from the capture record"`
	}
	type removeDownloadOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "remove-download", Method: http.MethodDelete, Path: "/api/v1/downloads/{handle}", Summary: "Delete a downloaded demo artifact", Tags: []string{"Pipeline"}},
		func(ctx context.Context, input *removeDownloadInput) (*removeDownloadOutput, error) {
			if err := svc.RemoveDownload(ctx, input.Handle); err != nil {
				return nil, mapErr(err)
			}
			out := &removeDownloadOutput{}
			out.Body.Status = "removed"
			return out, nil
		})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/demo_relay/internal/faceit"
)

func registerMatchHandlers(api huma.API, svc Service) {
	type matchesOutput struct {
		Body struct {
			Matches []faceit.Match `json:"matches"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-matches", Method: http.MethodGet, Path: "/api/v1/matches", Summary: "List the configured player's recent matches", Tags: []string{"Matches"}},
		func(ctx context.Context, input *struct{}) (*matchesOutput, error) {
			matches, err := svc.ListMatches(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &matchesOutput{}
			out.Body.Matches = matches
			return out, nil
		})

	type matchIDInput struct {
		MatchID string `path:"match_id"`
	}
	type matchDemoOutput struct {
		Body struct {
			MatchID  string   `json:"match_id"`
			DemoURLs []string `json:"demo_urls"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-match-demo", Method: http.MethodGet, Path: "/api/v1/matches/{match_id}/demo", Summary: "Get demo locators for a match", Tags: []string{"Matches"}},
		func(ctx context.Context, input *matchIDInput) (*matchDemoOutput, error) {
			details, err := svc.MatchDemo(ctx, input.MatchID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &matchDemoOutput{}
			out.Body.MatchID = input.MatchID
			out.Body.DemoURLs = details.DemoURLs
			if out.Body.DemoURLs == nil {
				out.Body.DemoURLs = []string{}
			}
			return out, nil
		})

	type matchStatsOutput struct {
		Body struct {
			MatchID string               `json:"match_id"`
			Players []faceit.PlayerStats `json:"players"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-match-stats", Method: http.MethodGet, Path: "/api/v1/matches/{match_id}/stats", Summary: "Get per-player scoreboard for a match", Tags: []string{"Matches"}},
		func(ctx context.Context, input *matchIDInput) (*matchStatsOutput, error) {
			players, err := svc.MatchStats(ctx, input.MatchID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &matchStatsOutput{}
			out.Body.MatchID = input.MatchID
			out.Body.Players = players
			return out, nil
		})
}

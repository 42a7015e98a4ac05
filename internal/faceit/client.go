// Package faceit is a read-only client for the Faceit open data API. The
// agent uses it as a manual fallback: when no browser capture happened, a
// match's demo URL can still be resolved server-side and fed to delivery.
package faceit

import (
	"context"
	"fmt"
	"time"

	"github.com/dgnsrekt/demo_relay/internal/httpx"
)

// DefaultBaseURL is the Faceit open data API v4 root.
const DefaultBaseURL = "https://open.faceit.com/data/v4"

// Match is one entry from a player's match history.
type Match struct {
	MatchID    string `json:"match_id"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
}

// MatchDetails carries the demo URLs published for a finished match.
type MatchDetails struct {
	DemoURLs []string `json:"demo_url"`
}

// PlayerStats is a single player's stat line for a match.
type PlayerStats struct {
	PlayerID string            `json:"player_id"`
	Nickname string            `json:"nickname"`
	Stats    map[string]string `json:"game_player_stats"`
}

// Client talks to the Faceit data API with a bearer API key.
type Client struct {
	http *httpx.Client
}

// NewClient creates a Client. An empty apiKey leaves requests unauthenticated,
// which Faceit rejects; validation of the key belongs to settings.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	headers := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &Client{
		http: httpx.NewClient(httpx.Config{
			BaseURL:        baseURL,
			DefaultHeaders: headers,
			Timeout:        timeout,
		}),
	}
}

// PlayerMatches returns the player's most recent matches, newest first.
func (c *Client) PlayerMatches(ctx context.Context, playerID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 1
	}
	var out struct {
		Items []Match `json:"items"`
	}
	path := fmt.Sprintf("/players/%s/history?limit=%d", playerID, limit)
	if err := c.http.GetJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("faceit: player matches: %w", err)
	}
	return out.Items, nil
}

// MatchDetails returns demo URLs for a match.
func (c *Client) MatchDetails(ctx context.Context, matchID string) (MatchDetails, error) {
	var out MatchDetails
	if err := c.http.GetJSON(ctx, "/matches/"+matchID, &out); err != nil {
		return MatchDetails{}, fmt.Errorf("faceit: match details: %w", err)
	}
	return out, nil
}

// MatchStats returns per-player stats with both teams flattened.
func (c *Client) MatchStats(ctx context.Context, matchID string) ([]PlayerStats, error) {
	var out struct {
		Rounds []struct {
			Teams []struct {
				Players []PlayerStats `json:"players"`
			} `json:"teams"`
		} `json:"rounds"`
	}
	if err := c.http.GetJSON(ctx, "/matches/"+matchID+"/stats", &out); err != nil {
		return nil, fmt.Errorf("faceit: match stats: %w", err)
	}
	if len(out.Rounds) == 0 {
		return nil, nil
	}
	var players []PlayerStats
	for _, team := range out.Rounds[0].Teams {
		players = append(players, team.Players...)
	}
	return players, nil
}

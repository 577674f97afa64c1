// Package api provides the HTTP client the console uses to talk to the
// socwatch server.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"socwatch/internal/config"
	"socwatch/internal/engine"
)

// Client handles API communication with the socwatch backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int    `json:"uptime_seconds"`
}

// QueueMetrics mirrors the server's queue counters.
type QueueMetrics struct {
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}

// Stats is the engine and queue counter payload.
type Stats struct {
	Events         int            `json:"events"`
	Alerts         int            `json:"alerts"`
	Investigations int            `json:"investigations"`
	AlertsSeverity map[string]int `json:"alerts_severity"`
	Queue          QueueMetrics   `json:"queue"`
}

type alertsResponse struct {
	Alerts []engine.Alert `json:"alerts"`
}

type investigationsResponse struct {
	Investigations []engine.Investigation `json:"investigations"`
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetHealth fetches health status.
func (c *Client) GetHealth() (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get("/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetStats fetches engine and queue counters.
func (c *Client) GetStats() (*Stats, error) {
	var stats Stats
	if err := c.get("/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetAlerts fetches the current alert list.
func (c *Client) GetAlerts() ([]engine.Alert, error) {
	var resp alertsResponse
	if err := c.get("/v1/alerts", &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// GetInvestigations fetches the current investigation list.
func (c *Client) GetInvestigations() ([]engine.Investigation, error) {
	var resp investigationsResponse
	if err := c.get("/v1/investigations", &resp); err != nil {
		return nil, err
	}
	return resp.Investigations, nil
}

// GetTrends fetches the per-minute trend report.
func (c *Client) GetTrends(minutes int) (*engine.TrendReport, error) {
	var report engine.TrendReport
	if err := c.get(fmt.Sprintf("/v1/trends?minutes=%d", minutes), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GetSettings fetches the live detection settings.
func (c *Client) GetSettings() (*config.Settings, error) {
	var s config.Settings
	if err := c.get("/v1/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// actionRequest is the shared body for action posts.
type actionRequest struct {
	Type string `json:"type"`
	By   string `json:"by"`
	Note string `json:"note,omitempty"`
	User string `json:"user,omitempty"`
}

// PostAlertAction applies an analyst action to an alert.
func (c *Client) PostAlertAction(alertID string, action engine.ActionType, by string) error {
	return c.post("/v1/alerts/"+alertID+"/actions",
		actionRequest{Type: string(action), By: by}, nil)
}

// PostInvestigationAction applies an analyst action to an investigation.
// User is required for user-scoped containment, otherwise empty.
func (c *Client) PostInvestigationAction(id string, action engine.ActionType, by, user string) error {
	return c.post("/v1/investigations/"+id+"/actions",
		actionRequest{Type: string(action), By: by, User: user}, nil)
}

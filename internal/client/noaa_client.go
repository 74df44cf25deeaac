package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/embersense/api/internal/config"
	"github.com/embersense/api/internal/model"
)

const (
	noaaMaxRetries   = 3
	noaaRetryBackoff = 2 * time.Second
)

// StationProvider defines the interface for listing ground weather stations
type StationProvider interface {
	ListStations(ctx context.Context, datasetID string, limit int) ([]model.Station, error)
	IsConfigured() bool
}

// NOAAClient implements StationProvider against the NOAA Climate Data
// Online API. All requests carry the account token header.
type NOAAClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

type noaaStationsResponse struct {
	Results []struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		MinDate   string  `json:"mindate"`
		MaxDate   string  `json:"maxdate"`
	} `json:"results"`
}

// NewNOAAClient creates a NOAA CDO API client
func NewNOAAClient(cfg *config.NOAAConfig) *NOAAClient {
	return &NOAAClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

// ListStations fetches stations carrying the given dataset (e.g. GHCND)
func (c *NOAAClient) ListStations(ctx context.Context, datasetID string, limit int) ([]model.Station, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("NOAA token not configured")
	}

	q := url.Values{}
	q.Set("datasetid", datasetID)
	q.Set("limit", fmt.Sprintf("%d", limit))

	body, err := c.getWithRetry(ctx, fmt.Sprintf("%s/stations?%s", c.baseURL, q.Encode()))
	if err != nil {
		return nil, err
	}

	var payload noaaStationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal NOAA response: %w", err)
	}

	stations := make([]model.Station, 0, len(payload.Results))
	for _, r := range payload.Results {
		stations = append(stations, model.Station{
			ID:        r.ID,
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			MinDate:   r.MinDate,
			MaxDate:   r.MaxDate,
		})
	}

	return stations, nil
}

// IsConfigured returns true if an API token is present
func (c *NOAAClient) IsConfigured() bool {
	return c.token != ""
}

// getWithRetry issues a GET with the token header, backing off on 429
func (c *NOAAClient) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := noaaRetryBackoff

	for attempt := 0; attempt < noaaMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("token", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to reach NOAA API: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			select {
			case <-time.After(backoff):
				backoff *= 2
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("NOAA API error (status %d): %s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("NOAA API rate limit: retries exhausted")
}

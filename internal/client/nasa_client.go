package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/embersense/api/internal/config"
	"github.com/embersense/api/internal/model"
)

// powerParameters are the daily variables requested from NASA POWER:
// 2m air temperature, 2m relative humidity, surface pressure, all-sky
// shortwave irradiance and corrected precipitation.
const powerParameters = "T2M,RH2M,PS,ALLSKY_SFC_SW_DWN,PRECTOTCORR"

// powerFillValue marks missing observations in POWER responses
const powerFillValue = -999.0

const (
	nasaMaxRetries   = 4
	nasaRetryBackoff = 2 * time.Second
)

// WeatherProvider defines the interface for fetching daily weather
// observations for a coordinate.
type WeatherProvider interface {
	FetchDaily(ctx context.Context, lat, lon float64, start, end string) ([]model.SensorReading, error)
}

// NASAClient implements WeatherProvider against the NASA POWER API
type NASAClient struct {
	httpClient *http.Client
	baseURL    string
	community  string
}

// powerResponse mirrors the slice of the POWER payload we read. Parameter
// values are keyed by date in YYYYMMDD form.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// NewNASAClient creates a NASA POWER API client
func NewNASAClient(cfg *config.NASAConfig) *NASAClient {
	return &NASAClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL:   cfg.BaseURL,
		community: cfg.Community,
	}
}

// FetchDaily retrieves daily observations for a point between start and end
// dates (YYYYMMDD, inclusive). Returns one reading per day, sorted by date.
func (c *NASAClient) FetchDaily(ctx context.Context, lat, lon float64, start, end string) ([]model.SensorReading, error) {
	q := url.Values{}
	q.Set("parameters", powerParameters)
	q.Set("community", c.community)
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start", start)
	q.Set("end", end)
	q.Set("format", "JSON")

	endpoint := fmt.Sprintf("%s/temporal/daily/point?%s", c.baseURL, q.Encode())

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload powerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal POWER response: %w", err)
	}

	temps := payload.Properties.Parameter["T2M"]
	if len(temps) == 0 {
		return nil, fmt.Errorf("POWER response contains no observations")
	}

	dates := make([]string, 0, len(temps))
	for d := range temps {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	readings := make([]model.SensorReading, 0, len(dates))
	for _, d := range dates {
		r := model.SensorReading{
			Date:           d,
			Temperature:    powerValue(payload.Properties.Parameter, "T2M", d),
			Humidity:       powerValue(payload.Properties.Parameter, "RH2M", d),
			Pressure:       powerValue(payload.Properties.Parameter, "PS", d),
			SolarRadiation: powerValue(payload.Properties.Parameter, "ALLSKY_SFC_SW_DWN", d),
			Precipitation:  powerValue(payload.Properties.Parameter, "PRECTOTCORR", d),
		}
		readings = append(readings, r)
	}

	return readings, nil
}

// getWithRetry issues a GET and backs off exponentially on 429 responses
func (c *NASAClient) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := nasaRetryBackoff

	for attempt := 0; attempt < nasaMaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to reach NASA POWER API: %w", err)
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
			return nil, fmt.Errorf("NASA POWER API error (status %d): %s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("NASA POWER API rate limit: retries exhausted")
}

// powerValue reads one observation, mapping POWER's fill value to zero
func powerValue(params map[string]map[string]float64, code, date string) float64 {
	v, ok := params[code][date]
	if !ok || v == powerFillValue {
		return 0
	}
	return v
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/embersense/api/internal/config"
)

// ModelInvoker defines the interface for remote model inference
type ModelInvoker interface {
	Predict(ctx context.Context, features []float64) (*PredictResponse, error)
	HealthCheck(ctx context.Context) error
	IsConfigured() bool
}

// ModelClient implements ModelInvoker for the Node.js server wrapping the
// compiled Edge Impulse WebAssembly model.
type ModelClient struct {
	httpClient *http.Client
	baseURL    string
}

// PredictRequest carries the 21-element feature vector to the model server
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the model server's classification result
type PredictResponse struct {
	Status         string  `json:"status"`
	Prediction     int     `json:"prediction"` // 1 = fire, 0 = no fire
	Confidence     float64 `json:"confidence"`
	PredictionText string  `json:"prediction_text"`
}

// NewModelClient creates a new inference client
func NewModelClient(cfg *config.ModelConfig) *ModelClient {
	return &ModelClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServerURL,
	}
}

// Predict sends a feature vector to the model server and returns its verdict
func (c *ModelClient) Predict(ctx context.Context, features []float64) (*PredictResponse, error) {
	body, err := json.Marshal(&PredictRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach model server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result PredictResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("model server returned status %q", result.Status)
	}

	return &result, nil
}

// HealthCheck checks if the model server is available
func (c *ModelClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ModelClient) IsConfigured() bool {
	return c.baseURL != ""
}

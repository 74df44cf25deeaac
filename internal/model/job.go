package model

import (
	"encoding/json"
	"time"
)

// Job represents a background job in the system. Payload and Result are
// JSON documents and must survive the redis round trip, so they are
// stored as raw JSON on the record itself.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"` // "batch" or "sensor"
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	RetryCount  int             `json:"retryCount"`
}

// Job types
const (
	JobTypeBatch  = "batch"
	JobTypeSensor = "sensor"
)

// BatchJobPayload contains the data for a batch evaluation job
type BatchJobPayload struct {
	Dir      string `json:"dir"`
	Label    Label  `json:"label"`
	MaxFiles int    `json:"maxFiles"`
}

// SensorJobPayload contains the data for a sensor ingest job
type SensorJobPayload struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	StartDate string  `json:"startDate"` // YYYYMMDD
	EndDate   string  `json:"endDate"`   // YYYYMMDD
}

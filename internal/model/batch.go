package model

import "time"

// BatchStartRequest starts an evaluation run over a local dataset directory
type BatchStartRequest struct {
	Dir      string `json:"dir" validate:"required"`
	Label    Label  `json:"label" validate:"required,oneof=fire non_fire"`
	MaxFiles int    `json:"maxFiles" validate:"omitempty,min=1,max=500"`
}

// BatchStartResponse acknowledges a queued batch job
type BatchStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchStatusResponse reports progress of a batch job
type BatchStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// ClipResult is the outcome for a single file in a batch run
type ClipResult struct {
	Filename   string  `json:"filename"`
	Prediction Label   `json:"prediction"`
	Confidence float64 `json:"confidence"`
	TrueLabel  Label   `json:"trueLabel"`
	Correct    bool    `json:"correct"`
}

// BatchResultResponse is the final report of a batch evaluation
type BatchResultResponse struct {
	JobID       string       `json:"jobId"`
	TrueLabel   Label        `json:"trueLabel"`
	TotalTested int          `json:"totalTested"`
	Correct     int          `json:"correct"`
	Accuracy    float64      `json:"accuracy"`
	Results     []ClipResult `json:"results"`
	CompletedAt time.Time    `json:"completedAt"`
}

// BatchCancelResponse acknowledges a cancel request
type BatchCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

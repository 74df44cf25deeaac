package model

// Message types on the /ws/jobs/:jobId stream. Workers push progress,
// complete and error frames; ping/pong is the dashboard keep-alive.
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the minimal frame read off the wire to dispatch on type
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports batch/sensor job progress as a percentage
// plus the human-readable step the worker is on
type WSProgressMessage struct {
	Type        string    `json:"type"`
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      JobStatus `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
}

// WSCompleteMessage carries the finished job's result document — a
// BatchResultResponse or RiskSummary depending on the job type
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage tells watchers the job failed
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError mirrors the REST error envelope's code/message pair
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

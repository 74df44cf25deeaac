package model

import "time"

// FeatureStats summarizes the extracted feature vector for display
type FeatureStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// AnalyzeResponse is the result of classifying one uploaded clip
type AnalyzeResponse struct {
	ID             string          `json:"id"`
	Filename       string          `json:"filename"`
	Label          Label           `json:"label"`
	Confidence     float64         `json:"confidence"`
	PredictionText string          `json:"predictionText"`
	Source         InferenceSource `json:"source"`
	StrongVerdict  bool            `json:"strongVerdict,omitempty"`
	Duration       float64         `json:"duration"`
	SampleRate     int             `json:"sampleRate"`
	FeatureStats   FeatureStats    `json:"featureStats"`
	ClipURL        string          `json:"clipUrl,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ModelInfoResponse reports metrics of the deployed model artifact.
// Values come from the training run exported alongside the model.
type ModelInfoResponse struct {
	Ready       bool    `json:"ready"`
	Accuracy    float64 `json:"accuracy"`
	FireRecall  float64 `json:"fireRecall"`
	LatencyMs   float64 `json:"latencyMs"`
	ModelSizeMB float64 `json:"modelSizeMb"`
}

// ModelMetricsFile mirrors the JSON layout of the exported
// baseline_performance.json metrics file.
type ModelMetricsFile struct {
	ValidationMetrics struct {
		Accuracy float64 `json:"accuracy"`
	} `json:"validation_metrics"`
	FireDetectionAnalysis struct {
		RecallFire float64 `json:"recall_fire"`
	} `json:"fire_detection_analysis"`
	OnDevicePerformance struct {
		InferencingTimeMs float64 `json:"inferencing_time_ms"`
		FlashUsageMB      float64 `json:"flash_usage_mb"`
	} `json:"on_device_performance"`
}

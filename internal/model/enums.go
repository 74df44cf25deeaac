package model

// Classification labels
type Label string

const (
	LabelFire    Label = "fire"
	LabelNonFire Label = "non_fire"
)

var ValidLabels = []Label{LabelFire, LabelNonFire}

// Inference sources
type InferenceSource string

const (
	SourceModel    InferenceSource = "model"    // Edge Impulse model server
	SourceFallback InferenceSource = "fallback" // local heuristic scorer
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether a job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCanceled
}

// Risk levels derived from the composite sensor risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"      // score < 40
	RiskLevelModerate RiskLevel = "moderate" // 40 <= score <= 70
	RiskLevelHigh     RiskLevel = "high"     // score > 70
)

// RiskLevelForScore maps a 0-100 composite score to a risk level.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score > 70:
		return RiskLevelHigh
	case score >= 40:
		return RiskLevelModerate
	default:
		return RiskLevelLow
	}
}

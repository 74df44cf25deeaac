package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/model"
)

const TaskTypeSensor = "sensor:ingest"

// riskRetention keeps location risk summaries around much longer than
// job records; the dashboard reads them between ingest runs.
const riskRetention = 30 * 24 * time.Hour

// SensorService manages environmental data ingest jobs and the derived
// fire-risk summaries.
type SensorService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	stations    client.StationProvider
}

func NewSensorService(redisClient *redis.Client, asynqClient *asynq.Client, stations client.StationProvider) *SensorService {
	return &SensorService{
		redis:       redisClient,
		asynqClient: asynqClient,
		stations:    stations,
	}
}

// StartIngest queues a weather data collection job for a location
func (s *SensorService) StartIngest(ctx context.Context, req *model.SensorIngestRequest) (*model.SensorIngestResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeSensor,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.SensorJobPayload{
		Location:  req.Location,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job.Payload = payloadBytes

	if err := saveJob(ctx, s.redis, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newJobTask(TaskTypeSensor, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("sensor"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.SensorIngestResponse{
		JobID:     jobID,
		Location:  req.Location,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of an ingest job
func (s *SensorService) GetStatus(ctx context.Context, jobID string) (*model.BatchStatusResponse, error) {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return nil, err
	}

	return &model.BatchStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
	}, nil
}

// GetResult returns the risk summary produced by a completed ingest job
func (s *SensorService) GetResult(ctx context.Context, jobID string) (*model.RiskSummary, error) {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}

	var summary model.RiskSummary
	if err := json.Unmarshal(job.Result, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &summary, nil
}

// CancelIngest cancels an ingest job. The worker checks job status
// before persisting results and drops them when canceled.
func (s *SensorService) CancelIngest(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == model.JobStatusSucceeded || job.Status == model.JobStatusFailed {
		return nil, fmt.Errorf("job already completed")
	}

	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now

	if err := saveJob(ctx, s.redis, job); err != nil {
		return nil, err
	}

	return &model.BatchCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

// GetJob returns the raw job record (used by the worker to observe
// cancellation)
func (s *SensorService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return getJob(ctx, s.redis, jobID)
}

// GetRisk returns the stored risk summary for a location
func (s *SensorService) GetRisk(ctx context.Context, location string) (*model.RiskSummary, error) {
	data, err := s.redis.Get(ctx, riskKey(location)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("no risk data for location %q", location)
		}
		return nil, err
	}

	var summary model.RiskSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal risk summary: %w", err)
	}

	return &summary, nil
}

// StoreRisk persists a location risk summary (called by worker)
func (s *SensorService) StoreRisk(ctx context.Context, summary *model.RiskSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, riskKey(summary.Location), data, riskRetention).Err()
}

// ListStations proxies the NOAA station catalog for the front end
func (s *SensorService) ListStations(ctx context.Context, limit int) (*model.StationsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	stations, err := s.stations.ListStations(ctx, "GHCND", limit)
	if err != nil {
		return nil, err
	}

	return &model.StationsResponse{Stations: stations}, nil
}

// StationsConfigured reports whether the NOAA integration is usable
func (s *SensorService) StationsConfigured() bool {
	return s.stations != nil && s.stations.IsConfigured()
}

// UpdateJobProgress updates job progress (called by worker)
func (s *SensorService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return saveJob(ctx, s.redis, job)
}

// CompleteJob marks job as completed (called by worker)
func (s *SensorService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return saveJob(ctx, s.redis, job)
}

// FailJob marks job as failed (called by worker)
func (s *SensorService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return err
	}
	// A job canceled mid-run must stay canceled even if a later step errors
	if job.Status.Terminal() {
		return nil
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return saveJob(ctx, s.redis, job)
}

func riskKey(location string) string {
	return fmt.Sprintf("sensor:risk:%s", location)
}

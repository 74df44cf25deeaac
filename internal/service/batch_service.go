package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/model"
)

const TaskTypeBatch = "batch:evaluate"

// BatchService manages dataset evaluation jobs
type BatchService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewBatchService(redisClient *redis.Client, asynqClient *asynq.Client) *BatchService {
	return &BatchService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartBatch queues a new evaluation run over a dataset directory
func (s *BatchService) StartBatch(ctx context.Context, req *model.BatchStartRequest) (*model.BatchStartResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeBatch,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.BatchJobPayload{
		Dir:      req.Dir,
		Label:    req.Label,
		MaxFiles: req.MaxFiles,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job.Payload = payloadBytes

	if err := saveJob(ctx, s.redis, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newJobTask(TaskTypeBatch, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("batch"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.BatchStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a batch job
func (s *BatchService) GetStatus(ctx context.Context, jobID string) (*model.BatchStatusResponse, error) {
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

// GetResult returns the evaluation report of a completed batch job
func (s *BatchService) GetResult(ctx context.Context, jobID string) (*model.BatchResultResponse, error) {
	job, err := getJob(ctx, s.redis, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}

	var result model.BatchResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// CancelBatch cancels a batch job. The worker checks job status between
// files and stops at the next boundary.
func (s *BatchService) CancelBatch(ctx context.Context, jobID string) (*model.BatchCancelResponse, error) {
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
// cancellation between files)
func (s *BatchService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return getJob(ctx, s.redis, jobID)
}

// UpdateJobProgress updates job progress (called by worker)
func (s *BatchService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
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
func (s *BatchService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
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
func (s *BatchService) FailJob(ctx context.Context, jobID string, errMsg string) error {
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

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/model"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   14, // separate DB from the e2e suite
	})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// The task payload must come back out exactly the way the workers read
// it: an envelope whose payload field is the original JSON document, not
// a base64 string.
func TestNewJobTask_WorkerDecodesPayload(t *testing.T) {
	payload, err := json.Marshal(&model.BatchJobPayload{
		Dir:      "/data/fire",
		Label:    model.LabelFire,
		MaxFiles: 5,
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	task, err := newJobTask(TaskTypeBatch, "job-123", payload)
	if err != nil {
		t.Fatalf("newJobTask failed: %v", err)
	}

	var envelope struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		t.Fatalf("failed to unmarshal task envelope: %v", err)
	}
	if envelope.JobID != "job-123" {
		t.Errorf("expected jobId 'job-123', got %q", envelope.JobID)
	}

	var decoded model.BatchJobPayload
	if err := json.Unmarshal(envelope.Payload, &decoded); err != nil {
		t.Fatalf("payload does not decode the way the worker reads it: %v", err)
	}
	if decoded.Dir != "/data/fire" || decoded.Label != model.LabelFire || decoded.MaxFiles != 5 {
		t.Errorf("payload round trip mangled fields: %+v", decoded)
	}
}

// Payload and Result must survive the redis round trip on the job record.
func TestSaveJob_KeepsPayloadAndResult(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeBatch,
		Status:    model.JobStatusSucceeded,
		Payload:   json.RawMessage(`{"dir":"/data/fire"}`),
		Result:    json.RawMessage(`{"accuracy":0.9}`),
		CreatedAt: time.Now(),
	}

	if err := saveJob(ctx, rdb, job); err != nil {
		t.Fatalf("saveJob failed: %v", err)
	}

	got, err := getJob(ctx, rdb, job.ID)
	if err != nil {
		t.Fatalf("getJob failed: %v", err)
	}
	if string(got.Payload) != `{"dir":"/data/fire"}` {
		t.Errorf("payload lost in round trip: %s", got.Payload)
	}
	if string(got.Result) != `{"accuracy":0.9}` {
		t.Errorf("result lost in round trip: %s", got.Result)
	}
}

func TestFailJob_KeepsCanceledState(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	svc := NewBatchService(rdb, nil)

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeBatch,
		Status:    model.JobStatusCanceled,
		CreatedAt: time.Now(),
	}
	if err := saveJob(ctx, rdb, job); err != nil {
		t.Fatalf("saveJob failed: %v", err)
	}

	if err := svc.FailJob(ctx, job.ID, "late failure"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	got, err := getJob(ctx, rdb, job.ID)
	if err != nil {
		t.Fatalf("getJob failed: %v", err)
	}
	if got.Status != model.JobStatusCanceled {
		t.Errorf("expected status canceled, got %s", got.Status)
	}
	if got.Error != nil {
		t.Errorf("error recorded on canceled job: %s", *got.Error)
	}
}

func TestCompleteJob_KeepsCanceledState(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	svc := NewSensorService(rdb, nil, nil)

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeSensor,
		Status:    model.JobStatusCanceled,
		CreatedAt: time.Now(),
	}
	if err := saveJob(ctx, rdb, job); err != nil {
		t.Fatalf("saveJob failed: %v", err)
	}

	if err := svc.CompleteJob(ctx, job.ID, &model.RiskSummary{Location: "late"}); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	got, err := getJob(ctx, rdb, job.ID)
	if err != nil {
		t.Fatalf("getJob failed: %v", err)
	}
	if got.Status != model.JobStatusCanceled {
		t.Errorf("expected status canceled, got %s", got.Status)
	}
	if len(got.Result) != 0 {
		t.Errorf("result recorded on canceled job: %s", got.Result)
	}
}

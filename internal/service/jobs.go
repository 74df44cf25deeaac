package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/model"
)

// ErrJobNotFound is returned when no record exists for a job ID
var ErrJobNotFound = errors.New("job not found")

// jobRetention is how long job records stay readable after creation
const jobRetention = 24 * time.Hour

func saveJob(ctx context.Context, rdb *redis.Client, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, jobRetention).Err()
}

func getJob(ctx context.Context, rdb *redis.Client, jobID string) (*model.Job, error) {
	data, err := rdb.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// newJobTask wraps a job ID and its payload into an asynq task. The
// payload must stay raw JSON here: as a plain []byte it would be
// marshaled to a base64 string the workers cannot decode.
func newJobTask(taskType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payload),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

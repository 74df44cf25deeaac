package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/embersense/api/internal/audio"
	"github.com/embersense/api/internal/classifier"
	"github.com/embersense/api/internal/model"
	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/internal/websocket"
)

// defaultMaxFiles caps a batch run when the request does not set a limit
const defaultMaxFiles = 100

// BatchWorker evaluates the classifier against a labeled dataset
// directory, one WAV file at a time.
type BatchWorker struct {
	batchService *service.BatchService
	hub          *websocket.Hub
}

// NewBatchWorker creates a new batch evaluation worker
func NewBatchWorker(batchService *service.BatchService, hub *websocket.Hub) *BatchWorker {
	return &BatchWorker{
		batchService: batchService,
		hub:          hub,
	}
}

// ProcessTask handles batch evaluation task processing
func (w *BatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting batch job: %s", jobID)

	var payload model.BatchJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal batch payload: %w", err)
	}

	files, err := listWavFiles(payload.Dir, payload.MaxFiles)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Failed to list dataset: %v", err))
		return err
	}
	if len(files) == 0 {
		w.failJob(ctx, jobID, "No WAV files found in dataset directory")
		return fmt.Errorf("no WAV files in %s", payload.Dir)
	}

	results := make([]model.ClipResult, 0, len(files))
	correct := 0

	for i, path := range files {
		select {
		case <-ctx.Done():
			log.Printf("Batch job %s cancelled", jobID)
			return ctx.Err()
		default:
		}

		// Cancellation via the API flips the job record; stop at the
		// next file boundary.
		if canceled, err := w.jobCanceled(ctx, jobID); err == nil && canceled {
			log.Printf("Batch job %s canceled by request", jobID)
			return nil
		}

		progress := i * 100 / len(files)
		w.updateProgress(ctx, jobID, progress, fmt.Sprintf("Evaluating %s (%d/%d)", filepath.Base(path), i+1, len(files)))

		result, err := evaluateFile(path, payload.Label)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			continue
		}

		if result.Correct {
			correct++
		}
		results = append(results, *result)
	}

	if len(results) == 0 {
		w.failJob(ctx, jobID, "No files could be evaluated")
		return fmt.Errorf("no evaluable files in %s", payload.Dir)
	}

	report := &model.BatchResultResponse{
		JobID:       jobID,
		TrueLabel:   payload.Label,
		TotalTested: len(results),
		Correct:     correct,
		Accuracy:    float64(correct) / float64(len(results)),
		Results:     results,
		CompletedAt: time.Now(),
	}

	if err := w.batchService.CompleteJob(ctx, jobID, report); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, report)
	log.Printf("Batch job %s completed: %d/%d correct", jobID, correct, len(results))
	return nil
}

// evaluateFile classifies one dataset file with the local scorer and
// compares it against the expected label.
func evaluateFile(path string, trueLabel model.Label) (*model.ClipResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	clip, err := audio.Decode(f)
	if err != nil {
		return nil, err
	}

	features, err := audio.ExtractVector(clip)
	if err != nil {
		return nil, err
	}

	verdict, err := classifier.Score(features)
	if err != nil {
		return nil, err
	}

	return &model.ClipResult{
		Filename:   filepath.Base(path),
		Prediction: verdict.Label,
		Confidence: verdict.Confidence,
		TrueLabel:  trueLabel,
		Correct:    verdict.Label == trueLabel,
	}, nil
}

// listWavFiles returns up to maxFiles WAV paths from dir, sorted by name.
// Subdirectories are not walked; datasets are flat per label.
func listWavFiles(dir string, maxFiles int) ([]string, error) {
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) > maxFiles {
		files = files[:maxFiles]
	}
	return files, nil
}

func (w *BatchWorker) jobCanceled(ctx context.Context, jobID string) (bool, error) {
	job, err := w.batchService.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == model.JobStatusCanceled, nil
}

func (w *BatchWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.batchService.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *BatchWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.batchService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, "BATCH_FAILED", errMsg)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/audio"
	"github.com/embersense/api/internal/classifier"
	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/model"
)

// clipRetention is how long the clipID -> storage key mapping is kept
const clipRetention = 7 * 24 * time.Hour

// ErrModelNotReady is returned when a configured model server fails its
// health check.
var ErrModelNotReady = errors.New("model server not ready")

// AnalyzeService classifies uploaded audio clips. The model server is
// preferred; when it is unreachable or errors, the local heuristic scorer
// takes over so the endpoint never goes dark.
type AnalyzeService struct {
	redis       *redis.Client
	modelClient client.ModelInvoker
	r2Client    client.StorageClient
	results     *ResultsService
	metricsPath string
}

func NewAnalyzeService(redisClient *redis.Client, modelClient client.ModelInvoker, r2Client client.StorageClient, results *ResultsService, metricsPath string) *AnalyzeService {
	return &AnalyzeService{
		redis:       redisClient,
		modelClient: modelClient,
		r2Client:    r2Client,
		results:     results,
		metricsPath: metricsPath,
	}
}

// Analyze decodes a WAV stream, extracts the feature vector and classifies
// it. Archival and result recording are best effort; classification errors
// are the only ones surfaced to the caller.
func (s *AnalyzeService) Analyze(ctx context.Context, filename string, file io.Reader) (*model.AnalyzeResponse, error) {
	// Buffer the upload so it can be decoded and archived
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	clip, err := audio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	features, err := audio.ExtractVector(clip)
	if err != nil {
		return nil, err
	}

	resp := &model.AnalyzeResponse{
		ID:           uuid.New().String(),
		Filename:     filename,
		Duration:     clip.Duration,
		SampleRate:   clip.SampleRate,
		FeatureStats: audio.Stats(features),
		Timestamp:    time.Now(),
	}

	if err := s.classify(ctx, features, resp); err != nil {
		return nil, err
	}

	if s.r2Client != nil {
		s.archiveClip(ctx, resp, data)
	}

	if err := s.results.Record(ctx, resp); err != nil {
		log.Printf("Failed to record result %s: %v", resp.ID, err)
	}

	return resp, nil
}

// classify tries the model server first and falls back to the local scorer
func (s *AnalyzeService) classify(ctx context.Context, features []float64, resp *model.AnalyzeResponse) error {
	if s.modelClient != nil && s.modelClient.IsConfigured() {
		pred, err := s.modelClient.Predict(ctx, features)
		if err == nil {
			resp.Source = model.SourceModel
			resp.Confidence = pred.Confidence
			resp.PredictionText = pred.PredictionText
			resp.Label = model.LabelNonFire
			if pred.Prediction == 1 {
				resp.Label = model.LabelFire
			}
			return nil
		}
		log.Printf("Model server unavailable, using fallback scorer: %v", err)
	}

	verdict, err := classifier.Score(features)
	if err != nil {
		return err
	}

	resp.Source = model.SourceFallback
	resp.Label = verdict.Label
	resp.Confidence = verdict.Confidence
	resp.PredictionText = verdict.PredictionText()
	resp.StrongVerdict = verdict.Strong
	return nil
}

// archiveClip uploads the raw WAV to R2 and remembers its key so the clip
// can be deleted later. Failures are logged, not surfaced.
func (s *AnalyzeService) archiveClip(ctx context.Context, resp *model.AnalyzeResponse, data []byte) {
	key := client.ClipKey(resp.ID, resp.Timestamp)

	clipURL, err := s.r2Client.Upload(ctx, key, bytes.NewReader(data), "audio/wav")
	if err != nil {
		log.Printf("Failed to archive clip %s: %v", resp.ID, err)
		return
	}

	resp.ClipURL = clipURL
	if err := s.redis.Set(ctx, clipKey(resp.ID), key, clipRetention).Err(); err != nil {
		log.Printf("Failed to store clip key %s: %v", resp.ID, err)
	}
}

// DeleteClip removes an archived clip from storage
func (s *AnalyzeService) DeleteClip(ctx context.Context, clipID string) error {
	if s.r2Client == nil {
		return fmt.Errorf("storage not configured")
	}

	key, err := s.redis.Get(ctx, clipKey(clipID)).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("clip not found")
		}
		return err
	}

	if err := s.r2Client.Delete(ctx, key); err != nil {
		return err
	}

	return s.redis.Del(ctx, clipKey(clipID)).Err()
}

// ModelInfo reports deployed model metrics and whether the model server is
// currently reachable. A configured server that fails its health check is
// an error; an unconfigured one just reports not ready.
func (s *AnalyzeService) ModelInfo(ctx context.Context) (*model.ModelInfoResponse, error) {
	info := &model.ModelInfoResponse{}

	if s.modelClient != nil && s.modelClient.IsConfigured() {
		if err := s.modelClient.HealthCheck(ctx); err != nil {
			return nil, ErrModelNotReady
		}
		info.Ready = true
	}

	data, err := os.ReadFile(s.metricsPath)
	if err != nil {
		// Metrics file missing is not fatal; reachability is still useful
		log.Printf("Failed to read model metrics %s: %v", s.metricsPath, err)
		return info, nil
	}

	var metrics model.ModelMetricsFile
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("failed to parse model metrics: %w", err)
	}

	info.Accuracy = metrics.ValidationMetrics.Accuracy
	info.FireRecall = metrics.FireDetectionAnalysis.RecallFire
	info.LatencyMs = metrics.OnDevicePerformance.InferencingTimeMs
	info.ModelSizeMB = metrics.OnDevicePerformance.FlashUsageMB

	return info, nil
}

func clipKey(clipID string) string {
	return fmt.Sprintf("clip:%s", clipID)
}

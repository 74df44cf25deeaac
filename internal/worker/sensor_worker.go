package worker

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/model"
	"github.com/embersense/api/internal/risk"
	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/internal/websocket"
)

// SensorWorker fetches weather observations for a location, engineers the
// fire-risk features and stores the summary.
type SensorWorker struct {
	sensorService *service.SensorService
	weather       client.WeatherProvider
	r2Client      client.StorageClient
	hub           *websocket.Hub
}

// NewSensorWorker creates a new sensor ingest worker
func NewSensorWorker(sensorService *service.SensorService, weather client.WeatherProvider, r2Client client.StorageClient, hub *websocket.Hub) *SensorWorker {
	return &SensorWorker{
		sensorService: sensorService,
		weather:       weather,
		r2Client:      r2Client,
		hub:           hub,
	}
}

// ProcessTask handles sensor ingest task processing
func (w *SensorWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting sensor job: %s", jobID)

	var payload model.SensorJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal sensor payload: %w", err)
	}

	// Step 1: Fetch observations from NASA POWER
	w.updateProgress(ctx, jobID, 10, "Fetching weather observations...")
	readings, err := w.weather.FetchDaily(ctx, payload.Latitude, payload.Longitude, payload.StartDate, payload.EndDate)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Weather fetch failed: %v", err))
		return err
	}
	if len(readings) == 0 {
		w.failJob(ctx, jobID, "No observations for the requested range")
		return fmt.Errorf("no observations for %s", payload.Location)
	}

	// The fetch can take a while; drop the results if the job was
	// canceled in the meantime.
	if job, err := w.sensorService.GetJob(ctx, jobID); err == nil && job.Status == model.JobStatusCanceled {
		log.Printf("Sensor job %s canceled, discarding fetched observations", jobID)
		return nil
	}

	// Step 2: Engineer risk features
	w.updateProgress(ctx, jobID, 60, "Computing fire-risk features...")
	days := risk.ComputeDaily(readings)
	summary := risk.Summarize(payload.Location, days)
	summary.UpdatedAt = time.Now()

	// Step 3: Archive the engineered series as CSV (best effort)
	if w.r2Client != nil {
		w.updateProgress(ctx, jobID, 80, "Archiving engineered features...")
		if url, err := w.archiveCSV(ctx, payload.Location, days); err != nil {
			log.Printf("Failed to archive sensor CSV for %s: %v", payload.Location, err)
		} else {
			summary.ArchiveURL = url
		}
	}

	// Step 4: Store the summary
	w.updateProgress(ctx, jobID, 95, "Storing risk summary...")
	if err := w.sensorService.StoreRisk(ctx, &summary); err != nil {
		w.failJob(ctx, jobID, "Failed to store risk summary")
		return err
	}

	if err := w.sensorService.CompleteJob(ctx, jobID, &summary); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, &summary)
	log.Printf("Sensor job %s completed: %s risk %.1f over %d days", jobID, payload.Location, summary.AvgRiskScore, summary.TotalDays)
	return nil
}

// archiveCSV uploads the engineered daily series to object storage
func (w *SensorWorker) archiveCSV(ctx context.Context, location string, days []model.DayRisk) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	header := []string{"date", "temperature", "humidity", "pressure", "temp_mean", "humidity_min", "pressure_std", "temp_spike", "risk_score", "high_risk"}
	if err := cw.Write(header); err != nil {
		return "", err
	}

	for _, d := range days {
		row := []string{
			d.Date,
			formatFloat(d.Temperature),
			formatFloat(d.Humidity),
			formatFloat(d.Pressure),
			formatFloat(d.TempMean),
			formatFloat(d.HumidityMin),
			formatFloat(d.PressureStd),
			formatFloat(d.TempSpike),
			formatFloat(d.RiskScore),
			strconv.FormatBool(d.HighRisk),
		}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}

	key := client.ArchiveKey(location, time.Now())
	return w.r2Client.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func (w *SensorWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.sensorService.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *SensorWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.sensorService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, "SENSOR_FAILED", errMsg)
}

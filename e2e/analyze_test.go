package e2e

import (
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/config"
	"github.com/embersense/api/internal/handler"
	"github.com/embersense/api/internal/service"
)

func TestAnalyze_ValidWAV(t *testing.T) {
	ta := setupApp(t)

	wavData := buildTestWAV(t, 16000, 1.0)
	contentType, body := multipartWAV(t, "file", "clip.wav", wavData)

	resp, err := doMultipart(ta.app, "/api/analyze", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["id"] == "" {
		t.Error("expected non-empty result id")
	}
	if result["filename"] != "clip.wav" {
		t.Errorf("expected filename clip.wav, got %v", result["filename"])
	}
	// Model server is unconfigured in tests, so the local scorer answers
	if result["source"] != "fallback" {
		t.Errorf("expected source 'fallback', got %v", result["source"])
	}

	label, ok := result["label"].(string)
	if !ok || (label != "fire" && label != "non_fire") {
		t.Errorf("unexpected label %v", result["label"])
	}

	conf, ok := result["confidence"].(float64)
	if !ok || conf < 0 || conf > 1 {
		t.Errorf("confidence out of range: %v", result["confidence"])
	}

	if result["sampleRate"].(float64) != 16000 {
		t.Errorf("expected sample rate 16000, got %v", result["sampleRate"])
	}
	if _, ok := result["featureStats"]; !ok {
		t.Error("expected featureStats in response")
	}
}

func TestAnalyze_ResampledInput(t *testing.T) {
	ta := setupApp(t)

	// 44.1 kHz input is resampled before feature extraction
	wavData := buildTestWAV(t, 44100, 0.5)
	contentType, body := multipartWAV(t, "file", "clip44k.wav", wavData)

	resp, err := doMultipart(ta.app, "/api/analyze", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["sampleRate"].(float64) != 16000 {
		t.Errorf("expected normalized sample rate 16000, got %v", result["sampleRate"])
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/analyze", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestAnalyze_NotAWAV(t *testing.T) {
	ta := setupApp(t)

	contentType, body := multipartWAV(t, "file", "junk.wav", []byte("this is not audio"))

	resp, err := doMultipart(ta.app, "/api/analyze", contentType, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error envelope")
	}
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func TestModelInfo(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/model/info", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	// Unconfigured model server: not ready, metrics file missing
	if result["ready"] != false {
		t.Errorf("expected ready=false, got %v", result["ready"])
	}
}

func TestModelInfo_ServerDown(t *testing.T) {
	// A configured model server that fails its health check is a 503,
	// unlike the unconfigured case which reports ready=false.
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	t.Cleanup(func() { redisClient.Close() })

	modelClient := client.NewModelClient(&config.ModelConfig{
		ServerURL: "http://127.0.0.1:1", // nothing listens here
		Timeout:   1,
	})
	resultsService := service.NewResultsService(redisClient)
	analyzeService := service.NewAnalyzeService(redisClient, modelClient, nil, resultsService, "testdata/missing_metrics.json")
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, validator.New())

	app := fiber.New()
	app.Get("/api/model/info", analyzeHandler.ModelInfo)

	resp, err := doRequest(app, http.MethodGet, "/api/model/info", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusServiceUnavailable)

	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error envelope")
	}
	if errObj["code"] != "MODEL_NOT_READY" {
		t.Errorf("expected MODEL_NOT_READY, got %v", errObj["code"])
	}
}

func TestDeleteClip_RequiresAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodDelete, "/api/clips/some-clip-id", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestDeleteClip_StorageUnconfigured(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/clips/some-clip-id", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// No R2 in tests: the service reports an error, not a 404
	assertStatus(t, resp, http.StatusInternalServerError)
}

package e2e

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/embersense/api/internal/auth"
	"github.com/embersense/api/internal/client"
	"github.com/embersense/api/internal/config"
	"github.com/embersense/api/internal/handler"
	"github.com/embersense/api/internal/middleware"
	"github.com/embersense/api/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients, so classification always runs the local fallback scorer.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost — must be running)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	// Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	// External clients — all unconfigured
	modelClient := client.NewModelClient(&config.ModelConfig{}) // no URL → fallback scorer
	noaaClient := client.NewNOAAClient(&config.NOAAConfig{})    // no token → 503 on stations

	// Services (nil storage → clips are not archived)
	resultsService := service.NewResultsService(redisClient)
	analyzeService := service.NewAnalyzeService(redisClient, modelClient, nil, resultsService, "testdata/missing_metrics.json")
	batchService := service.NewBatchService(redisClient, asynqClient)
	sensorService := service.NewSensorService(redisClient, asynqClient, noaaClient)

	// Handlers
	analyzeHandler := handler.NewAnalyzeHandler(analyzeService, validate)
	batchHandler := handler.NewBatchHandler(batchService, validate)
	sensorHandler := handler.NewSensorHandler(sensorService, validate)
	resultsHandler := handler.NewResultsHandler(resultsService)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware — legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"model":    false,
				"r2":       false,
				"stations": false,
				"auth":     true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// Public routes; very high rate limits so tests don't get blocked
	app.Post("/api/analyze", rateLimiter.AnalyzeLimit(10000), analyzeHandler.Analyze)
	app.Get("/api/model/info", analyzeHandler.ModelInfo)
	app.Get("/api/results", resultsHandler.List)
	app.Post("/api/results/clear", resultsHandler.Clear)
	app.Get("/api/sensor/risk/:location", sensorHandler.Risk)
	app.Get("/api/sensor/stations", sensorHandler.Stations)

	// Authenticated routes
	api := app.Group("/api", authMiddleware.Authenticate())

	batch := api.Group("/batch")
	batch.Post("/start", rateLimiter.BatchLimit(10000), batchHandler.Start)
	batch.Get("/status/:jobId", batchHandler.Status)
	batch.Get("/result/:jobId", batchHandler.Result)
	batch.Post("/cancel/:jobId", batchHandler.Cancel)

	sensor := api.Group("/sensor")
	sensor.Post("/ingest", rateLimiter.SensorLimit(10000), sensorHandler.Ingest)
	sensor.Get("/status/:jobId", sensorHandler.Status)
	sensor.Get("/result/:jobId", sensorHandler.Result)
	sensor.Post("/cancel/:jobId", sensorHandler.Cancel)

	api.Delete("/clips/:clipId", rateLimiter.ClipsLimit(10000), analyzeHandler.DeleteClip)

	return &testApp{app: app}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "embersense-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// buildTestWAV assembles a 16-bit mono PCM WAV with a 440 Hz tone.
func buildTestWAV(t *testing.T, sampleRate int, seconds float64) []byte {
	t.Helper()

	n := int(float64(sampleRate) * seconds)
	var data bytes.Buffer
	for i := 0; i < n; i++ {
		s := 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		binary.Write(&data, binary.LittleEndian, int16(math.Round(s*32767)))
	}

	var buf bytes.Buffer
	dataLen := uint32(data.Len())
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(data.Bytes())

	return buf.Bytes()
}

// multipartWAV builds a multipart form carrying one WAV file field.
func multipartWAV(t *testing.T, fieldName, filename string, wavData []byte) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+filename+`"`)
	h.Set("Content-Type", "audio/wav")

	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	if _, err := part.Write(wavData); err != nil {
		t.Fatalf("failed to write WAV data: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return mw.FormDataContentType(), &buf
}

// doMultipart posts a multipart body to the test app.
func doMultipart(app *fiber.App, path, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return app.Test(req, -1)
}

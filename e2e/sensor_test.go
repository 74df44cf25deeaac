package e2e

import (
	"net/http"
	"testing"
)

func TestSensorIngest_RequiresAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/sensor/ingest",
		`{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"20240601","endDate":"20240630"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSensorIngest_Valid(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/ingest",
		`{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"20240601","endDate":"20240630"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == "" {
		t.Error("expected non-empty jobId")
	}
	if result["location"] != "izmir" {
		t.Errorf("expected location 'izmir', got %v", result["location"])
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
}

func TestSensorIngest_BadDates(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed date", `{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"2024-06-01","endDate":"20240630"}`},
		{"reversed range", `{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"20240630","endDate":"20240601"}`},
		{"missing dates", `{"location":"izmir","latitude":38.42,"longitude":27.14}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/ingest", tc.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestSensorIngest_BadCoordinates(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/ingest",
		`{"location":"nowhere","latitude":123.0,"longitude":27.14,"startDate":"20240601","endDate":"20240630"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSensorRisk_Unknown(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/sensor/risk/atlantis", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestSensorStations_Unconfigured(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/sensor/stations", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// No NOAA token in tests
	assertStatus(t, resp, http.StatusServiceUnavailable)
}

func TestSensorResult_NotCompleted(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/ingest",
		`{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"20240601","endDate":"20240630"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	start := parseJSON(t, resp)
	jobID := start["jobId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/sensor/result/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// Queued job has no result yet
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSensorCancel(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/ingest",
		`{"location":"izmir","latitude":38.42,"longitude":27.14,"startDate":"20240601","endDate":"20240630"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	start := parseJSON(t, resp)
	jobID := start["jobId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/sensor/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	cancel := parseJSON(t, resp)
	if cancel["success"] != true {
		t.Errorf("expected success=true, got %v", cancel["success"])
	}
	if cancel["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", cancel["status"])
	}
}

func TestSensorStatus_UnknownJob(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/sensor/status/no-such-job", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

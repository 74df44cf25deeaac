package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/embersense/api/internal/model"
	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/pkg/response"
)

type SensorHandler struct {
	service   *service.SensorService
	validator *validator.Validate
}

func NewSensorHandler(svc *service.SensorService, v *validator.Validate) *SensorHandler {
	return &SensorHandler{
		service:   svc,
		validator: v,
	}
}

// Ingest handles POST /api/sensor/ingest
// @Summary      Start sensor data ingest
// @Description  Queue collection of daily weather observations for a location and derive fire-risk features
// @Tags         Sensor
// @Accept       json
// @Produce      json
// @Param        request body model.SensorIngestRequest true "Ingest request"
// @Success      202 {object} model.SensorIngestResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sensor/ingest [post]
func (h *SensorHandler) Ingest(c *fiber.Ctx) error {
	var req model.SensorIngestRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.StartDate > req.EndDate {
		return response.ValidationError(c, "startDate must not be after endDate", nil)
	}

	result, err := h.service.StartIngest(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/sensor/status/:jobId
// @Summary      Get ingest job status
// @Description  Get the current status and progress of a sensor ingest job
// @Tags         Sensor
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sensor/status/{jobId} [get]
func (h *SensorHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if err == service.ErrJobNotFound {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/sensor/result/:jobId
// @Summary      Get ingest job result
// @Description  Get the risk summary produced by a completed sensor ingest job
// @Tags         Sensor
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.RiskSummary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sensor/result/{jobId} [get]
func (h *SensorHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(c.Context(), jobID)
	if err != nil {
		if err == service.ErrJobNotFound {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job not completed" {
			return response.ValidationError(c, "Job has not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/sensor/cancel/:jobId
// @Summary      Cancel ingest job
// @Description  Cancel a queued or running sensor ingest job
// @Tags         Sensor
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchCancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sensor/cancel/{jobId} [post]
func (h *SensorHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelIngest(c.Context(), jobID)
	if err != nil {
		if err == service.ErrJobNotFound {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job already completed" {
			return response.ValidationError(c, "Job has already completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Risk handles GET /api/sensor/risk/:location
// @Summary      Get location fire risk
// @Description  Get the stored fire-risk summary for a location
// @Tags         Sensor
// @Produce      json
// @Param        location path string true "Location name"
// @Success      200 {object} model.RiskSummary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/sensor/risk/{location} [get]
func (h *SensorHandler) Risk(c *fiber.Ctx) error {
	location := c.Params("location")
	if location == "" {
		return response.ValidationError(c, "Location is required", nil)
	}

	result, err := h.service.GetRisk(c.Context(), location)
	if err != nil {
		if strings.Contains(err.Error(), "no risk data") {
			return response.NotFound(c, "No risk data for location")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Stations handles GET /api/sensor/stations
// @Summary      List observation stations
// @Description  List NOAA ground stations carrying the daily summaries dataset
// @Tags         Sensor
// @Produce      json
// @Param        limit query int false "Max stations to return (default 25)"
// @Success      200 {object} model.StationsResponse
// @Failure      500 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /api/sensor/stations [get]
func (h *SensorHandler) Stations(c *fiber.Ctx) error {
	if !h.service.StationsConfigured() {
		return response.Error(c, fiber.StatusServiceUnavailable, response.CodeServiceError, "Station catalog not configured", nil)
	}

	limit := c.QueryInt("limit", 25)

	result, err := h.service.ListStations(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

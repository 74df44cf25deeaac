package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/embersense/api/internal/model"
	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/pkg/response"
)

type BatchHandler struct {
	service   *service.BatchService
	validator *validator.Validate
}

func NewBatchHandler(svc *service.BatchService, v *validator.Validate) *BatchHandler {
	return &BatchHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/batch/start
// @Summary      Start batch evaluation
// @Description  Start an asynchronous evaluation run over a labeled dataset directory
// @Tags         Batch
// @Accept       json
// @Produce      json
// @Param        request body model.BatchStartRequest true "Batch start request"
// @Success      202 {object} model.BatchStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/start [post]
func (h *BatchHandler) Start(c *fiber.Ctx) error {
	var req model.BatchStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartBatch(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/batch/status/:jobId
// @Summary      Get batch job status
// @Description  Get the current status and progress of a batch evaluation job
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/status/{jobId} [get]
func (h *BatchHandler) Status(c *fiber.Ctx) error {
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

// Result handles GET /api/batch/result/:jobId
// @Summary      Get batch job result
// @Description  Get the evaluation report of a completed batch job
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchResultResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/result/{jobId} [get]
func (h *BatchHandler) Result(c *fiber.Ctx) error {
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
			return response.ValidationError(c, "Job not completed yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/batch/cancel/:jobId
// @Summary      Cancel batch job
// @Description  Cancel a running or queued batch evaluation job
// @Tags         Batch
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.BatchCancelResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/batch/cancel/{jobId} [post]
func (h *BatchHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelBatch(c.Context(), jobID)
	if err != nil {
		if err == service.ErrJobNotFound {
			return response.NotFound(c, "Job not found")
		}
		if err.Error() == "job already completed" {
			return response.ValidationError(c, "Job already completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

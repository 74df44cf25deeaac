package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type AnalyzeHandler struct {
	service   *service.AnalyzeService
	validator *validator.Validate
}

func NewAnalyzeHandler(svc *service.AnalyzeService, v *validator.Validate) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:   svc,
		validator: v,
	}
}

// Analyze handles POST /api/analyze
// @Summary      Classify audio clip
// @Description  Upload a WAV clip and classify it as fire or no fire
// @Tags         Analyze
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Audio file (WAV; max 50MB)"
// @Success      200 {object} model.AnalyzeResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/analyze [post]
func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"audio/wav":   true,
		"audio/x-wav": true,
		"audio/wave":  true,
		// Browsers sometimes send WAV uploads as octet-stream
		"application/octet-stream": true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.Analyze(c.Context(), file.Filename, f)
	if err != nil {
		if strings.Contains(err.Error(), "not a valid WAV file") ||
			strings.Contains(err.Error(), "empty audio stream") ||
			strings.Contains(err.Error(), "too short") {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// ModelInfo handles GET /api/model/info
// @Summary      Get model info
// @Description  Report deployed model metrics and model server availability
// @Tags         Analyze
// @Produce      json
// @Success      200 {object} model.ModelInfoResponse
// @Failure      502 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /api/model/info [get]
func (h *AnalyzeHandler) ModelInfo(c *fiber.Ctx) error {
	result, err := h.service.ModelInfo(c.Context())
	if err != nil {
		if err == service.ErrModelNotReady {
			return response.ModelNotReady(c, "Model server is not responding")
		}
		return response.ModelError(c, err.Error())
	}

	return response.OK(c, result)
}

// DeleteClip handles DELETE /api/clips/:clipId
// @Summary      Delete archived clip
// @Description  Remove a previously archived audio clip from storage
// @Tags         Analyze
// @Produce      json
// @Param        clipId path string true "Clip ID"
// @Success      204 "No Content"
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/clips/{clipId} [delete]
func (h *AnalyzeHandler) DeleteClip(c *fiber.Ctx) error {
	clipID := c.Params("clipId")
	if clipID == "" {
		return response.ValidationError(c, "Clip ID is required", nil)
	}

	if err := h.service.DeleteClip(c.Context(), clipID); err != nil {
		if err.Error() == "clip not found" {
			return response.NotFound(c, "Clip not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

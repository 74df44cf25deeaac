package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/embersense/api/internal/service"
	"github.com/embersense/api/pkg/response"
)

type ResultsHandler struct {
	service *service.ResultsService
}

func NewResultsHandler(svc *service.ResultsService) *ResultsHandler {
	return &ResultsHandler{service: svc}
}

// List handles GET /api/results
// @Summary      List recent results
// @Description  List the most recent classification results, newest first
// @Tags         Results
// @Produce      json
// @Param        limit query int false "Max results to return (default 50)"
// @Success      200 {array} model.AnalyzeResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/results [get]
func (h *ResultsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	results, err := h.service.List(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, results)
}

// Clear handles POST /api/results/clear
// @Summary      Clear results
// @Description  Remove all stored classification results
// @Tags         Results
// @Produce      json
// @Success      204 "No Content"
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/results/clear [post]
func (h *ResultsHandler) Clear(c *fiber.Ctx) error {
	if err := h.service.Clear(c.Context()); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

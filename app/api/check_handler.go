package api

import (
	"neuralsearch/types"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	environment string
	version     string
}

func NewCheckHandler(environment, version string) *CheckHandler {
	return &CheckHandler{
		environment: environment,
		version:     version,
	}
}

// HandleHealthy is a liveness probe; it touches no dependencies.
func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(types.HealthResponse{
		Status:      "ok",
		Environment: h.environment,
		Version:     h.version,
	})
}

package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/healthcheck"
)

const (
	healthLivenessStatusOk       = "UP"
	healthLivenessStatusShutdown = "SHUTDOWN"
	healthReadinessStatusOk      = "READY"

	readinessPingTimeout = 2 * time.Second
)

type IHealthCheckHandler interface {
	Liveness(c *fiber.Ctx) error
	Readiness(c *fiber.Ctx) error
}

type healthCheckHandler struct {
	appService service.IAppService
}

func NewHealthCheckHandler(as service.IAppService) IHealthCheckHandler {
	return &healthCheckHandler{
		appService: as,
	}
}

func (h *healthCheckHandler) Liveness(c *fiber.Ctx) error {
	if !healthcheck.Liveness() {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": healthLivenessStatusShutdown})
	}

	return c.JSON(fiber.Map{"status": healthLivenessStatusOk})
}

func (h *healthCheckHandler) Readiness(c *fiber.Ctx) error {
	if !healthcheck.Readiness() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": healthLivenessStatusShutdown})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), readinessPingTimeout)
	defer cancel()

	connections := map[string]bool{
		"mysql": h.appService.Ping(ctx) == nil,
	}
	if !healthcheck.IsConnectionSuccessful(connections) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(connections)
	}

	return c.JSON(fiber.Map{"status": healthReadinessStatusOk})
}

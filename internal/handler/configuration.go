package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/pkg/response"
)

func (a *appHandler) CreateConfiguration(c *fiber.Ctx) error {
	var req request.CreateConfigurationRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := a.appService.Configuration().Create(c.UserContext(), tenantOf(c), req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) ListConfigurations(c *fiber.Ctx) error {
	resp, err := a.appService.Configuration().List(c.UserContext(), tenantOf(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) GetConfiguration(c *fiber.Ctx) error {
	resp, err := a.appService.Configuration().Get(c.UserContext(), tenantOf(c), c.Params("configuration_id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) UpdateConfiguration(c *fiber.Ctx) error {
	var req request.UpdateConfigurationRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := a.appService.Configuration().Update(c.UserContext(), tenantOf(c), c.Params("configuration_id"), req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) DeleteConfiguration(c *fiber.Ctx) error {
	if err := a.appService.Configuration().Delete(c.UserContext(), tenantOf(c), c.Params("configuration_id")); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (a *appHandler) AttachConfiguration(c *fiber.Ctx) error {
	var req request.AttachConfigurationRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	if err := a.appService.Configuration().Attach(c.UserContext(), tenantOf(c), c.Params("instance_id"), req.ConfigurationID); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (a *appHandler) DetachConfiguration(c *fiber.Ctx) error {
	if err := a.appService.Configuration().Detach(c.UserContext(), tenantOf(c), c.Params("instance_id")); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

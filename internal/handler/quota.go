package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/response"
)

func (a *appHandler) GetQuota(c *fiber.Ctx) error {
	resp, err := a.appService.Quota().Usage(c.UserContext(), tenantOf(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) GetTenantQuota(c *fiber.Ctx) error {
	if !isOperator(c) {
		return errorResponse(c, errs.Unauthorized("quotas of other tenants are reserved to operators"))
	}

	resp, err := a.appService.Quota().Usage(c.UserContext(), c.Params("tenant_id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) SetTenantQuota(c *fiber.Ctx) error {
	if !isOperator(c) {
		return errorResponse(c, errs.Unauthorized("setting quotas is reserved to operators"))
	}

	var req request.SetQuotaRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	tenantID := c.Params("tenant_id")
	if err := a.appService.Quota().SetLimit(c.UserContext(), tenantID, req.Resource, req.Limit); err != nil {
		return errorResponse(c, err)
	}

	resp, err := a.appService.Quota().Usage(c.UserContext(), tenantID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/pkg/response"
	"github.com/vmindtech/vdb/pkg/utils"
)

// Heartbeat is called by guest agents, which authenticate with the key
// injected into their bootstrap data instead of an identity token.
func (a *appHandler) Heartbeat(c *fiber.Ctx) error {
	guestKey := c.Get(utils.GuestKeyHeaderKey)
	if guestKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(response.NewAuthorizationError())
	}

	var req request.HeartbeatRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	if err := a.appService.Instance().RecordHeartbeat(c.UserContext(), c.Params("instance_id"), guestKey, req); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

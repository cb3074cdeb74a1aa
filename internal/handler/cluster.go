package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/pkg/response"
)

func (a *appHandler) CreateCluster(c *fiber.Ctx) error {
	var req request.CreateClusterRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := a.appService.Cluster().CreateCluster(c.UserContext(), tenantOf(c), req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) ListClusters(c *fiber.Ctx) error {
	resp, err := a.appService.Cluster().ListClusters(c.UserContext(), tenantOf(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) GetCluster(c *fiber.Ctx) error {
	clusterID := c.Params("cluster_id")

	resp, err := a.appService.Cluster().GetCluster(c.UserContext(), tenantOf(c), clusterID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) GetClusterInstance(c *fiber.Ctx) error {
	clusterID := c.Params("cluster_id")
	instanceID := c.Params("instance_id")

	resp, err := a.appService.Cluster().GetClusterInstance(c.UserContext(), tenantOf(c), clusterID, instanceID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(response.NewSuccessResponse(resp))
}

func (a *appHandler) DeleteCluster(c *fiber.Ctx) error {
	clusterID := c.Params("cluster_id")

	if err := a.appService.Cluster().DeleteCluster(c.UserContext(), tenantOf(c), clusterID); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(response.NewSuccessResponse(resource.ActionResource{
		ClusterID: clusterID,
		Action:    "delete",
	}))
}

func (a *appHandler) ClusterAction(c *fiber.Ctx) error {
	clusterID := c.Params("cluster_id")

	var req request.ClusterActionRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	resp, err := a.appService.Cluster().Action(c.UserContext(), tenantOf(c), clusterID, req, isOperator(c))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(response.NewSuccessResponse(resp))
}

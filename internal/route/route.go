package route

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/handler"
)

type AppContext struct {
	App *fiber.App
	// Auth guards every tenant facing route.
	Auth fiber.Handler
}

type IRoute interface {
	SetupRoutes(ac *AppContext)
}

type route struct {
	appHandler handler.IAppHandler
}

func NewRoute(
	apHandler handler.IAppHandler,
) IRoute {
	return &route{
		appHandler: apHandler,
	}
}

func (r *route) SetupRoutes(ac *AppContext) {
	api := ac.App.Group("/api")

	// v1 routes
	v1Group := api.Group("/v1")

	// guest agents authenticate per instance
	r.agentRoutes(v1Group)

	tenant := v1Group.Group("/", ac.Auth)
	tenant.Get("/", r.appHandler.App)

	r.clusterRoutes(tenant)
	r.configurationRoutes(tenant)
	r.quotaRoutes(tenant)
}

func (r *route) clusterRoutes(fr fiber.Router) {
	clusterGroup := fr.Group("/clusters")
	clusterGroup.Post("/", r.appHandler.CreateCluster)
	clusterGroup.Get("/", r.appHandler.ListClusters)
	clusterGroup.Get("/:cluster_id", r.appHandler.GetCluster)
	clusterGroup.Delete("/:cluster_id", r.appHandler.DeleteCluster)
	clusterGroup.Post("/:cluster_id/action", r.appHandler.ClusterAction)
	clusterGroup.Get("/:cluster_id/instances/:instance_id", r.appHandler.GetClusterInstance)
}

func (r *route) configurationRoutes(fr fiber.Router) {
	configurationGroup := fr.Group("/configurations")
	configurationGroup.Post("/", r.appHandler.CreateConfiguration)
	configurationGroup.Get("/", r.appHandler.ListConfigurations)
	configurationGroup.Get("/:configuration_id", r.appHandler.GetConfiguration)
	configurationGroup.Put("/:configuration_id", r.appHandler.UpdateConfiguration)
	configurationGroup.Delete("/:configuration_id", r.appHandler.DeleteConfiguration)

	fr.Put("/instances/:instance_id/configuration", r.appHandler.AttachConfiguration)
	fr.Delete("/instances/:instance_id/configuration", r.appHandler.DetachConfiguration)
}

func (r *route) quotaRoutes(fr fiber.Router) {
	quotaGroup := fr.Group("/quotas")
	quotaGroup.Get("/", r.appHandler.GetQuota)
	quotaGroup.Get("/:tenant_id", r.appHandler.GetTenantQuota)
	quotaGroup.Put("/:tenant_id", r.appHandler.SetTenantQuota)
}

func (r *route) agentRoutes(fr fiber.Router) {
	agentGroup := fr.Group("/agent")
	agentGroup.Put("/instances/:instance_id/heartbeat", r.appHandler.Heartbeat)
}

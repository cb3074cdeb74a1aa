package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/response"
	"github.com/vmindtech/vdb/pkg/utils"
	"github.com/vmindtech/vdb/pkg/validation"
)

type IAppHandler interface {
	App(c *fiber.Ctx) error

	CreateCluster(c *fiber.Ctx) error
	ListClusters(c *fiber.Ctx) error
	GetCluster(c *fiber.Ctx) error
	GetClusterInstance(c *fiber.Ctx) error
	DeleteCluster(c *fiber.Ctx) error
	ClusterAction(c *fiber.Ctx) error

	CreateConfiguration(c *fiber.Ctx) error
	ListConfigurations(c *fiber.Ctx) error
	GetConfiguration(c *fiber.Ctx) error
	UpdateConfiguration(c *fiber.Ctx) error
	DeleteConfiguration(c *fiber.Ctx) error
	AttachConfiguration(c *fiber.Ctx) error
	DetachConfiguration(c *fiber.Ctx) error

	GetQuota(c *fiber.Ctx) error
	GetTenantQuota(c *fiber.Ctx) error
	SetTenantQuota(c *fiber.Ctx) error

	Heartbeat(c *fiber.Ctx) error
}

type appHandler struct {
	appService service.IAppService
}

func NewAppHandler(as service.IAppService) IAppHandler {
	return &appHandler{
		appService: as,
	}
}

func (a *appHandler) App(c *fiber.Ctx) error {
	res := &resource.AppResource{
		TenantID: tenantOf(c),
		Operator: isOperator(c),
		Time:     time.Now(),
	}

	if config.GlobalConfig != nil {
		web := config.GlobalConfig.GetWebConfig()
		res.App, res.Env, res.Version = web.AppName, web.Env, web.Version
	}

	return c.JSON(response.NewSuccessResponse(res))
}

func tenantOf(c *fiber.Ctx) string {
	tenantID, _ := c.Locals(utils.TenantKey).(string)
	return tenantID
}

func isOperator(c *fiber.Ctx) bool {
	operator, _ := c.Locals(utils.OperatorKey).(bool)
	return operator
}

func errorResponse(c *fiber.Ctx, err error) error {
	return c.Status(response.StatusOf(err)).JSON(response.NewErrorResponse(c.Context(), err))
}

// bind parses the body into req and validates it. A false return means the
// error response has already been written.
func bind(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusUnprocessableEntity).JSON(response.NewBodyParserErrorResponse())
	}

	v, ok := c.Locals(utils.ValidatorKey).(validation.IValidator)
	if !ok {
		return false, errs.Infrastructure(nil, "request validator is not installed")
	}

	if problems := v.Validate(req); len(problems) > 0 {
		return false, c.Status(fiber.StatusUnprocessableEntity).JSON(response.NewValidationErrorResponse(problems))
	}

	return true, nil
}

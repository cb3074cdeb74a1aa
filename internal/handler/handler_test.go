package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/healthcheck"
	"github.com/vmindtech/vdb/pkg/response"
	"github.com/vmindtech/vdb/pkg/utils"
	"github.com/vmindtech/vdb/pkg/validation"
)

type stubApp struct {
	service.IAppService
	clusters  *stubClusters
	instances *stubInstances
	quota     *stubQuota
	pingErr   error
}

func (s *stubApp) Cluster() service.IClusterService   { return s.clusters }
func (s *stubApp) Instance() service.IInstanceService { return s.instances }
func (s *stubApp) Quota() service.IQuotaService       { return s.quota }
func (s *stubApp) Ping(context.Context) error         { return s.pingErr }

type stubClusters struct {
	service.IClusterService
	tenant   string
	operator bool
	err      error
}

func (s *stubClusters) CreateCluster(_ context.Context, tenantID string, req request.CreateClusterRequest) (resource.ClusterResource, error) {
	s.tenant = tenantID
	if s.err != nil {
		return resource.ClusterResource{}, s.err
	}

	return resource.ClusterResource{ID: "c-1", Name: req.Name, TenantID: tenantID}, nil
}

func (s *stubClusters) Action(_ context.Context, tenantID, id string, req request.ClusterActionRequest, operator bool) (resource.ActionResource, error) {
	s.tenant = tenantID
	s.operator = operator
	if s.err != nil {
		return resource.ActionResource{}, s.err
	}
	name, err := req.Action()
	if err != nil {
		return resource.ActionResource{}, err
	}

	return resource.ActionResource{ClusterID: id, Action: name}, nil
}

func (s *stubClusters) DeleteCluster(_ context.Context, tenantID, _ string) error {
	s.tenant = tenantID
	return s.err
}

type stubInstances struct {
	service.IInstanceService
	guestKey string
}

func (s *stubInstances) RecordHeartbeat(_ context.Context, _, guestKey string, _ request.HeartbeatRequest) error {
	if guestKey != s.guestKey {
		return errs.Unauthorized("guest key mismatch")
	}

	return nil
}

type stubQuota struct {
	service.IQuotaService
	limits map[string]int
}

func (s *stubQuota) SetLimit(_ context.Context, _, res string, limit int) error {
	s.limits[res] = limit
	return nil
}

func (s *stubQuota) Usage(context.Context, string) ([]resource.QuotaUsageResource, error) {
	var out []resource.QuotaUsageResource
	for res, limit := range s.limits {
		out = append(out, resource.QuotaUsageResource{Resource: res, Limit: limit})
	}

	return out, nil
}

func newTestApp(t *testing.T, stub *stubApp, operator bool) *fiber.App {
	t.Helper()

	app := fiber.New()
	v := validation.InitValidator()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(utils.ValidatorKey, v)
		c.Locals(utils.TenantKey, "tenant-1")
		c.Locals(utils.OperatorKey, operator)

		return c.Next()
	})

	h := NewAppHandler(stub)
	app.Get("/", h.App)
	app.Post("/clusters", h.CreateCluster)
	app.Delete("/clusters/:cluster_id", h.DeleteCluster)
	app.Post("/clusters/:cluster_id/action", h.ClusterAction)
	app.Put("/quotas/:tenant_id", h.SetTenantQuota)
	app.Put("/agent/instances/:instance_id/heartbeat", h.Heartbeat)

	hc := NewHealthCheckHandler(stub)
	app.Get("/readiness", hc.Readiness)

	return app
}

func newStub() *stubApp {
	return &stubApp{
		clusters:  &stubClusters{},
		instances: &stubInstances{guestKey: "secret"},
		quota:     &stubQuota{limits: map[string]int{}},
	}
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestCreateClusterUsesTenant(t *testing.T) {
	stub := newStub()
	app := newTestApp(t, stub, false)

	body := `{"name":"db","datastore":{"type":"mariadb","version":"10.4"},"instances":[{"flavorRef":"1","volume":{"size":1}}]}`
	resp, data := do(t, app, http.MethodPost, "/clusters", body, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "tenant-1", stub.clusters.tenant)
	assert.Contains(t, string(data), `"id":"c-1"`)
}

func TestCreateClusterValidatesBody(t *testing.T) {
	app := newTestApp(t, newStub(), false)

	resp, data := do(t, app, http.MethodPost, "/clusters", `{"datastore":{"type":"mariadb"},"instances":[]}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var out response.HTTPValidationErrorResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, utils.ValidationErrCode, out.Error.Code)
	assert.NotEmpty(t, out.Attributes)
}

func TestCreateClusterMalformedBody(t *testing.T) {
	app := newTestApp(t, newStub(), false)

	resp, data := do(t, app, http.MethodPost, "/clusters", `{"name":`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(data), utils.BodyParserErrCode)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{errs.Conflict("cluster is busy"), http.StatusConflict, errs.ReasonClusterTaskConflict},
		{errs.Validation(errs.ReasonVolumeSizesNotEqual, "sizes differ"), http.StatusUnprocessableEntity, errs.ReasonVolumeSizesNotEqual},
		{errs.QuotaExceeded("instances"), http.StatusRequestEntityTooLarge, ""},
		{errs.NotFound("cluster c-1"), http.StatusNotFound, ""},
	}

	for _, tc := range cases {
		stub := newStub()
		stub.clusters.err = tc.err
		app := newTestApp(t, stub, false)

		resp, data := do(t, app, http.MethodPost, "/clusters/c-1/action", `{"restart":{}}`, nil)
		assert.Equal(t, tc.status, resp.StatusCode, string(data))

		var out response.HTTPErrorResponse
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, tc.reason, out.Error.Reason)
	}
}

func TestClusterActionAccepted(t *testing.T) {
	stub := newStub()
	app := newTestApp(t, stub, true)

	resp, data := do(t, app, http.MethodPost, "/clusters/c-1/action", `{"reset-status":{"force_delete":true}}`, nil)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, string(data), `"action":"reset-status"`)
	assert.True(t, stub.clusters.operator)
}

func TestClusterActionRequiresOneAction(t *testing.T) {
	app := newTestApp(t, newStub(), false)

	resp, data := do(t, app, http.MethodPost, "/clusters/c-1/action", `{"restart":{},"upgrade":{"datastore_version":"10.5"}}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(data), errs.ReasonInvalidAction)
}

func TestDeleteClusterAccepted(t *testing.T) {
	app := newTestApp(t, newStub(), false)

	resp, _ := do(t, app, http.MethodDelete, "/clusters/c-1", "", nil)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSetTenantQuotaRequiresOperator(t *testing.T) {
	stub := newStub()

	resp, _ := do(t, newTestApp(t, stub, false), http.MethodPut, "/quotas/tenant-2", `{"resource":"instances","limit":3}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, stub.quota.limits)

	resp, _ = do(t, newTestApp(t, stub, true), http.MethodPut, "/quotas/tenant-2", `{"resource":"instances","limit":3}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, stub.quota.limits["instances"])
}

func TestSetTenantQuotaRejectsUnknownResource(t *testing.T) {
	resp, _ := do(t, newTestApp(t, newStub(), true), http.MethodPut, "/quotas/tenant-2", `{"resource":"cores","limit":3}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHeartbeatGuestKey(t *testing.T) {
	app := newTestApp(t, newStub(), false)
	body := `{"service_status":"RUNNING","guest_agent_version":"1.2.0"}`

	resp, _ := do(t, app, http.MethodPut, "/agent/instances/i-1/heartbeat", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPut, "/agent/instances/i-1/heartbeat", body, map[string]string{utils.GuestKeyHeaderKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPut, "/agent/instances/i-1/heartbeat", body, map[string]string{utils.GuestKeyHeaderKey: "secret"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestReadinessPingsStore(t *testing.T) {
	stub := newStub()
	stub.pingErr = errs.Infrastructure(nil, "down")
	app := newTestApp(t, stub, false)

	healthcheckUp(t)

	resp, data := do(t, app, http.MethodGet, "/readiness", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(data), `"mysql":false`)

	stub.pingErr = nil
	resp, _ = do(t, app, http.MethodGet, "/readiness", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func healthcheckUp(t *testing.T) {
	t.Helper()

	healthcheck.InitHealthCheck()
	t.Cleanup(healthcheck.ServerShutdown)
}

func TestAppReportsCaller(t *testing.T) {
	app := newTestApp(t, newStub(), true)

	resp, data := do(t, app, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data resource.AppResource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "tenant-1", body.Data.TenantID)
	assert.True(t, body.Data.Operator)
}

func TestCreateClusterRejectsBadName(t *testing.T) {
	app := newTestApp(t, newStub(), false)

	body := `{"name":"bad name","datastore":{"type":"mariadb","version":"10.4"},"instances":[{"flavorRef":"1","volume":{"size":1}}]}`
	resp, _ := do(t, app, http.MethodPost, "/clusters", body, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

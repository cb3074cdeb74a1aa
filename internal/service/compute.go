package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/pkg/constants"
)

type IComputeService interface {
	GetFlavor(ctx context.Context, flavorID string) (resource.Flavor, error)
	CreateServer(ctx context.Context, req request.CreateServerRequest) (resource.Server, error)
	GetServer(ctx context.Context, serverID string) (resource.Server, error)
	// DeleteServer succeeds when the server is already gone.
	DeleteServer(ctx context.Context, serverID string) error
	RebuildServer(ctx context.Context, serverID, imageID string) error
	CreateServerGroup(ctx context.Context, req request.CreateServerGroupRequest) (resource.ServerGroup, error)
	DeleteServerGroup(ctx context.Context, serverGroupID string) error
}

type computeService struct {
	logger       *logrus.Logger
	client       *openstackClient
	endpoint     string
	microversion string
}

func NewComputeService(l *logrus.Logger, i IIdentityService, endpoint, microversion string) IComputeService {
	return &computeService{
		logger:       l,
		client:       newOpenstackClient(l, i.ServiceToken),
		endpoint:     endpoint,
		microversion: microversion,
	}
}

func (cs *computeService) url(path string, parts ...string) string {
	u := fmt.Sprintf("%s/%s", cs.endpoint, path)
	for _, p := range parts {
		u += "/" + p
	}

	return u
}

func (cs *computeService) GetFlavor(ctx context.Context, flavorID string) (resource.Flavor, error) {
	var resp resource.FlavorResponse
	err := cs.client.do(ctx, apiCall{
		method: http.MethodGet,
		url:    cs.url(constants.FlavorPath, flavorID),
		out:    &resp,
		want:   []int{http.StatusOK},
	})

	return resp.Flavor, err
}

func (cs *computeService) CreateServer(ctx context.Context, req request.CreateServerRequest) (resource.Server, error) {
	var resp resource.ServerResponse
	err := cs.client.do(ctx, apiCall{
		method: http.MethodPost,
		url:    cs.url(constants.ComputePath),
		body:   req,
		out:    &resp,
		want:   []int{http.StatusAccepted},
		header: map[string]string{novaMicroversionHeader: cs.microversion},
	})
	if err != nil {
		cs.logger.WithError(err).WithField("server_name", req.Server.Name).Error("failed to create server")
		return resource.Server{}, err
	}

	return resp.Server, nil
}

func (cs *computeService) GetServer(ctx context.Context, serverID string) (resource.Server, error) {
	var resp resource.ServerResponse
	err := cs.client.do(ctx, apiCall{
		method: http.MethodGet,
		url:    cs.url(constants.ComputePath, serverID),
		out:    &resp,
		want:   []int{http.StatusOK},
	})

	return resp.Server, err
}

func (cs *computeService) DeleteServer(ctx context.Context, serverID string) error {
	return cs.client.do(ctx, apiCall{
		method:    http.MethodDelete,
		url:       cs.url(constants.ComputePath, serverID),
		want:      []int{http.StatusNoContent},
		missingOK: true,
	})
}

func (cs *computeService) RebuildServer(ctx context.Context, serverID, imageID string) error {
	return cs.client.do(ctx, apiCall{
		method: http.MethodPost,
		url:    cs.url(constants.ComputePath, serverID, "action"),
		body:   request.RebuildServerRequest{Rebuild: request.Rebuild{ImageRef: imageID}},
		want:   []int{http.StatusAccepted},
	})
}

func (cs *computeService) CreateServerGroup(ctx context.Context, req request.CreateServerGroupRequest) (resource.ServerGroup, error) {
	var resp resource.ServerGroupResponse
	err := cs.client.do(ctx, apiCall{
		method: http.MethodPost,
		url:    cs.url(constants.ServerGroupPath),
		body:   req,
		out:    &resp,
		want:   []int{http.StatusOK},
		header: map[string]string{novaMicroversionHeader: cs.microversion},
	})

	return resp.ServerGroup, err
}

func (cs *computeService) DeleteServerGroup(ctx context.Context, serverGroupID string) error {
	return cs.client.do(ctx, apiCall{
		method:    http.MethodDelete,
		url:       cs.url(constants.ServerGroupPath, serverGroupID),
		want:      []int{http.StatusNoContent},
		missingOK: true,
	})
}

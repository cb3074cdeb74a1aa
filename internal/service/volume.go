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

type IVolumeService interface {
	CreateVolume(ctx context.Context, req request.CreateVolumeRequest) (resource.Volume, error)
	GetVolume(ctx context.Context, volumeID string) (resource.Volume, error)
	// DeleteVolume succeeds when the volume is already gone.
	DeleteVolume(ctx context.Context, volumeID string) error
}

type volumeService struct {
	client   *openstackClient
	endpoint string
}

func NewVolumeService(l *logrus.Logger, i IIdentityService, endpoint string) IVolumeService {
	return &volumeService{
		client:   newOpenstackClient(l, i.ServiceToken),
		endpoint: endpoint,
	}
}

func (vs *volumeService) CreateVolume(ctx context.Context, req request.CreateVolumeRequest) (resource.Volume, error) {
	var resp resource.VolumeResponse
	err := vs.client.do(ctx, apiCall{
		method: http.MethodPost,
		url:    fmt.Sprintf("%s/%s", vs.endpoint, constants.VolumesPath),
		body:   req,
		out:    &resp,
		want:   []int{http.StatusAccepted},
	})

	return resp.Volume, err
}

func (vs *volumeService) GetVolume(ctx context.Context, volumeID string) (resource.Volume, error) {
	var resp resource.VolumeResponse
	err := vs.client.do(ctx, apiCall{
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/%s/%s", vs.endpoint, constants.VolumesPath, volumeID),
		out:    &resp,
		want:   []int{http.StatusOK},
	})

	return resp.Volume, err
}

func (vs *volumeService) DeleteVolume(ctx context.Context, volumeID string) error {
	return vs.client.do(ctx, apiCall{
		method:    http.MethodDelete,
		url:       fmt.Sprintf("%s/%s/%s", vs.endpoint, constants.VolumesPath, volumeID),
		want:      []int{http.StatusAccepted, http.StatusNoContent},
		missingOK: true,
	})
}

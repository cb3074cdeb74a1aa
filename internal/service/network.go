package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/pkg/constants"
)

type INetworkService interface {
	GetNetwork(ctx context.Context, networkID string) (resource.Network, error)
}

type networkService struct {
	client   *openstackClient
	endpoint string
}

func NewNetworkService(l *logrus.Logger, i IIdentityService, endpoint string) INetworkService {
	return &networkService{
		client:   newOpenstackClient(l, i.ServiceToken),
		endpoint: endpoint,
	}
}

func (ns *networkService) GetNetwork(ctx context.Context, networkID string) (resource.Network, error) {
	var resp resource.NetworkResponse
	err := ns.client.do(ctx, apiCall{
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/%s/%s", ns.endpoint, constants.NetworksPath, networkID),
		out:    &resp,
		want:   []int{http.StatusOK},
	})

	return resp.Network, err
}

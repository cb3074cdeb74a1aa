package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/pkg/errs"
)

type ICapabilityService interface {
	// Enabled reports whether the named capability is on for a datastore
	// version. A capability nobody declared is on.
	Enabled(ctx context.Context, name, versionID string) (bool, error)
	Require(ctx context.Context, name, versionID string) error
}

type capabilityService struct {
	logger     *logrus.Logger
	repository repository.IRepository
}

func NewCapabilityService(l *logrus.Logger, r repository.IRepository) ICapabilityService {
	return &capabilityService{
		logger:     l,
		repository: r,
	}
}

func (c *capabilityService) Enabled(ctx context.Context, name, versionID string) (bool, error) {
	capabilities, err := c.repository.Capability().ListCapabilities(ctx)
	if err != nil {
		return false, err
	}

	for _, capability := range capabilities {
		if capability.Name != name {
			continue
		}

		overrides, err := c.repository.Capability().ListOverrides(ctx, versionID)
		if err != nil {
			return false, err
		}
		for _, o := range overrides {
			if o.CapabilityID == capability.ID {
				return o.Enabled, nil
			}
		}

		return capability.Enabled, nil
	}

	return true, nil
}

func (c *capabilityService) Require(ctx context.Context, name, versionID string) error {
	if name == "" {
		return nil
	}

	enabled, err := c.Enabled(ctx, name, versionID)
	if err != nil {
		return err
	}
	if !enabled {
		return errs.Validation(errs.ReasonActionNotSupported, "%s is not enabled for this datastore version", name)
	}

	return nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// tokenRefreshMargin renews the service token this long before it expires.
const tokenRefreshMargin = time.Minute

type IIdentityService interface {
	// CheckAuthToken verifies that authToken is a valid token of projectID.
	CheckAuthToken(ctx context.Context, authToken, projectID string) error
	// ServiceToken returns a token of the control plane service account.
	ServiceToken(ctx context.Context) (string, error)
}

type identityService struct {
	logger      *logrus.Logger
	endpoint    string
	credentials config.ServiceCredentialsConfig
	client      *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewIdentityService(logger *logrus.Logger, endpoint string, credentials config.ServiceCredentialsConfig) IIdentityService {
	return &identityService{
		logger:      logger,
		endpoint:    endpoint,
		credentials: credentials,
		client:      &http.Client{},
	}
}

func (i *identityService) CheckAuthToken(ctx context.Context, authToken, projectID string) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", i.endpoint, constants.ProjectPath, projectID), nil)
	if err != nil {
		i.logger.Errorf("failed to create request, error: %v", err)
		return err
	}
	r.Header.Add("X-Auth-Token", authToken)

	resp, err := i.client.Do(r)
	if err != nil {
		i.logger.Errorf("failed to send request, error: %v", err)
		return errs.Infrastructure(errors.Wrap(err, "failed to send request"), "identity service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Unauthorized("failed to check auth token, status code: %v, error msg: %v", resp.StatusCode, resp.Status)
	}

	var respDecoder resource.GetProjectDetailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&respDecoder); err != nil {
		i.logger.Errorf("failed to decode response, error: %v", err)
		return err
	}

	if respDecoder.Project.ID != projectID {
		i.logger.Errorf("failed to check auth token, project id mismatch")
		return errs.Unauthorized("failed to check auth token, project id mismatch")
	}

	return nil
}

func (i *identityService) ServiceToken(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.token != "" && time.Now().Add(tokenRefreshMargin).Before(i.expiresAt) {
		return i.token, nil
	}

	req := request.TokenRequest{
		Auth: request.Auth{
			Identity: request.Identity{
				Methods: []string{"password"},
				Password: request.Password{
					User: request.User{
						Name:     i.credentials.Username,
						Password: i.credentials.Password,
						Domain:   request.Domain{Name: i.credentials.UserDomain},
					},
				},
			},
			Scope: request.Scope{Project: request.ScopeProject{ID: i.credentials.ProjectID}},
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", i.endpoint, constants.TokenPath), bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	r.Header.Add("Content-Type", "application/json")

	resp, err := i.client.Do(r)
	if err != nil {
		i.logger.Errorf("failed to send request, error: %v", err)
		return "", errs.Infrastructure(errors.Wrap(err, "failed to issue service token"), "identity service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", errs.Infrastructure(
			errors.Errorf("status code: %v, error msg: %v", resp.StatusCode, resp.Status),
			"failed to issue service token")
	}

	var respDecoder resource.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&respDecoder); err != nil {
		return "", errors.Wrap(err, "failed to decode token response")
	}

	i.token = resp.Header.Get("X-Subject-Token")
	i.expiresAt = respDecoder.Token.ExpiresAt

	return i.token, nil
}

package guestagent

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/metrics"
)

// HeartbeatReader returns the last heartbeat an instance reported.
type HeartbeatReader interface {
	GetHeartbeat(ctx context.Context, instanceID string) (*model.AgentHeartbeat, error)
}

type Config struct {
	QuickTimeout    time.Duration
	SlowTimeout     time.Duration
	HeartbeatExpiry time.Duration
}

type envelope struct {
	VersionCap string      `json:"version_cap"`
	Args       interface{} `json:"args"`
}

// Client talks to the agent of a single instance.
type Client struct {
	instanceID string
	conn       grpc.ClientConnInterface
	heartbeats HeartbeatReader
	cfg        Config
	logger     *logrus.Logger
	now        func() time.Time
}

func NewClient(logger *logrus.Logger, instanceID string, conn grpc.ClientConnInterface, heartbeats HeartbeatReader, cfg Config) *Client {
	return &Client{
		instanceID: instanceID,
		conn:       conn,
		heartbeats: heartbeats,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Client) call(ctx context.Context, m method, args interface{}, reply interface{}) error {
	if err := c.checkAgent(ctx, m); err != nil {
		return err
	}

	timeout := c.cfg.QuickTimeout
	if m.slow {
		timeout = c.cfg.SlowTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if reply == nil {
		reply = &struct{}{}
	}

	timer := metrics.NewTimer()
	err := c.conn.Invoke(ctx, m.fullName(), &envelope{VersionCap: VersionCap, Args: args}, reply,
		grpc.CallContentSubtype(codecName))
	err = c.translate(m, err)

	outcome := "success"
	if err != nil {
		outcome = string(errs.KindOf(err))
		c.logger.WithFields(logrus.Fields{
			"instance_id": c.instanceID,
			"method":      m.name,
		}).Warnf("guest call failed, error: %v", err)
	}
	timer.ObserveDuration(metrics.GuestCallDuration.WithLabelValues(m.name, outcome))

	return err
}

// checkAgent fails fast when the agent has gone quiet or is too old for m.
func (c *Client) checkAgent(ctx context.Context, m method) error {
	hb, err := c.heartbeats.GetHeartbeat(ctx, c.instanceID)
	if errs.Is(err, errs.KindNotFound) {
		return errs.New(errs.KindGuestUnreachable, "", "guest agent of instance %s never reported", c.instanceID)
	}
	if err != nil {
		return err
	}
	if !hb.IsFresh(c.now(), c.cfg.HeartbeatExpiry) {
		return errs.New(errs.KindGuestUnreachable, "",
			"guest agent of instance %s last reported at %s", c.instanceID, hb.UpdatedAt.Format(time.RFC3339))
	}

	return compatible(hb.GuestAgentVersion, m)
}

func compatible(agentVersion string, m method) error {
	if agentVersion == "" {
		return nil
	}

	have, err := version.NewVersion(agentVersion)
	if err != nil {
		return errs.New(errs.KindIncompatibleAgent, "", "unparsable guest agent version %q", agentVersion)
	}
	want := version.Must(version.NewVersion(m.since))
	limit := version.Must(version.NewVersion(VersionCap))

	if have.Segments()[0] != limit.Segments()[0] || have.LessThan(want) {
		return errs.New(errs.KindIncompatibleAgent, "",
			"guest agent %s does not support %s (requires %s, client speaks %s)", agentVersion, m.name, m.since, VersionCap)
	}

	return nil
}

func (c *Client) translate(m method, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return errs.Wrap(errs.KindGuestUnreachable, err, "%s on instance %s", m.name, c.instanceID)
	}

	switch st.Code() {
	case codes.Unimplemented:
		return errs.New(errs.KindIncompatibleAgent, "", "guest agent of instance %s does not implement %s", c.instanceID, m.name)
	case codes.DeadlineExceeded, codes.Unavailable:
		return errs.Wrap(errs.KindGuestUnreachable, err, "%s on instance %s", m.name, c.instanceID)
	case codes.Canceled:
		return context.Canceled
	default:
		return &errs.Error{
			Kind:    errs.KindInfrastructure,
			Reason:  errs.ReasonGuestAgentError,
			Message: "guest agent of instance " + c.instanceID + " failed " + m.name + ": " + st.Message(),
		}
	}
}

func (c *Client) GetStatus(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.call(ctx, mGetStatus, nil, &out)

	return out.Status, err
}

func (c *Client) Restart(ctx context.Context) error {
	return c.call(ctx, mRestart, nil, nil)
}

func (c *Client) StopDB(ctx context.Context) error {
	return c.call(ctx, mStopDB, nil, nil)
}

func (c *Client) StartDB(ctx context.Context) error {
	return c.call(ctx, mStartDB, nil, nil)
}

func (c *Client) SetSeeds(ctx context.Context, seeds []string) error {
	return c.call(ctx, mSetSeeds, map[string]interface{}{"seeds": seeds}, nil)
}

func (c *Client) GetSeeds(ctx context.Context) ([]string, error) {
	var out struct {
		Seeds []string `json:"seeds"`
	}
	err := c.call(ctx, mGetSeeds, nil, &out)

	return out.Seeds, err
}

func (c *Client) SetAutoBootstrap(ctx context.Context, enabled bool) error {
	return c.call(ctx, mSetAutoBootstrap, map[string]interface{}{"enabled": enabled}, nil)
}

func (c *Client) StoreAdminCredentials(ctx context.Context, creds Credentials) error {
	return c.call(ctx, mStoreAdminCredentials, map[string]interface{}{"admin_credentials": creds}, nil)
}

func (c *Client) GetAdminCredentials(ctx context.Context) (Credentials, error) {
	var out Credentials
	err := c.call(ctx, mGetAdminCredentials, nil, &out)

	return out, err
}

func (c *Client) ClusterSecure(ctx context.Context, key string) (Credentials, error) {
	var out Credentials
	err := c.call(ctx, mClusterSecure, map[string]interface{}{"password": key}, &out)

	return out, err
}

func (c *Client) ClusterComplete(ctx context.Context) error {
	return c.call(ctx, mClusterComplete, nil, nil)
}

func (c *Client) NodeCleanupBegin(ctx context.Context) error {
	return c.call(ctx, mNodeCleanupBegin, nil, nil)
}

func (c *Client) NodeCleanup(ctx context.Context) error {
	return c.call(ctx, mNodeCleanup, nil, nil)
}

func (c *Client) NodeDecommission(ctx context.Context) error {
	return c.call(ctx, mNodeDecommission, nil, nil)
}

func (c *Client) GrantReplicationPrivilege(ctx context.Context, user string) error {
	return c.call(ctx, mGrantReplicationPrivilege, map[string]interface{}{"replication_user": user}, nil)
}

func (c *Client) GetReplicaSetName(ctx context.Context) (string, error) {
	var out struct {
		Name string `json:"name"`
	}
	err := c.call(ctx, mGetReplicaSetName, nil, &out)

	return out.Name, err
}

func (c *Client) IsShardActive(ctx context.Context, replicaSet string) (bool, error) {
	var out struct {
		Active bool `json:"active"`
	}
	err := c.call(ctx, mIsShardActive, map[string]interface{}{"replica_set_name": replicaSet}, &out)

	return out.Active, err
}

func (c *Client) PrepPrimary(ctx context.Context) error {
	return c.call(ctx, mPrepPrimary, nil, nil)
}

func (c *Client) AddMembers(ctx context.Context, ips []string) error {
	return c.call(ctx, mAddMembers, map[string]interface{}{"members": ips}, nil)
}

func (c *Client) AddConfigServers(ctx context.Context, ips []string) error {
	return c.call(ctx, mAddConfigServers, map[string]interface{}{"config_server_ips": ips}, nil)
}

func (c *Client) AddShard(ctx context.Context, replicaSet, ip string) error {
	return c.call(ctx, mAddShard, map[string]interface{}{
		"replica_set_name":   replicaSet,
		"replica_set_member": ip,
	}, nil)
}

func (c *Client) RemoveShard(ctx context.Context, replicaSet string) error {
	return c.call(ctx, mRemoveShard, map[string]interface{}{"replica_set_name": replicaSet}, nil)
}

func (c *Client) CreateAdminUser(ctx context.Context, password string) error {
	return c.call(ctx, mCreateAdminUser, map[string]interface{}{"password": password}, nil)
}

func (c *Client) ClusterMeet(ctx context.Context, ip string) error {
	return c.call(ctx, mClusterMeet, map[string]interface{}{"ip": ip}, nil)
}

func (c *Client) ClusterAddSlots(ctx context.Context, first, last int) error {
	return c.call(ctx, mClusterAddSlots, map[string]interface{}{"first_slot": first, "last_slot": last}, nil)
}

func (c *Client) GetNodeIDForRemoval(ctx context.Context) (string, error) {
	var out struct {
		NodeID string `json:"node_id"`
	}
	err := c.call(ctx, mGetNodeIDForRemoval, nil, &out)

	return out.NodeID, err
}

func (c *Client) RemoveNodes(ctx context.Context, nodeIDs []string) error {
	return c.call(ctx, mRemoveNodes, map[string]interface{}{"node_ids": nodeIDs}, nil)
}

func (c *Client) UpdateOverrides(ctx context.Context, overrides map[string]interface{}) error {
	return c.call(ctx, mUpdateOverrides, map[string]interface{}{"overrides": overrides}, nil)
}

func (c *Client) RemoveOverrides(ctx context.Context) error {
	return c.call(ctx, mRemoveOverrides, map[string]interface{}{"remove": true}, nil)
}

func (c *Client) GetOverrides(ctx context.Context) (map[string]interface{}, error) {
	var out struct {
		Overrides map[string]interface{} `json:"overrides"`
	}
	err := c.call(ctx, mGetOverrides, nil, &out)

	return out.Overrides, err
}

func (c *Client) ApplyConfiguration(ctx context.Context, group Group) (bool, error) {
	var out struct {
		Applied bool `json:"applied"`
	}
	err := c.call(ctx, mApplyConfiguration, map[string]interface{}{"configuration": group}, &out)

	return out.Applied, err
}

func (c *Client) ResetConfiguration(ctx context.Context, groupID string) (bool, error) {
	var out struct {
		Applied bool `json:"applied"`
	}
	err := c.call(ctx, mResetConfiguration, map[string]interface{}{"configuration_id": groupID}, &out)

	return out.Applied, err
}

func (c *Client) SaveConfiguration(ctx context.Context, group Group) error {
	return c.call(ctx, mSaveConfiguration, map[string]interface{}{"configuration": group}, nil)
}

func (c *Client) DeleteConfiguration(ctx context.Context) error {
	return c.call(ctx, mDeleteConfiguration, nil, nil)
}

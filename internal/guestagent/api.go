// Package guestagent is the client side of the RPC contract with the agent
// running inside every database instance.
package guestagent

import "context"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Group is a configuration group as the guest sees it.
type Group struct {
	ID     string                 `json:"id"`
	Values map[string]interface{} `json:"values"`
}

// API lists the calls the control plane places against a guest. Every call
// is safe to retry with identical arguments.
type API interface {
	GetStatus(ctx context.Context) (string, error)
	Restart(ctx context.Context) error
	StopDB(ctx context.Context) error
	StartDB(ctx context.Context) error

	SetSeeds(ctx context.Context, seeds []string) error
	GetSeeds(ctx context.Context) ([]string, error)
	SetAutoBootstrap(ctx context.Context, enabled bool) error
	StoreAdminCredentials(ctx context.Context, creds Credentials) error
	GetAdminCredentials(ctx context.Context) (Credentials, error)
	ClusterSecure(ctx context.Context, key string) (Credentials, error)
	ClusterComplete(ctx context.Context) error
	NodeCleanupBegin(ctx context.Context) error
	NodeCleanup(ctx context.Context) error
	NodeDecommission(ctx context.Context) error
	GrantReplicationPrivilege(ctx context.Context, user string) error

	GetReplicaSetName(ctx context.Context) (string, error)
	IsShardActive(ctx context.Context, replicaSet string) (bool, error)
	PrepPrimary(ctx context.Context) error
	AddMembers(ctx context.Context, ips []string) error
	AddConfigServers(ctx context.Context, ips []string) error
	AddShard(ctx context.Context, replicaSet, ip string) error
	RemoveShard(ctx context.Context, replicaSet string) error
	CreateAdminUser(ctx context.Context, password string) error

	ClusterMeet(ctx context.Context, ip string) error
	ClusterAddSlots(ctx context.Context, first, last int) error
	GetNodeIDForRemoval(ctx context.Context) (string, error)
	RemoveNodes(ctx context.Context, nodeIDs []string) error

	UpdateOverrides(ctx context.Context, overrides map[string]interface{}) error
	RemoveOverrides(ctx context.Context) error
	GetOverrides(ctx context.Context) (map[string]interface{}, error)
	ApplyConfiguration(ctx context.Context, group Group) (bool, error)
	ResetConfiguration(ctx context.Context, groupID string) (bool, error)
	SaveConfiguration(ctx context.Context, group Group) error
	DeleteConfiguration(ctx context.Context) error
}

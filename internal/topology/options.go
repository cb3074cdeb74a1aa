// Package topology holds the per datastore version cluster options and the
// rules a cluster request is checked against before anything is created.
package topology

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/vmindtech/vdb/pkg/errs"
)

// Options is the set of cluster options a datastore version can carry.
type Options struct {
	VolumeSupport              bool    `json:"volume_support" yaml:"volume_support"`
	DevicePath                 *string `json:"device_path" yaml:"device_path"`
	MinClusterMemberCount      int     `json:"min_cluster_member_count" yaml:"min_cluster_member_count"`
	ClusterMemberCount         *int    `json:"cluster_member_count,omitempty" yaml:"cluster_member_count"`
	NumConfigServersPerCluster int     `json:"num_config_servers_per_cluster" yaml:"num_config_servers_per_cluster"`
	NumQueryRoutersPerCluster  int     `json:"num_query_routers_per_cluster" yaml:"num_query_routers_per_cluster"`
	ClusterSupport             bool    `json:"cluster_support" yaml:"cluster_support"`
	ClusterSecure              bool    `json:"cluster_secure" yaml:"cluster_secure"`
	// NodeSyncTime is the pause in seconds between nodes of a rolling restart.
	NodeSyncTime int `json:"node_sync_time" yaml:"node_sync_time"`
}

func Defaults() Options {
	return Options{
		VolumeSupport:         true,
		MinClusterMemberCount: 1,
		ClusterSupport:        true,
	}
}

func (o Options) NodeSyncDuration() time.Duration {
	return time.Duration(o.NodeSyncTime) * time.Second
}

// Decode reads options stored as JSON on top of the defaults. Unknown keys
// are rejected.
func Decode(raw []byte) (Options, error) {
	opts := Defaults()
	if len(bytes.TrimSpace(raw)) == 0 {
		return opts, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, errs.Wrap(errs.KindValidation, err, "invalid cluster options")
	}
	if err := opts.check(); err != nil {
		return Options{}, err
	}

	return opts, nil
}

func (o Options) Encode() ([]byte, error) {
	return json.Marshal(o)
}

func (o Options) check() error {
	if o.MinClusterMemberCount < 0 || o.NumConfigServersPerCluster < 0 || o.NumQueryRoutersPerCluster < 0 || o.NodeSyncTime < 0 {
		return errs.New(errs.KindValidation, "", "cluster options must not be negative")
	}
	if o.ClusterMemberCount != nil && *o.ClusterMemberCount < o.MinClusterMemberCount {
		return errs.New(errs.KindValidation, "", "cluster_member_count %d is below min_cluster_member_count %d",
			*o.ClusterMemberCount, o.MinClusterMemberCount)
	}

	return nil
}

package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/pkg/errs"
)

func TestDecodeEmptyUsesDefaults(t *testing.T) {
	opts, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), opts)
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	opts, err := Decode([]byte(`{"min_cluster_member_count":3,"cluster_secure":true,"device_path":"/dev/vdb"}`))
	require.NoError(t, err)

	assert.True(t, opts.VolumeSupport)
	assert.True(t, opts.ClusterSupport)
	assert.True(t, opts.ClusterSecure)
	assert.Equal(t, 3, opts.MinClusterMemberCount)
	require.NotNil(t, opts.DevicePath)
	assert.Equal(t, "/dev/vdb", *opts.DevicePath)
	assert.Nil(t, opts.ClusterMemberCount)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode([]byte(`{"cluster_suport":true}`))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestDecodeRejectsInconsistentCounts(t *testing.T) {
	_, err := Decode([]byte(`{"min_cluster_member_count":3,"cluster_member_count":2}`))
	assert.True(t, errs.Is(err, errs.KindValidation))
}

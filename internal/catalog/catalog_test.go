package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/repository/repositorytest"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/errs"
)

const sample = `
capabilities:
  - name: cluster_upgrade
    description: Rolling datastore upgrades
    enabled: true
datastores:
  - name: mariadb
    default_version: "10.5"
    versions:
      - name: "10.4"
        manager: mariadb
        image_id: img-104
        active: true
        cluster_options:
          min_cluster_member_count: 3
          node_sync_time: 10
        parameters:
          - name: max_connections
            type: integer
            min: 1
            max: 100000
            restart_required: true
          - name: autocommit
            type: boolean
        capabilities:
          cluster_upgrade: false
      - name: "10.5"
        manager: mariadb
        image_id: img-105
        active: true
`

func load(t *testing.T, doc string) *Catalog {
	t.Helper()

	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	return c
}

func TestLoadAppliesOptionDefaults(t *testing.T) {
	c := load(t, sample)

	require.Len(t, c.Datastores, 1)
	versions := c.Datastores[0].Versions
	require.Len(t, versions, 2)

	assert.Equal(t, 3, versions[0].ClusterOptions.MinClusterMemberCount)
	assert.True(t, versions[0].ClusterOptions.VolumeSupport)
	assert.True(t, versions[0].ClusterOptions.ClusterSupport)
	assert.Equal(t, 10, versions[0].ClusterOptions.NodeSyncTime)
	assert.False(t, versions[1].ClusterOptions.set)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	cases := map[string]string{
		"top level": "datastore: []\n",
		"version": `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
        imageid: img
`,
		"cluster options": `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
        cluster_options:
          min_members: 3
`,
	}

	for name, doc := range cases {
		_, err := Load(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]string{
		"unknown parameter type": `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
        parameters:
          - name: maxmemory
            type: bytes
`,
		"min above max": `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
        parameters:
          - name: databases
            type: integer
            min: 10
            max: 1
`,
		"missing default version": `
datastores:
  - name: redis
    default_version: "8"
    versions:
      - name: "7"
        manager: redis
`,
		"duplicate version": `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
      - name: "7"
        manager: redis
`,
	}

	for name, doc := range cases {
		_, err := Load(strings.NewReader(doc))
		assert.True(t, errs.Is(err, errs.KindValidation), name)
	}
}

func TestSyncWritesCatalog(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(repositorytest.NewDB(t))

	res, err := Sync(ctx, repo, load(t, sample))
	require.NoError(t, err)
	assert.Equal(t, Result{Datastores: 1, Versions: 2, Parameters: 2, Capabilities: 1, Overrides: 1}, res)

	datastore, err := repo.Datastore().GetDatastoreByName(ctx, "mariadb")
	require.NoError(t, err)
	v104, err := repo.Datastore().GetVersionByName(ctx, datastore.ID, "10.4")
	require.NoError(t, err)
	v105, err := repo.Datastore().GetVersionByName(ctx, datastore.ID, "10.5")
	require.NoError(t, err)
	assert.Equal(t, v105.ID, datastore.DefaultVersionID)

	opts, err := topology.Decode(v104.ClusterOptions)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.MinClusterMemberCount)

	params, err := repo.Datastore().ListParameters(ctx, v104.ID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "autocommit", params[0].Name)
	assert.True(t, params[1].RestartRequired)

	overrides, err := repo.Capability().ListOverrides(ctx, v104.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.False(t, overrides[0].Enabled)
}

func TestSyncKeepsIDs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(repositorytest.NewDB(t))

	_, err := Sync(ctx, repo, load(t, sample))
	require.NoError(t, err)

	datastore, err := repo.Datastore().GetDatastoreByName(ctx, "mariadb")
	require.NoError(t, err)
	before, err := repo.Datastore().GetVersionByName(ctx, datastore.ID, "10.4")
	require.NoError(t, err)

	updated := strings.Replace(sample, "image_id: img-104", "image_id: img-104b", 1)
	updated = strings.Replace(updated, "cluster_upgrade: false", "cluster_upgrade: true", 1)
	_, err = Sync(ctx, repo, load(t, updated))
	require.NoError(t, err)

	again, err := repo.Datastore().GetDatastoreByName(ctx, "mariadb")
	require.NoError(t, err)
	assert.Equal(t, datastore.ID, again.ID)

	after, err := repo.Datastore().GetVersionByName(ctx, datastore.ID, "10.4")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "img-104b", after.ImageID)

	params, err := repo.Datastore().ListParameters(ctx, after.ID)
	require.NoError(t, err)
	assert.Len(t, params, 2)

	overrides, err := repo.Capability().ListOverrides(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.True(t, overrides[0].Enabled)

	capabilities, err := repo.Capability().ListCapabilities(ctx)
	require.NoError(t, err)
	assert.Len(t, capabilities, 1)
}

func TestSyncRejectsUnknownCapabilityOverride(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRepository(repositorytest.NewDB(t))

	doc := `
datastores:
  - name: redis
    versions:
      - name: "7"
        manager: redis
        capabilities:
          cluster_teleport: true
`
	_, err := Sync(ctx, repo, load(t, doc))
	require.Error(t, err)

	_, err = repo.Datastore().GetDatastoreByName(ctx, "redis")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

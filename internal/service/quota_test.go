package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/repository/repositorytest"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

func newQuota(t *testing.T) (service.IQuotaService, repository.IRepository) {
	repo := repository.NewRepository(repositorytest.NewDB(t))

	return service.NewQuotaService(quietLogger(), repo, config.QuotaConfig{
		MaxInstancesPerTenant: 5,
		MaxVolumesPerTenant:   20,
		MaxBackupsPerTenant:   2,
	}), repo
}

func usageOf(t *testing.T, q service.IQuotaService, res string) (int, int) {
	usages, err := q.Usage(context.Background(), tenant)
	require.NoError(t, err)

	for _, u := range usages {
		if u.Resource == res {
			return u.InUse, u.Reserved
		}
	}
	t.Fatalf("no usage for %s", res)

	return 0, 0
}

func TestQuotaCheckCommit(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	reservations, err := q.Check(ctx, tenant, service.Deltas{
		constants.ResourceInstances: 3,
		constants.ResourceVolumes:   6,
	})
	require.NoError(t, err)
	require.Len(t, reservations, 2)

	inUse, reserved := usageOf(t, q, constants.ResourceInstances)
	assert.Equal(t, 0, inUse)
	assert.Equal(t, 3, reserved)

	require.NoError(t, q.Commit(ctx, reservations))

	inUse, reserved = usageOf(t, q, constants.ResourceInstances)
	assert.Equal(t, 3, inUse)
	assert.Equal(t, 0, reserved)

	// a second commit is a no-op
	require.NoError(t, q.Commit(ctx, reservations))
	inUse, _ = usageOf(t, q, constants.ResourceInstances)
	assert.Equal(t, 3, inUse)
}

func TestQuotaCommitUsedSettlesPartialWork(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	reservations, err := q.Check(ctx, tenant, service.Deltas{
		constants.ResourceInstances: 3,
		constants.ResourceVolumes:   6,
	})
	require.NoError(t, err)

	require.NoError(t, q.CommitUsed(ctx, reservations, service.Deltas{
		constants.ResourceInstances: 2,
	}))

	inUse, reserved := usageOf(t, q, constants.ResourceInstances)
	assert.Equal(t, 2, inUse)
	assert.Zero(t, reserved)
	inUse, reserved = usageOf(t, q, constants.ResourceVolumes)
	assert.Zero(t, inUse)
	assert.Zero(t, reserved)

	require.NoError(t, q.Release(ctx, tenant, service.Deltas{constants.ResourceInstances: 2}))
	inUse, _ = usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, inUse)
}

func TestQuotaExceededReservesNothing(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	_, err := q.Check(ctx, tenant, service.Deltas{
		constants.ResourceInstances: 3,
		constants.ResourceVolumes:   30,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindQuotaExceeded))

	_, reserved := usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, reserved)
	_, reserved = usageOf(t, q, constants.ResourceVolumes)
	assert.Zero(t, reserved)
}

func TestQuotaCountsReservedAgainstLimit(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	_, err := q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 4})
	require.NoError(t, err)

	_, err = q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 2})
	assert.True(t, errs.Is(err, errs.KindQuotaExceeded))

	_, err = q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 1})
	assert.NoError(t, err)
}

func TestQuotaRollback(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	reservations, err := q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 2})
	require.NoError(t, err)
	require.NoError(t, q.Rollback(ctx, reservations))

	inUse, reserved := usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, inUse)
	assert.Zero(t, reserved)

	// committing after a rollback changes nothing
	require.NoError(t, q.Commit(ctx, reservations))
	inUse, _ = usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, inUse)
}

func TestQuotaReleaseFloorsAtZero(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	reservations, err := q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 1})
	require.NoError(t, err)
	require.NoError(t, q.Commit(ctx, reservations))

	require.NoError(t, q.Release(ctx, tenant, service.Deltas{constants.ResourceInstances: 3}))

	inUse, _ := usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, inUse)
}

func TestQuotaSetLimit(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	require.NoError(t, q.SetLimit(ctx, tenant, constants.ResourceInstances, 1))
	_, err := q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 2})
	assert.True(t, errs.Is(err, errs.KindQuotaExceeded))

	require.NoError(t, q.SetLimit(ctx, tenant, constants.ResourceInstances, -1))
	_, err = q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 100})
	assert.NoError(t, err)

	err = q.SetLimit(ctx, tenant, "cores", 4)
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestQuotaUsageListsEveryResource(t *testing.T) {
	q, _ := newQuota(t)

	usages, err := q.Usage(context.Background(), tenant)
	require.NoError(t, err)
	require.Len(t, usages, 3)

	names := []string{usages[0].Resource, usages[1].Resource, usages[2].Resource}
	assert.ElementsMatch(t, []string{constants.ResourceInstances, constants.ResourceVolumes, constants.ResourceBackups}, names)
	for _, u := range usages {
		assert.Equal(t, u.Limit, u.Available)
	}
}

func TestQuotaUnknownResource(t *testing.T) {
	q, _ := newQuota(t)

	_, err := q.Check(context.Background(), tenant, service.Deltas{"cores": 1})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestSweeperRollsBackStaleReservations(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	_, err := q.Check(ctx, tenant, service.Deltas{constants.ResourceInstances: 2})
	require.NoError(t, err)

	fresh := service.NewReservationSweeper(quietLogger(), q, time.Hour, time.Minute)
	n, err := fresh.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stale := service.NewReservationSweeper(quietLogger(), q, -time.Minute, time.Minute)
	n, err = stale.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, reserved := usageOf(t, q, constants.ResourceInstances)
	assert.Zero(t, reserved)
}

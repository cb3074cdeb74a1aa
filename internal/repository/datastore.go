package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

type IDatastoreRepository interface {
	GetDatastore(ctx context.Context, id string) (*model.Datastore, error)
	GetDatastoreByName(ctx context.Context, name string) (*model.Datastore, error)
	GetVersion(ctx context.Context, id string) (*model.DatastoreVersion, error)
	GetVersionByName(ctx context.Context, datastoreID, name string) (*model.DatastoreVersion, error)
	ListParameters(ctx context.Context, versionID string) ([]model.DatastoreConfigurationParameter, error)
	SaveDatastore(ctx context.Context, datastore *model.Datastore) error
	SaveVersion(ctx context.Context, version *model.DatastoreVersion) error
	ReplaceParameters(ctx context.Context, versionID string, params []model.DatastoreConfigurationParameter) error
}

type DatastoreRepository struct {
	mysqlInstance mysqldb.IMysqlInstance
}

func NewDatastoreRepository(mysqlInstance mysqldb.IMysqlInstance) *DatastoreRepository {
	return &DatastoreRepository{
		mysqlInstance: mysqlInstance,
	}
}

func (d *DatastoreRepository) GetDatastore(ctx context.Context, id string) (*model.Datastore, error) {
	var datastore model.Datastore

	err := d.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ?", id).
		First(&datastore).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("datastore %s not found", id)
	}

	return &datastore, err
}

func (d *DatastoreRepository) GetDatastoreByName(ctx context.Context, name string) (*model.Datastore, error) {
	var datastore model.Datastore

	err := d.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("name = ?", name).
		First(&datastore).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("datastore %s not found", name)
	}

	return &datastore, err
}

func (d *DatastoreRepository) GetVersion(ctx context.Context, id string) (*model.DatastoreVersion, error) {
	var version model.DatastoreVersion

	err := d.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("id = ?", id).
		First(&version).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("datastore version %s not found", id)
	}

	return &version, err
}

func (d *DatastoreRepository) GetVersionByName(ctx context.Context, datastoreID, name string) (*model.DatastoreVersion, error) {
	var version model.DatastoreVersion

	err := d.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("datastore_id = ? AND name = ?", datastoreID, name).
		First(&version).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("datastore version %s not found", name)
	}

	return &version, err
}

func (d *DatastoreRepository) ListParameters(ctx context.Context, versionID string) ([]model.DatastoreConfigurationParameter, error) {
	var params []model.DatastoreConfigurationParameter

	return params, d.mysqlInstance.
		Database().
		WithContext(ctx).
		Where("datastore_version_id = ? AND deleted = ?", versionID, false).
		Order("name").
		Find(&params).
		Error
}

func (d *DatastoreRepository) SaveDatastore(ctx context.Context, datastore *model.Datastore) error {
	return d.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(datastore).
		Error
}

func (d *DatastoreRepository) SaveVersion(ctx context.Context, version *model.DatastoreVersion) error {
	return d.mysqlInstance.
		Database().
		WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(version).
		Error
}

// ReplaceParameters retires the current parameter rules of a version and
// inserts params in their place.
func (d *DatastoreRepository) ReplaceParameters(ctx context.Context, versionID string, params []model.DatastoreConfigurationParameter) error {
	now := time.Now().UTC()

	err := d.mysqlInstance.
		Database().
		WithContext(ctx).
		Model(&model.DatastoreConfigurationParameter{}).
		Where("datastore_version_id = ? AND deleted = ?", versionID, false).
		Updates(map[string]interface{}{"deleted": true, "deleted_at": now}).
		Error
	if err != nil || len(params) == 0 {
		return err
	}

	return d.mysqlInstance.
		Database().
		WithContext(ctx).
		Create(&params).
		Error
}

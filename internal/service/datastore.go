package service

import (
	"context"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/pkg/errs"
)

// resolveVersion finds the datastore by name and the named version of it,
// or its default version when name is empty. Inactive versions are refused.
func resolveVersion(ctx context.Context, repo repository.IRepository, datastoreName, versionName string) (*model.Datastore, *model.DatastoreVersion, error) {
	datastore, err := repo.Datastore().GetDatastoreByName(ctx, datastoreName)
	if err != nil {
		return nil, nil, err
	}

	var version *model.DatastoreVersion
	if versionName == "" {
		version, err = repo.Datastore().GetVersion(ctx, datastore.DefaultVersionID)
	} else {
		version, err = repo.Datastore().GetVersionByName(ctx, datastore.ID, versionName)
	}
	if err != nil {
		return nil, nil, err
	}
	if !version.Active {
		return nil, nil, errs.NotFound("datastore version %s of %s is not active", version.Name, datastore.Name)
	}

	return datastore, version, nil
}

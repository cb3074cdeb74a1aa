// Package catalog loads the datastore catalog operators maintain as YAML and
// writes it into the state store.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/errs"
)

type Catalog struct {
	Capabilities []Capability `yaml:"capabilities"`
	Datastores   []Datastore  `yaml:"datastores"`
}

type Capability struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Enabled     bool   `yaml:"enabled"`
}

type Datastore struct {
	Name           string    `yaml:"name"`
	DefaultVersion string    `yaml:"default_version"`
	Versions       []Version `yaml:"versions"`
}

type Version struct {
	Name           string         `yaml:"name"`
	Manager        string         `yaml:"manager"`
	ImageID        string         `yaml:"image_id"`
	Packages       string         `yaml:"packages"`
	Active         bool           `yaml:"active"`
	ClusterOptions ClusterOptions `yaml:"cluster_options"`
	Parameters     []Parameter    `yaml:"parameters"`
	// Capabilities overrides the global switch of a capability for this
	// version.
	Capabilities map[string]bool `yaml:"capabilities"`
}

type Parameter struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Min             *float64 `yaml:"min"`
	Max             *float64 `yaml:"max"`
	RestartRequired bool     `yaml:"restart_required"`
}

// ClusterOptions are topology options on top of the defaults.
type ClusterOptions struct {
	topology.Options
	set bool
}

func (o *ClusterOptions) UnmarshalYAML(node *yaml.Node) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}

	o.Options = topology.Defaults()
	o.set = true

	return strictDecode(raw, &o.Options)
}

func strictDecode(raw []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}

	return nil
}

var parameterTypes = map[string]bool{
	"integer": true,
	"float":   true,
	"boolean": true,
	"string":  true,
}

// Load decodes a catalog. Unknown keys anywhere in the document are
// rejected.
func Load(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := strictDecode(raw, &c); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid catalog")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool)
	for _, ds := range c.Datastores {
		if ds.Name == "" {
			return errs.Validation("", "datastore without a name")
		}
		if seen[ds.Name] {
			return errs.Validation("", "datastore %s listed twice", ds.Name)
		}
		seen[ds.Name] = true

		versions := make(map[string]bool)
		for _, v := range ds.Versions {
			if v.Name == "" || v.Manager == "" {
				return errs.Validation("", "datastore %s has a version without name or manager", ds.Name)
			}
			if versions[v.Name] {
				return errs.Validation("", "datastore %s lists version %s twice", ds.Name, v.Name)
			}
			versions[v.Name] = true

			for _, p := range v.Parameters {
				if !parameterTypes[p.Type] {
					return errs.Validation(errs.ReasonInvalidParameterType,
						"parameter %s of %s %s has unknown type %s", p.Name, ds.Name, v.Name, p.Type)
				}
				if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
					return errs.Validation(errs.ReasonParameterOutOfRange,
						"parameter %s of %s %s has min above max", p.Name, ds.Name, v.Name)
				}
			}
		}
		if ds.DefaultVersion != "" && !versions[ds.DefaultVersion] {
			return errs.Validation("", "default version %s of %s is not listed", ds.DefaultVersion, ds.Name)
		}
	}

	return nil
}

// Result counts what Sync wrote.
type Result struct {
	Datastores   int
	Versions     int
	Parameters   int
	Capabilities int
	Overrides    int
}

func (r Result) String() string {
	return fmt.Sprintf("%d datastores, %d versions, %d parameters, %d capabilities, %d overrides",
		r.Datastores, r.Versions, r.Parameters, r.Capabilities, r.Overrides)
}

// Sync upserts the catalog in one transaction. Existing rows keep their ids
// so clusters and configurations stay attached to their versions.
func Sync(ctx context.Context, repo repository.IRepository, c *Catalog) (Result, error) {
	var res Result

	err := repo.Transaction(ctx, func(tx repository.IRepository) error {
		res = Result{}

		for i := range c.Capabilities {
			capability := c.Capabilities[i]
			if err := tx.Capability().SaveCapability(ctx, &model.Capability{
				ID:          uuid.New().String(),
				Name:        capability.Name,
				Description: capability.Description,
				Enabled:     capability.Enabled,
			}); err != nil {
				return err
			}
			res.Capabilities++
		}

		capabilities, err := tx.Capability().ListCapabilities(ctx)
		if err != nil {
			return err
		}
		capabilityIDs := make(map[string]string, len(capabilities))
		for _, capability := range capabilities {
			capabilityIDs[capability.Name] = capability.ID
		}

		for _, ds := range c.Datastores {
			if err := syncDatastore(ctx, tx, ds, capabilityIDs, &res); err != nil {
				return err
			}
		}

		return nil
	})

	return res, err
}

func syncDatastore(ctx context.Context, tx repository.IRepository, ds Datastore, capabilityIDs map[string]string, res *Result) error {
	datastore, err := tx.Datastore().GetDatastoreByName(ctx, ds.Name)
	if errs.Is(err, errs.KindNotFound) {
		datastore, err = &model.Datastore{ID: uuid.New().String(), Name: ds.Name}, nil
	}
	if err != nil {
		return err
	}
	// versions reference the datastore row
	if err := tx.Datastore().SaveDatastore(ctx, datastore); err != nil {
		return err
	}

	for _, v := range ds.Versions {
		version, err := tx.Datastore().GetVersionByName(ctx, datastore.ID, v.Name)
		if errs.Is(err, errs.KindNotFound) {
			version, err = &model.DatastoreVersion{ID: uuid.New().String(), DatastoreID: datastore.ID, Name: v.Name}, nil
		}
		if err != nil {
			return err
		}

		opts := v.ClusterOptions.Options
		if !v.ClusterOptions.set {
			opts = topology.Defaults()
		}
		encoded, err := opts.Encode()
		if err != nil {
			return err
		}
		// stored options go through the same checks the coordinator applies
		if _, err := topology.Decode(encoded); err != nil {
			return errs.Wrap(errs.KindValidation, err, "cluster options of %s %s", ds.Name, v.Name)
		}

		version.Manager = v.Manager
		version.ImageID = v.ImageID
		version.Packages = v.Packages
		version.Active = v.Active
		version.ClusterOptions = datatypes.JSON(encoded)
		if err := tx.Datastore().SaveVersion(ctx, version); err != nil {
			return err
		}
		res.Versions++

		params := make([]model.DatastoreConfigurationParameter, 0, len(v.Parameters))
		for _, p := range v.Parameters {
			params = append(params, model.DatastoreConfigurationParameter{
				ID:                 uuid.New().String(),
				Name:               p.Name,
				DatastoreVersionID: version.ID,
				DataType:           p.Type,
				MinSize:            p.Min,
				MaxSize:            p.Max,
				RestartRequired:    p.RestartRequired,
			})
		}
		if err := tx.Datastore().ReplaceParameters(ctx, version.ID, params); err != nil {
			return err
		}
		res.Parameters += len(params)

		if err := syncOverrides(ctx, tx, version.ID, v.Capabilities, capabilityIDs, res); err != nil {
			return err
		}

		if v.Name == ds.DefaultVersion {
			datastore.DefaultVersionID = version.ID
		}
	}

	if err := tx.Datastore().SaveDatastore(ctx, datastore); err != nil {
		return err
	}
	res.Datastores++

	return nil
}

func syncOverrides(ctx context.Context, tx repository.IRepository, versionID string, overrides map[string]bool, capabilityIDs map[string]string, res *Result) error {
	if len(overrides) == 0 {
		return nil
	}

	existing, err := tx.Capability().ListOverrides(ctx, versionID)
	if err != nil {
		return err
	}
	byCapability := make(map[string]string, len(existing))
	for _, o := range existing {
		byCapability[o.CapabilityID] = o.ID
	}

	for name, enabled := range overrides {
		capabilityID, ok := capabilityIDs[name]
		if !ok {
			return errs.Validation("", "override of unknown capability %s", name)
		}

		id, ok := byCapability[capabilityID]
		if !ok {
			id = uuid.New().String()
		}
		if err := tx.Capability().SaveOverride(ctx, &model.CapabilityOverride{
			ID:                 id,
			CapabilityID:       capabilityID,
			DatastoreVersionID: versionID,
			Enabled:            enabled,
		}); err != nil {
			return err
		}
		res.Overrides++
	}

	return nil
}

package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/internal/task"
	"github.com/vmindtech/vdb/pkg/errs"
)

// Parameter data types of the datastore parameter schema
const (
	parameterBoolean = "boolean"
	parameterInteger = "integer"
	parameterFloat   = "float"
	parameterString  = "string"
)

// ClusterConfigurer re-applies a changed configuration group to a cluster.
type ClusterConfigurer interface {
	RefreshConfiguration(ctx context.Context, tenantID, clusterID string) error
}

type IConfigurationService interface {
	Create(ctx context.Context, tenantID string, req request.CreateConfigurationRequest) (resource.ConfigurationResource, error)
	Get(ctx context.Context, tenantID, id string) (resource.ConfigurationResource, error)
	List(ctx context.Context, tenantID string) (resource.ConfigurationListResource, error)
	Update(ctx context.Context, tenantID, id string, req request.UpdateConfigurationRequest) (resource.ConfigurationResource, error)
	Delete(ctx context.Context, tenantID, id string) error
	Attach(ctx context.Context, tenantID, instanceID, configurationID string) error
	Detach(ctx context.Context, tenantID, instanceID string) error
}

type configurationService struct {
	logger     *logrus.Logger
	repository repository.IRepository
	guests     guestagent.Factory
	clusters   ClusterConfigurer
}

func NewConfigurationService(l *logrus.Logger, r repository.IRepository, g guestagent.Factory, c ClusterConfigurer) IConfigurationService {
	return &configurationService{
		logger:     l,
		repository: r,
		guests:     g,
		clusters:   c,
	}
}

// configurationGroup is a stored group together with its decoded values.
type configurationGroup struct {
	model.Configuration
	Values          map[string]interface{}
	RestartRequired bool
}

func (g configurationGroup) guestGroup() guestagent.Group {
	return guestagent.Group{ID: g.ID, Values: g.Values}
}

// loadConfiguration reads a group of tenant and its values.
func loadConfiguration(ctx context.Context, repo repository.IRepository, tenantID, id string) (*configurationGroup, error) {
	configuration, err := repo.Configuration().GetConfiguration(ctx, id)
	if err != nil {
		return nil, err
	}
	if configuration.TenantID != tenantID {
		return nil, errs.NotFound("configuration %s not found", id)
	}

	items, err := repo.Configuration().ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	params, err := repo.Datastore().ListParameters(ctx, configuration.DatastoreVersionID)
	if err != nil {
		return nil, err
	}
	restart := make(map[string]bool, len(params))
	for _, p := range params {
		restart[p.Name] = p.RestartRequired
	}

	group := &configurationGroup{Configuration: *configuration, Values: make(map[string]interface{}, len(items))}
	for _, item := range items {
		var v interface{}
		if err := json.Unmarshal([]byte(item.ConfigurationValue), &v); err != nil {
			v = item.ConfigurationValue
		}
		group.Values[item.ConfigurationKey] = v
		group.RestartRequired = group.RestartRequired || restart[item.ConfigurationKey]
	}

	return group, nil
}

// validateValues checks values against the parameter schema of a datastore
// version and returns them coerced to their declared types.
func validateValues(params []model.DatastoreConfigurationParameter, values map[string]interface{}) (map[string]interface{}, error) {
	schema := make(map[string]model.DatastoreConfigurationParameter, len(params))
	for _, p := range params {
		schema[p.Name] = p
	}

	out := make(map[string]interface{}, len(values))
	for name, raw := range values {
		p, ok := schema[name]
		if !ok {
			return nil, errs.Validation(errs.ReasonUnknownParameter, "the parameter %s is not supported by this datastore version", name)
		}

		v, err := coerce(p, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}

	return out, nil
}

func coerce(p model.DatastoreConfigurationParameter, raw interface{}) (interface{}, error) {
	typeErr := errs.Validation(errs.ReasonInvalidParameterType, "the value of %s must be of type %s", p.Name, p.DataType)

	switch p.DataType {
	case parameterBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, typeErr
			}
			return b, nil
		}
		return nil, typeErr

	case parameterInteger:
		f, ok := number(raw)
		if !ok || f != math.Trunc(f) {
			return nil, typeErr
		}
		if err := checkRange(p, f); err != nil {
			return nil, err
		}
		return int64(f), nil

	case parameterFloat:
		f, ok := number(raw)
		if !ok {
			return nil, typeErr
		}
		if err := checkRange(p, f); err != nil {
			return nil, err
		}
		return f, nil

	case parameterString:
		s, ok := raw.(string)
		if !ok {
			return nil, typeErr
		}
		return s, nil
	}

	return nil, errs.Validation(errs.ReasonInvalidParameterType, "the parameter %s has unknown type %s", p.Name, p.DataType)
}

func number(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}

	return 0, false
}

func checkRange(p model.DatastoreConfigurationParameter, v float64) error {
	if p.MinSize != nil && v < *p.MinSize {
		return errs.Validation(errs.ReasonParameterOutOfRange, "the value of %s must be at least %v", p.Name, *p.MinSize)
	}
	if p.MaxSize != nil && v > *p.MaxSize {
		return errs.Validation(errs.ReasonParameterOutOfRange, "the value of %s must be at most %v", p.Name, *p.MaxSize)
	}

	return nil
}

func encodeItems(configurationID string, values map[string]interface{}) ([]model.ConfigurationParameter, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]model.ConfigurationParameter, 0, len(names))
	for _, name := range names {
		raw, err := json.Marshal(values[name])
		if err != nil {
			return nil, err
		}
		items = append(items, model.ConfigurationParameter{
			ID:                 uuid.New().String(),
			ConfigurationID:    configurationID,
			ConfigurationKey:   name,
			ConfigurationValue: string(raw),
		})
	}

	return items, nil
}

func (c *configurationService) Create(ctx context.Context, tenantID string, req request.CreateConfigurationRequest) (resource.ConfigurationResource, error) {
	_, version, err := resolveVersion(ctx, c.repository, req.Datastore.Type, req.Datastore.Version)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	params, err := c.repository.Datastore().ListParameters(ctx, version.ID)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}
	values, err := validateValues(params, req.Values)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	now := time.Now().UTC()
	configuration := model.Configuration{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Description:        req.Description,
		TenantID:           tenantID,
		DatastoreVersionID: version.ID,
		Created:            now,
		Updated:            now,
	}
	items, err := encodeItems(configuration.ID, values)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	err = c.repository.Transaction(ctx, func(tx repository.IRepository) error {
		if err := tx.Configuration().CreateConfiguration(ctx, &configuration); err != nil {
			return err
		}

		return tx.Configuration().ReplaceItems(ctx, configuration.ID, items)
	})
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	c.logger.WithField("configuration_id", configuration.ID).Info("configuration created")

	return c.Get(ctx, tenantID, configuration.ID)
}

func (c *configurationService) Get(ctx context.Context, tenantID, id string) (resource.ConfigurationResource, error) {
	group, err := loadConfiguration(ctx, c.repository, tenantID, id)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}
	count, err := c.repository.Configuration().CountUsage(ctx, id)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	return resource.ConfigurationResource{
		ID:                 group.ID,
		Name:               group.Name,
		Description:        group.Description,
		DatastoreVersionID: group.DatastoreVersionID,
		Values:             group.Values,
		RestartRequired:    group.RestartRequired,
		InstanceCount:      count,
		Created:            group.Created,
		Updated:            group.Updated,
	}, nil
}

func (c *configurationService) List(ctx context.Context, tenantID string) (resource.ConfigurationListResource, error) {
	configurations, err := c.repository.Configuration().ListConfigurations(ctx, tenantID)
	if err != nil {
		return resource.ConfigurationListResource{}, err
	}

	out := resource.ConfigurationListResource{Configurations: make([]resource.ConfigurationResource, 0, len(configurations))}
	for _, cfg := range configurations {
		item, err := c.Get(ctx, tenantID, cfg.ID)
		if err != nil {
			return resource.ConfigurationListResource{}, err
		}
		out.Configurations = append(out.Configurations, item)
	}

	return out, nil
}

func (c *configurationService) Update(ctx context.Context, tenantID, id string, req request.UpdateConfigurationRequest) (resource.ConfigurationResource, error) {
	group, err := loadConfiguration(ctx, c.repository, tenantID, id)
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}

	var items []model.ConfigurationParameter
	if req.Values != nil {
		params, err := c.repository.Datastore().ListParameters(ctx, group.DatastoreVersionID)
		if err != nil {
			return resource.ConfigurationResource{}, err
		}
		values, err := validateValues(params, req.Values)
		if err != nil {
			return resource.ConfigurationResource{}, err
		}
		if items, err = encodeItems(id, values); err != nil {
			return resource.ConfigurationResource{}, err
		}
	}

	if req.Values != nil {
		if err := c.checkClustersIdle(ctx, id); err != nil {
			return resource.ConfigurationResource{}, err
		}
	}

	err = c.repository.Transaction(ctx, func(tx repository.IRepository) error {
		if err := tx.Configuration().UpdateConfiguration(ctx, id, fields); err != nil {
			return err
		}
		if req.Values == nil {
			return nil
		}

		return tx.Configuration().ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return resource.ConfigurationResource{}, err
	}

	if req.Values != nil {
		if err := c.fanOut(ctx, tenantID, id); err != nil {
			return resource.ConfigurationResource{}, err
		}
	}

	return c.Get(ctx, tenantID, id)
}

// checkClustersIdle refuses a change of values while a cluster using the
// group runs another action, so that nothing is written that its refresh
// would then be denied.
func (c *configurationService) checkClustersIdle(ctx context.Context, id string) error {
	clusterIDs, err := c.clustersUsing(ctx, id)
	if err != nil {
		return err
	}

	for _, clusterID := range clusterIDs {
		cluster, err := c.repository.Cluster().GetCluster(ctx, clusterID)
		if err != nil {
			return err
		}
		if !task.ActionConfigurationAttach.Permits(cluster.Task()) {
			return errs.Conflict("cluster %s using configuration %s is busy with task %s", clusterID, id, cluster.Task().Name)
		}
	}

	return nil
}

func (c *configurationService) clustersUsing(ctx context.Context, id string) ([]string, error) {
	instances, err := c.repository.Instance().ListInstancesByConfiguration(ctx, id)
	if err != nil {
		return nil, err
	}

	var clusterIDs []string
	seen := make(map[string]bool)
	for i := range instances {
		clusterID := model.Deref(instances[i].ClusterID)
		if clusterID == "" || seen[clusterID] {
			continue
		}
		seen[clusterID] = true
		clusterIDs = append(clusterIDs, clusterID)
	}

	return clusterIDs, nil
}

// fanOut pushes changed values to every instance using the group: standalone
// instances one at a time, cluster members through their cluster.
func (c *configurationService) fanOut(ctx context.Context, tenantID, id string) error {
	group, err := loadConfiguration(ctx, c.repository, tenantID, id)
	if err != nil {
		return err
	}
	instances, err := c.repository.Instance().ListInstancesByConfiguration(ctx, id)
	if err != nil {
		return err
	}

	var clusterIDs []string
	seen := make(map[string]bool)
	for i := range instances {
		instance := &instances[i]
		if clusterID := model.Deref(instance.ClusterID); clusterID != "" {
			if !seen[clusterID] {
				seen[clusterID] = true
				clusterIDs = append(clusterIDs, clusterID)
			}
			continue
		}

		if err := c.apply(ctx, instance, group); err != nil {
			return err
		}
	}

	for _, clusterID := range clusterIDs {
		if err := c.clusters.RefreshConfiguration(ctx, tenantID, clusterID); err != nil {
			return err
		}
	}

	return nil
}

func (c *configurationService) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := loadConfiguration(ctx, c.repository, tenantID, id); err != nil {
		return err
	}

	count, err := c.repository.Configuration().CountUsage(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errs.New(errs.KindConflict, errs.ReasonConfigurationInUse,
			"configuration %s is attached to %d clusters or instances", id, count)
	}

	return c.repository.Transaction(ctx, func(tx repository.IRepository) error {
		if err := tx.Configuration().ReplaceItems(ctx, id, nil); err != nil {
			return err
		}

		return tx.Configuration().SoftDelete(ctx, id)
	})
}

func (c *configurationService) standalone(ctx context.Context, tenantID, instanceID string) (*model.Instance, error) {
	instance, err := c.repository.Instance().GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.TenantID != tenantID {
		return nil, errs.NotFound("instance %s not found", instanceID)
	}
	if instance.ClusterID != nil {
		return nil, errs.Validation(errs.ReasonActionNotSupported,
			"instance %s belongs to cluster %s, configure it through the cluster", instanceID, *instance.ClusterID)
	}

	return instance, nil
}

func (c *configurationService) Attach(ctx context.Context, tenantID, instanceID, configurationID string) error {
	instance, err := c.standalone(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	group, err := loadConfiguration(ctx, c.repository, tenantID, configurationID)
	if err != nil {
		return err
	}
	if group.DatastoreVersionID != instance.DatastoreVersionID {
		return errs.Validation(errs.ReasonConfigurationDatastoreMismatch,
			"configuration %s does not match the datastore version of instance %s", configurationID, instanceID)
	}

	switch model.Deref(instance.ConfigurationID) {
	case configurationID:
		return nil
	case "":
	default:
		return errs.Conflict("instance %s already has configuration %s attached", instanceID, *instance.ConfigurationID)
	}

	return c.apply(ctx, instance, group)
}

// apply pushes the group to one instance and records it once the guest has
// taken it.
func (c *configurationService) apply(ctx context.Context, instance *model.Instance, group *configurationGroup) error {
	guest, err := c.guests.Guest(instance)
	if err != nil {
		return err
	}
	if err := guest.UpdateOverrides(ctx, group.Values); err != nil {
		return err
	}
	applied, err := guest.ApplyConfiguration(ctx, group.guestGroup())
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"configuration_id": group.ID}
	if !applied {
		fields["task_id"] = task.RestartRequired.Code
		fields["task_description"] = task.RestartRequired.Description
	}
	if err := c.repository.Instance().UpdateInstance(ctx, instance.ID, fields); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"instance_id":      instance.ID,
		"configuration_id": group.ID,
		"restart_required": !applied,
	}).Info("configuration applied")

	return nil
}

func (c *configurationService) Detach(ctx context.Context, tenantID, instanceID string) error {
	instance, err := c.standalone(ctx, tenantID, instanceID)
	if err != nil {
		return err
	}
	prior := model.Deref(instance.ConfigurationID)
	if prior == "" {
		return nil
	}

	guest, err := c.guests.Guest(instance)
	if err != nil {
		return err
	}
	if err := guest.RemoveOverrides(ctx); err != nil {
		return err
	}
	applied, err := guest.ResetConfiguration(ctx, prior)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"configuration_id": nil}
	if !applied {
		fields["task_id"] = task.RestartRequired.Code
		fields["task_description"] = task.RestartRequired.Description
	}

	return c.repository.Instance().UpdateInstance(ctx, instance.ID, fields)
}

package request

type CreateConfigurationRequest struct {
	Name        string                 `json:"name" validate:"required,max=255"`
	Description string                 `json:"description" validate:"max=255"`
	Datastore   DatastoreRef           `json:"datastore" validate:"required"`
	Values      map[string]interface{} `json:"values" validate:"required,dive,keys,param_name,endkeys"`
}

type UpdateConfigurationRequest struct {
	Name        *string                `json:"name" validate:"omitempty,max=255"`
	Description *string                `json:"description" validate:"omitempty,max=255"`
	Values      map[string]interface{} `json:"values" validate:"omitempty,dive,keys,param_name,endkeys"`
}

type AttachConfigurationRequest struct {
	ConfigurationID string `json:"configuration_id" validate:"required"`
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type named struct {
	Name   string                 `json:"name" validate:"required,resource_name"`
	Values map[string]interface{} `json:"values" validate:"omitempty,dive,keys,param_name,endkeys"`
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	v := InitValidator()

	errs := v.Validate(named{
		Name:   "orders-db.1",
		Values: map[string]interface{}{"max_connections": 10, "net.maxIncomingConnections": 5},
	})

	assert.Empty(t, errs)
}

func TestValidateResourceName(t *testing.T) {
	v := InitValidator()

	errs := v.Validate(named{Name: "-bad name"})

	if assert.Contains(t, errs, "name") {
		assert.Contains(t, errs["name"], "must start with a letter or digit")
	}
}

func TestValidateParamNameKeys(t *testing.T) {
	v := InitValidator()

	errs := v.Validate(named{Name: "db", Values: map[string]interface{}{"bad key": 1}})

	assert.Len(t, errs, 1)
	for _, msg := range errs {
		assert.Contains(t, msg, "invalid parameter name")
	}
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := InitValidator()

	errs := v.Validate(named{})

	assert.Contains(t, errs, "name")
}

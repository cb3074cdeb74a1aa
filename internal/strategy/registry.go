package strategy

import (
	"fmt"

	"github.com/vmindtech/vdb/pkg/errs"
)

// Registry maps datastore manager names to strategies. It is filled once at
// start up and read concurrently afterwards.
type Registry struct {
	byManager map[string]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{byManager: make(map[string]Strategy)}
	for _, s := range strategies {
		for _, m := range s.Managers() {
			if _, dup := r.byManager[m]; dup {
				panic(fmt.Sprintf("strategy: manager %q registered twice", m))
			}
			r.byManager[m] = s
		}
	}

	return r
}

// DefaultRegistry carries every shipped strategy.
func DefaultRegistry() *Registry {
	return NewRegistry(NewGalera(), NewCassandra(), NewMongoDB(), NewRedis())
}

func (r *Registry) ForManager(manager string) (Strategy, error) {
	s, ok := r.byManager[manager]
	if !ok {
		return nil, errs.Validation(errs.ReasonDatastoreNotSupported,
			"clusters are not supported for datastore manager %s", manager)
	}

	return s, nil
}

// Package task holds the closed sets of cluster and instance task states and
// the table of which cluster actions may start from which state.
package task

import "fmt"

type Task struct {
	Code        int
	Name        string
	Description string
	IsError     bool
}

func (t Task) Equal(o Task) bool {
	return t.Code == o.Code
}

func (t Task) String() string {
	return t.Name
}

type registry struct {
	kind   string
	byCode map[int]Task
	order  []Task
}

func newRegistry(kind string, tasks ...Task) *registry {
	r := &registry{kind: kind, byCode: make(map[int]Task, len(tasks))}
	for _, t := range tasks {
		if _, dup := r.byCode[t.Code]; dup {
			panic(fmt.Sprintf("duplicate %s task code %#x", kind, t.Code))
		}
		r.byCode[t.Code] = t
		r.order = append(r.order, t)
	}

	return r
}

func (r *registry) fromCode(code int) (Task, bool) {
	t, ok := r.byCode[code]
	return t, ok
}

func (r *registry) all() []Task {
	out := make([]Task, len(r.order))
	copy(out, r.order)

	return out
}

// Package compound implements the compound-type resolver (C6): named,
// reusable column sets that a [go.bpmodel.dev/model/column.ColumnType] can
// reference as its restriction. Compound types are order-sensitive — a
// type's own column declarations may reference an earlier-declared compound
// type, but never a later one.
package compound

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/omap"
)

// ErrUnknown means a compound-type column declaration named a compound type
// that has not been registered yet (or at all).
var ErrUnknown = errors.New("compound: unknown type")

// Type is one named compound type: a name plus the column-set that backs
// it. Columns within a Type may themselves carry a compound restriction,
// naming an earlier-registered Type.
type Type struct {
	Name    string
	Columns *column.ColumnSet
}

// Registry is the insertion-ordered set of compound types declared in a
// model, in declaration order.
type Registry struct {
	types *omap.Map[*Type]
}

// New returns an empty, ready-to-use [Registry].
func New() *Registry {
	return &Registry{types: omap.New[*Type]()}
}

// Register adds t to the registry. The caller is responsible for resolving
// t.Columns' compound restrictions against this registry (via [Lookup])
// before calling Register, so that later lookups always see a fully formed
// Type.
func (r *Registry) Register(t *Type) bool {
	return r.types.SetUnique(t.Name, t)
}

// Lookup returns the compound type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	return r.types.Get(name)
}

// Names returns compound-type names in declaration order.
func (r *Registry) Names() []string {
	return r.types.Keys()
}

// ResolveColumn validates that a column carrying a compound restriction
// named typeName resolves to an already-registered [Type], returning it.
// Called while building a later compound type or a concept-type/concept
// column-set, enforcing the order-sensitivity rule of SPEC_FULL.md C6.
func (r *Registry) ResolveColumn(typeName string) (*Type, error) {
	t, ok := r.types.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, typeName)
	}

	return t, nil
}

// Package concepttype implements the concept-type resolver (C7): reusable,
// possibly abstract templates of columns that a concept may be "based on".
// Concept types form a chain through an optional declared parent — never a
// diamond — and the chain may include anonymous (unnamed) members that
// contribute columns without being installed in the name registry.
package concepttype

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/omap"
)

// ErrUnknownParent means a concept type named a parent that has not been
// registered yet (or at all).
var ErrUnknownParent = errors.New("concepttype: unknown parent")

// ErrColumnConflict means merging a parent's column-set into a child
// produced a same-name collision the usage-widening rule does not permit;
// wraps [column.ErrDuplicate].
var ErrColumnConflict = errors.New("concepttype: column conflict")

// ConceptType is one node of a concept-type inheritance chain: an optional
// name (empty for an anonymous/abstract mixin), an optional parent name,
// and its own locally declared columns (not yet merged with the parent's).
type ConceptType struct {
	Name    string // empty for anonymous members
	Parent  string // empty if this is the chain root
	Columns *column.ColumnSet

	// Collection, if non-empty, names the backend collection concepts
	// based on this type default into, absent an explicit override.
	Collection string
}

// Registry is the insertion-ordered set of named concept types declared in
// a model. Anonymous members are never added here; they are merged inline
// by the caller building a chain and are otherwise unreachable, per
// spec.md §9 ("Anonymous abstract concept-types").
type Registry struct {
	types *omap.Map[*ConceptType]
}

// New returns an empty, ready-to-use [Registry].
func New() *Registry {
	return &Registry{types: omap.New[*ConceptType]()}
}

// Register adds t to the registry under t.Name. It is the caller's
// responsibility to skip this call for anonymous members.
func (r *Registry) Register(t *ConceptType) bool {
	return r.types.SetUnique(t.Name, t)
}

// Lookup returns the concept type registered under name.
func (r *Registry) Lookup(name string) (*ConceptType, bool) {
	return r.types.Get(name)
}

// Names returns concept-type names in declaration order.
func (r *Registry) Names() []string {
	return r.types.Keys()
}

// Chain walks the parent links starting at t, returning root-first order.
// t itself may be anonymous; an anonymous t is never looked up by name
// (callers hold it directly), but any ancestor named in t.Parent must
// already be registered.
func (r *Registry) Chain(t *ConceptType) ([]*ConceptType, error) {
	var chain []*ConceptType

	seen := make(map[string]bool)
	cur := t

	for {
		chain = append([]*ConceptType{cur}, chain...)

		if cur.Parent == "" {
			break
		}

		if seen[cur.Parent] {
			return nil, fmt.Errorf("%w: cycle at %s", ErrUnknownParent, cur.Parent)
		}

		seen[cur.Parent] = true

		parent, ok := r.types.Get(cur.Parent)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, cur.Parent)
		}

		cur = parent
	}

	return chain, nil
}

// Merge merges the root-to-leaf chain's column-sets into one [column.ColumnSet]:
// parent columns first, leaf columns override same-named parent columns
// only when the usage widens ([column.Usage.Widens]); any other collision is
// [ErrColumnConflict].
func Merge(chain []*ConceptType) (*column.ColumnSet, error) {
	merged := column.NewColumnSet()

	for _, ct := range chain {
		for _, col := range ct.Columns.Columns() {
			existing, ok := merged.Get(col.Name)
			if !ok {
				if err := merged.Add(col); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrColumnConflict, err)
				}

				continue
			}

			if existing.Type == nil || col.Type == nil || !existing.Type.Usage.Widens(col.Type.Usage) {
				return nil, fmt.Errorf("%w: %s", ErrColumnConflict, col.Name)
			}

			merged.Replace(col)
		}
	}

	return merged, nil
}

// Resolve looks up the named concept type, walks its chain, and returns
// both the chain (root→leaf, possibly with anonymous members the caller
// passes embedded as Parent-less roots is not possible here since Registry
// only holds named types — anonymous chain members are supplied to Chain
// directly by the caller that built them) and its merged column-set.
func (r *Registry) Resolve(name string) ([]*ConceptType, *column.ColumnSet, error) {
	t, ok := r.types.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownParent, name)
	}

	chain, err := r.Chain(t)
	if err != nil {
		return nil, nil, err
	}

	merged, err := Merge(chain)
	if err != nil {
		return nil, nil, err
	}

	return chain, merged, nil
}

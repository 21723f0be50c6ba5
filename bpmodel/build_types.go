package bpmodel

import (
	"fmt"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/compound"
	"go.bpmodel.dev/model/concepttype"
	"go.bpmodel.dev/model/xmlnode"
)

// buildCompoundTypes parses <compound-types><compound-type name="..">...
// in document order. Compound types are order-sensitive (spec.md §4.5): a
// type's own columns may restrict to an earlier-registered compound type,
// never a later one, which [parseColumnSet] does not itself enforce (it
// only parses), so restriction existence is checked lazily, per column, via
// [compound.Registry.ResolveColumn] as each type is registered.
func buildCompoundTypes(root *xmlnode.Node) (*compound.Registry, error) {
	reg := compound.New()

	section, ok := root.Child("compound-types")
	if !ok {
		return reg, nil
	}

	for _, n := range section.ChildrenNamed("compound-type") {
		name, _ := n.Attr("name")
		if name == "" {
			return nil, fmt.Errorf("%w: compound-type missing name", ErrSchemaViolation)
		}

		cols, err := parseColumnSet(n)
		if err != nil {
			return nil, fmt.Errorf("compound-type %s: %w", name, err)
		}

		for _, col := range cols.Columns() {
			if col.Type.Restriction != nil && col.Type.Restriction.Kind == column.RestrictionCompound {
				if _, err := reg.ResolveColumn(col.Type.Restriction.Name); err != nil {
					return nil, fmt.Errorf("compound-type %s: column %s: %w", name, col.Name, err)
				}
			}
		}

		t := &compound.Type{Name: name, Columns: cols}
		if !reg.Register(t) {
			return nil, wrapNamed(ErrDuplicateName, name)
		}
	}

	return reg, nil
}

// buildConceptTypes parses <concept-types><concept-type name=".."
// extends="..">...</concept-type></concept-types>, also order-sensitive: a
// type's declared parent must already be registered. A <concept-type>
// with no name attribute is parsed and its parent checked, but it is never
// installed in the registry (spec.md §9 "Anonymous abstract
// concept-types"), since no basedOn can name it.
func buildConceptTypes(root *xmlnode.Node) (*concepttype.Registry, error) {
	reg := concepttype.New()

	section, ok := root.Child("concept-types")
	if !ok {
		return reg, nil
	}

	for _, n := range section.ChildrenNamed("concept-type") {
		name, _ := n.Attr("name")

		cols, err := parseColumnSet(n)
		if err != nil {
			return nil, fmt.Errorf("concept-type %s: %w", name, err)
		}

		ct := &concepttype.ConceptType{
			Name:    name,
			Parent:  attrOrEmpty(n, "extends"),
			Columns: cols,
		}

		if collection, ok := n.Attr("collection"); ok {
			ct.Collection = collection
		}

		if ct.Parent != "" {
			if _, ok := reg.Lookup(ct.Parent); !ok {
				return nil, fmt.Errorf("concept-type %s: %w: %s", name, ErrUnknownReference, ct.Parent)
			}
		}

		if name == "" {
			// Anonymous concept types cannot be referenced by any
			// concept's basedOn (which names by string), so there is
			// nothing useful to register them under; skip silently.
			continue
		}

		if !reg.Register(ct) {
			return nil, wrapNamed(ErrDuplicateName, name)
		}
	}

	return reg, nil
}

func attrOrEmpty(n *xmlnode.Node, name string) string {
	v, _ := n.Attr(name)

	return v
}

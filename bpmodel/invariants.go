package bpmodel

import (
	"fmt"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/domain"
)

// checkInvariants walks the fully resolved Model and checks every
// invariant spec.md §3 states must hold after loading, beyond what the
// individual resolvers (C5-C9) already enforce while they build their own
// registries (uniqueness within a namespace, column-conflict widening,
// CV-cycle detection). It runs once, as the last step of [Load] and
// [LoadArchive], over the frozen Model.
//
// I7 ("nullCV is defined and non-empty; no term in nullCV collides with a
// restriction CV's terms") is deliberately not checked here: spec.md states
// it is "enforced lazily at validation time", i.e. during bulk ingest
// (package ingest), not at load.
func checkInvariants(m *Model) error {
	if err := checkRestrictions(m); err != nil {
		return err
	}

	if err := checkArrayIDRefs(m); err != nil {
		return err
	}

	if err := checkDefaultColumns(m); err != nil {
		return err
	}

	if err := checkIndexColumns(m); err != nil {
		return err
	}

	if err := checkFilenameCaptures(m); err != nil {
		return err
	}

	return nil
}

// checkRestrictions enforces I5: every CV/pattern/compound restriction on
// every column of every compound type, concept type, and concept resolves
// to a registered entry.
func checkRestrictions(m *Model) error {
	check := func(owner string, cs *column.ColumnSet) error {
		for _, col := range cs.Columns() {
			r := col.Type.Restriction
			if r == nil {
				continue
			}

			switch r.Kind {
			case column.RestrictionCV:
				if _, ok := m.CVs.Get(r.Name); !ok {
					return fmt.Errorf("%w: %s.%s: cv %s", ErrUnknownReference, owner, col.Name, r.Name)
				}
			case column.RestrictionPattern:
				if _, ok := m.Patterns.Lookup(r.Name); !ok {
					return fmt.Errorf("%w: %s.%s: pattern %s", ErrUnknownReference, owner, col.Name, r.Name)
				}
			case column.RestrictionCompound:
				if _, ok := m.CompoundTypes.Lookup(r.Name); !ok {
					return fmt.Errorf("%w: %s.%s: compound %s", ErrUnknownReference, owner, col.Name, r.Name)
				}
			}
		}

		return nil
	}

	for _, name := range m.CompoundTypes.Names() {
		t, _ := m.CompoundTypes.Lookup(name)
		if err := check("compound-type "+name, t.Columns); err != nil {
			return err
		}
	}

	for _, name := range m.ConceptTypes.Names() {
		t, _ := m.ConceptTypes.Lookup(name)
		if err := check("concept-type "+name, t.Columns); err != nil {
			return err
		}
	}

	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		for _, c := range d.Concepts() {
			if err := check(dname+"."+c.Name, c.ColumnSet); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkArrayIDRefs enforces I4: a column marked idref cannot carry an
// array-separator ladder of depth > 0 unless its referred column (the
// identifier column it was synthesized from by weak-entity identification
// or FK propagation) does too. A non-synthesized idref column carrying an
// array ladder has no referred column to defer to and always violates I4.
func checkArrayIDRefs(m *Model) error {
	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		for _, c := range d.Concepts() {
			for _, col := range c.ColumnSet.Columns() {
				if col.Type == nil || col.Type.Usage != column.UsageIDRef || !col.Type.IsArray() {
					continue
				}

				if !col.IsRef() {
					return fmt.Errorf("%w: %s.%s: idref column carries array separators with no referred column", ErrSchemaViolation, c.Name, col.Name)
				}

				refConcept, ok := m.findConceptAnyDomain(col.RefConcept)
				if !ok {
					continue
				}

				refCol, ok := refConcept.ColumnSet.Get(col.RefColumn)
				if !ok || !refCol.Type.IsArray() || len(refCol.Type.Separators) < len(col.Type.Separators) {
					return fmt.Errorf("%w: %s.%s: referred column %s.%s does not carry a matching array ladder", ErrSchemaViolation, c.Name, col.Name, col.RefConcept, col.RefColumn)
				}
			}
		}
	}

	return nil
}

// checkDefaultColumns enforces I2 for sibling-column defaults: a
// column-type default naming a column rather than a literal must name a
// column of the same owning column-set.
func checkDefaultColumns(m *Model) error {
	check := func(owner string, cs *column.ColumnSet) error {
		for _, col := range cs.Columns() {
			if col.Type.Default == nil || col.Type.Default.IsLiteral() {
				continue
			}

			if !cs.Has(col.Type.Default.ColumnName) {
				return fmt.Errorf("%w: %s.%s: default column %s", ErrUnknownReference, owner, col.Name, col.Type.Default.ColumnName)
			}
		}

		return nil
	}

	for _, name := range m.CompoundTypes.Names() {
		t, _ := m.CompoundTypes.Lookup(name)
		if err := check("compound-type "+name, t.Columns); err != nil {
			return err
		}
	}

	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		for _, c := range d.Concepts() {
			if err := check(dname+"."+c.Name, c.ColumnSet); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkIndexColumns enforces I2 for collection indices: every index column
// name must exist in the column-set of every concept that targets that
// collection. A collection with no concept pointing at it yet (declared
// ahead of use) is not itself an error.
func checkIndexColumns(m *Model) error {
	byCollection := make(map[string][]*domain.Concept)

	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		for _, c := range d.Concepts() {
			if c.Collection != "" {
				byCollection[c.Collection] = append(byCollection[c.Collection], c)
			}
		}
	}

	for _, name := range m.Collections.Keys() {
		col, _ := m.Collections.Get(name)

		for _, idx := range col.Indices {
			for _, ic := range idx.Columns {
				for _, c := range byCollection[name] {
					if !c.ColumnSet.Has(ic.Column) {
						return fmt.Errorf("%w: collection %s: index column %s not in concept %s", ErrUnknownReference, name, ic.Column, c.Name)
					}
				}
			}
		}
	}

	return nil
}

// checkFilenameCaptures enforces I2 for filename-pattern captures: every
// capture's target column must exist in its pattern's target concept.
// Filename patterns name a target concept without a domain qualifier, so
// this looks the name up across every domain (first match wins — concept
// names need not be globally unique, and a name found in more than one
// domain is not reported as ambiguous).
func checkFilenameCaptures(m *Model) error {
	for _, name := range m.Filenames.Names() {
		p, ok := m.Filenames.Lookup(name)
		if !ok {
			continue
		}

		target, ok := m.findConceptAnyDomain(p.TargetConcept)
		if !ok {
			return fmt.Errorf("%w: filename-pattern %s: concept %s", ErrUnknownReference, name, p.TargetConcept)
		}

		for _, frag := range p.Fragments {
			if frag.Name == "" {
				continue
			}

			if !target.ColumnSet.Has(frag.Spec.TargetColumn) {
				return fmt.Errorf("%w: filename-pattern %s: column %s not in concept %s", ErrUnknownReference, name, frag.Spec.TargetColumn, p.TargetConcept)
			}
		}
	}

	return nil
}

// findConceptAnyDomain looks up a concept by name across every domain, in
// domain declaration order, returning the first match.
func (m *Model) findConceptAnyDomain(name string) (*domain.Concept, bool) {
	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		if c, ok := d.Concept(name); ok {
			return c, true
		}
	}

	return nil, false
}

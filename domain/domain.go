// Package domain implements the concept-domain resolver (C8): concepts,
// their classical and weak-entity inheritance, and the deterministic
// column-set merge order of SPEC_FULL.md §5 C8 / spec.md §4.6.
//
// The related-concept foreign-key propagation pass (C9) is a separate
// second pass over a [Domain]'s resolved concepts and lives in package
// [go.bpmodel.dev/model/fk], so that ResolveDomain stays a pure,
// single-domain operation with no knowledge of cross-domain lookups.
package domain

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/concepttype"
	"go.bpmodel.dev/model/omap"
)

// Error kinds returned by this package.
var (
	// ErrUnknownReference means extends/identifiedBy/basedOn named a
	// concept or concept-type that does not exist.
	ErrUnknownReference = errors.New("domain: unknown reference")

	// ErrColumnConflict means a column-set merge produced a same-name
	// collision the usage-widening rule does not permit.
	ErrColumnConflict = errors.New("domain: column conflict")
)

// Arity classifies how many instances of a related concept one source
// instance may reference.
type Arity int

const (
	ArityOne        Arity = iota // exactly 1
	ArityZeroOrOne               // 0..1
	ArityOneToMany               // 1..N
	ArityZeroToMany              // 0..N
)

// RelatedConcept is a directed reference from one concept to another,
// before (source fields) and after (Resolved*, populated by package fk) the
// second resolution pass.
type RelatedConcept struct {
	TargetDomain  string // empty means "same domain as source"
	TargetConcept string
	KeyPrefix     string
	Arity         Arity

	// Populated by fk.Propagate.
	Resolved   *Concept
	RefColumns []*column.Column
}

// Concept is one entity type within a [Domain]: a column-set merged from
// concept-types it is based on, its classical parent (extends), and its
// weak-entity id-concept (identifiedBy), plus its own declared columns, in
// that order (spec.md §4.6).
type Concept struct {
	Name        string
	FullName    string
	Description string
	Annotations *annotation.Set

	// BasedOn names concept types merged first, in listed order.
	BasedOn []string

	// Extends names another concept in the same domain whose fully
	// merged column-set is prepended (classical inheritance). Empty if
	// this concept has no parent.
	Extends string

	// IdentifiedBy names another concept in the same domain whose
	// identifier columns are imported, prefixed by IDPrefix (weak-entity
	// identification). Empty if this concept is not a weak entity.
	IdentifiedBy string
	IDPrefix     string

	// Own is this concept's locally declared columns, merged in last.
	Own *column.ColumnSet

	// ColumnSet is populated by ResolveDomain: the fully merged set, in
	// the exact 4-step order of spec.md §4.6.
	ColumnSet *column.ColumnSet

	RelatedConcepts []*RelatedConcept

	Collection string
}

// Domain is a named grouping of concepts sharing a subject area.
type Domain struct {
	Name        string
	FullName    string
	Abstract    bool
	Description string
	Annotations *annotation.Set

	concepts *omap.Map[*Concept]
}

// New returns an empty [Domain] named name.
func New(name string) *Domain {
	return &Domain{Name: name, concepts: omap.New[*Concept]()}
}

// AddConcept registers c, unresolved, under c.Name. It must be called for
// every concept before [ResolveDomain] runs, since extends/identifiedBy
// references may point forward or backward within the same domain pass —
// ResolveDomain resolves them lazily, caching results, so declaration order
// of concepts relative to each other does not matter (unlike compound types
// and concept types, which are strictly forward-only).
func (d *Domain) AddConcept(c *Concept) bool {
	return d.concepts.SetUnique(c.Name, c)
}

// Concept returns the concept registered under name.
func (d *Domain) Concept(name string) (*Concept, bool) {
	return d.concepts.Get(name)
}

// Concepts returns this domain's concepts in declaration order.
func (d *Domain) Concepts() []*Concept {
	return d.concepts.Values()
}

// ResolveDomain builds every concept's ColumnSet in the 4-step order of
// spec.md §4.6: concept-type column-sets (declaration order), the extends
// parent's fully merged column-set, identifiedBy's prefixed id-columns,
// then locally declared columns. conceptTypes resolves a "based on" name to
// its merged column-set (via [concepttype.Registry.Resolve]).
func ResolveDomain(d *Domain, conceptTypes *concepttype.Registry) error {
	resolving := make(map[string]bool)
	resolved := make(map[string]bool)

	var resolve func(c *Concept) error

	resolve = func(c *Concept) error {
		if resolved[c.Name] {
			return nil
		}

		if resolving[c.Name] {
			return fmt.Errorf("%w: extends cycle at %s", ErrUnknownReference, c.Name)
		}

		resolving[c.Name] = true
		defer delete(resolving, c.Name)

		merged := column.NewColumnSet()

		// Step 1: concept-type column-sets, in declaration order.
		for _, typeName := range c.BasedOn {
			_, typeColumns, err := conceptTypes.Resolve(typeName)
			if err != nil {
				return fmt.Errorf("%s: based on: %w", c.Name, err)
			}

			if err := mergeInto(merged, typeColumns.Columns()); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}

		// Step 2: extends parent's fully merged column-set.
		if c.Extends != "" {
			parent, ok := d.concepts.Get(c.Extends)
			if !ok {
				return fmt.Errorf("%w: %s extends %s", ErrUnknownReference, c.Name, c.Extends)
			}

			if err := resolve(parent); err != nil {
				return err
			}

			if err := mergeInto(merged, parent.ColumnSet.Columns()); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}

		// Step 3: identifiedBy id-columns, prefixed.
		if c.IdentifiedBy != "" {
			idConcept, ok := d.concepts.Get(c.IdentifiedBy)
			if !ok {
				return fmt.Errorf("%w: %s identifiedBy %s", ErrUnknownReference, c.Name, c.IdentifiedBy)
			}

			if err := resolve(idConcept); err != nil {
				return err
			}

			for _, idCol := range idConcept.ColumnSet.Identifiers() {
				prefixed := &column.Column{
					Name:        c.IDPrefix + idCol.Name,
					Description: idCol.Description,
					Annotations: idCol.Annotations,
					Type:        widenToRequired(idCol.Type),
					RefConcept:  idConcept.Name,
					RefColumn:   idCol.Name,
				}

				if err := mergeInto(merged, []*column.Column{prefixed}); err != nil {
					return fmt.Errorf("%s: %w", c.Name, err)
				}
			}
		}

		// Step 4: locally declared columns.
		if c.Own != nil {
			if err := mergeInto(merged, c.Own.Columns()); err != nil {
				return fmt.Errorf("%s: %w", c.Name, err)
			}
		}

		c.ColumnSet = merged
		resolved[c.Name] = true

		return nil
	}

	for _, c := range d.concepts.Values() {
		if err := resolve(c); err != nil {
			return err
		}
	}

	return nil
}

// widenToRequired returns a copy of ct with its usage cleared from idref to
// required — the origin column's own usage is untouched, since this is used
// only for the copy injected onto the importing concept (spec.md §4.6).
func widenToRequired(ct *column.ColumnType) *column.ColumnType {
	if ct == nil {
		return nil
	}

	cp := *ct
	if cp.Usage == column.UsageIDRef {
		cp.Usage = column.UsageRequired
	}

	return &cp
}

// mergeInto adds cols to dst, applying the same-name widening-override rule
// the compound/concepttype resolvers use.
func mergeInto(dst *column.ColumnSet, cols []*column.Column) error {
	for _, col := range cols {
		existing, ok := dst.Get(col.Name)
		if !ok {
			if err := dst.Add(col); err != nil {
				return fmt.Errorf("%w: %w", ErrColumnConflict, err)
			}

			continue
		}

		if existing.Type == nil || col.Type == nil || !existing.Type.Usage.Widens(col.Type.Usage) {
			return fmt.Errorf("%w: %s", ErrColumnConflict, col.Name)
		}

		dst.Replace(col)
	}

	return nil
}

// Package fk implements the related-concept / foreign-key propagator (C9):
// the second pass, run after every domain has been through
// [go.bpmodel.dev/model/domain.ResolveDomain], that injects prefixed
// identifier columns for each concept's related-concepts, possibly
// reaching across domains.
package fk

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/domain"
)

// Error kinds returned by this package.
var (
	// ErrUnknownReference means a related-concept named a domain or
	// concept that does not exist.
	ErrUnknownReference = errors.New("fk: unknown reference")

	// ErrColumnConflict means synthesizing a foreign-key column collided
	// with an existing, unrelated column of the same name.
	ErrColumnConflict = errors.New("fk: column conflict")
)

// DomainLookup resolves a domain by name, used to find a related-concept's
// target when it names a domain other than the source's own.
type DomainLookup func(name string) (*domain.Domain, bool)

// Propagate walks every domain's concepts' related-concepts and, for each,
// synthesizes the target's prefixed identifier columns on the source
// concept (spec.md §4.7). It must run after every domain named by
// domains/lookup has completed [domain.ResolveDomain].
//
// Propagate is idempotent (P5): re-running it after a first successful run
// detects, for each related-concept, that the synthesized columns already
// exist with matching RefConcept/RefColumn back-references and leaves them
// untouched rather than re-adding or duplicating them.
func Propagate(domains []*domain.Domain, lookup DomainLookup) error {
	for _, d := range domains {
		for _, c := range d.Concepts() {
			for _, rel := range c.RelatedConcepts {
				if err := propagateOne(d, c, rel, lookup); err != nil {
					return fmt.Errorf("%s.%s: %w", d.Name, c.Name, err)
				}
			}
		}
	}

	return nil
}

func propagateOne(src *domain.Domain, c *domain.Concept, rel *domain.RelatedConcept, lookup DomainLookup) error {
	targetDomain := src

	if rel.TargetDomain != "" && rel.TargetDomain != src.Name {
		d, ok := lookup(rel.TargetDomain)
		if !ok {
			return fmt.Errorf("%w: domain %s", ErrUnknownReference, rel.TargetDomain)
		}

		targetDomain = d
	}

	target, ok := targetDomain.Concept(rel.TargetConcept)
	if !ok {
		return fmt.Errorf("%w: concept %s.%s", ErrUnknownReference, targetDomain.Name, rel.TargetConcept)
	}

	var fkColumns []*column.Column

	for _, idCol := range target.ColumnSet.Identifiers() {
		name := rel.KeyPrefix + idCol.Name

		if existing, ok := c.ColumnSet.Get(name); ok {
			if existing.RefConcept == target.Name && existing.RefColumn == idCol.Name {
				fkColumns = append(fkColumns, existing)

				continue
			}

			return fmt.Errorf("%w: %s", ErrColumnConflict, name)
		}

		fkCol := &column.Column{
			Name:        name,
			Description: idCol.Description,
			Annotations: idCol.Annotations,
			Type:        widenToRequired(idCol.Type),
			RefConcept:  target.Name,
			RefColumn:   idCol.Name,
		}

		if err := c.ColumnSet.Add(fkCol); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrColumnConflict, name, err)
		}

		fkColumns = append(fkColumns, fkCol)
	}

	rel.Resolved = target
	rel.RefColumns = fkColumns

	return nil
}

// widenToRequired returns a copy of ct with idref usage cleared to
// required; mirrors domain.widenToRequired since that helper is unexported
// and the two packages model the same "import an id-column" operation on
// either side of a chain link (weak-entity prefix vs. related-concept
// prefix).
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

package bpmodel

import (
	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/archive"
	"go.bpmodel.dev/model/compound"
	"go.bpmodel.dev/model/concepttype"
	"go.bpmodel.dev/model/cv"
	"go.bpmodel.dev/model/domain"
	"go.bpmodel.dev/model/filename"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/pattern"
)

// Model is the resolved, invariant-checked, content-addressed in-memory
// model: the single type everything in this module ultimately builds or
// reads. It is built exclusively by [Load]/[LoadArchive] and frozen
// thereafter — every other entity in the tree is owned by exactly one of
// its registries and referenced elsewhere by name, never by a cyclic
// pointer graph (spec.md §3 "Lifecycle and ownership").
type Model struct {
	Project     string
	SchemaVer   string
	Annotations *annotation.Set

	// MetadataCollection names the collection the backend projector
	// writes model/domain/concept/CV documents into. Empty if the model
	// declares none.
	MetadataCollection string

	Digests archive.Digests

	Collections   *omap.Map[*Collection]
	Patterns      *pattern.Registry
	CompoundTypes *compound.Registry
	ConceptTypes  *concepttype.Registry
	CVs           *omap.Map[*cv.CV]
	NullCV        *cv.CV
	Domains       *omap.Map[*domain.Domain]
	Filenames     *filename.Registry

	// skipCVParse records [WithSkipCVParse] for [Model.SkipCVParse] to
	// report; no load or validation step reads it.
	skipCVParse bool
}

// newModel returns an empty Model with every registry initialized and
// ready for the loader to populate.
func newModel() *Model {
	return &Model{
		Annotations:   annotation.NewSet(),
		Collections:   omap.New[*Collection](),
		Patterns:      pattern.New(),
		CompoundTypes: compound.New(),
		ConceptTypes:  concepttype.New(),
		CVs:           omap.New[*cv.CV](),
		Domains:       omap.New[*domain.Domain](),
		Filenames:     filename.New(),
	}
}

// Option configures [Load] and [LoadArchive].
type Option func(*Model)

// WithSkipCVParse marks the model as loaded in skip-CV-parse mode, which
// [Model.SkipCVParse] reports. The loader never fetches the content of a
// CV that only carries reference URIs, with or without this option, and
// [cv.CV.Validate] against such a CV still returns [cv.ErrUnresolved].
func WithSkipCVParse() Option {
	return func(m *Model) { m.skipCVParse = true }
}

// LookupCV resolves a CV by name against this model's registry — the
// function every [cv.CV.Validate] call on this model's CVs is given to
// chase UnionOf (Meta-CV) references.
func (m *Model) LookupCV(name string) (*cv.CV, bool) {
	return m.CVs.Get(name)
}

// IsValidNull reports whether v is one of the model's null-sentinel CV's
// term keys.
func (m *Model) IsValidNull(v string) bool {
	if m.NullCV == nil {
		return false
	}

	return m.NullCV.Validate(v, m.LookupCV) == nil
}

// Domain returns the concept-domain registered under name.
func (m *Model) Domain(name string) (*domain.Domain, bool) {
	return m.Domains.Get(name)
}

// Concept looks up a concept by (domain-name, concept-name).
func (m *Model) Concept(domainName, conceptName string) (*domain.Concept, bool) {
	d, ok := m.Domains.Get(domainName)
	if !ok {
		return nil, false
	}

	return d.Concept(conceptName)
}

// Collection returns the collection registered under name.
func (m *Model) Collection(name string) (*Collection, bool) {
	return m.Collections.Get(name)
}

// SkipCVParse reports whether this model was loaded with
// [WithSkipCVParse].
func (m *Model) SkipCVParse() bool {
	return m.skipCVParse
}

package bpmodel

import (
	"errors"
	"fmt"
	"os"

	"go.bpmodel.dev/model/archive"
	"go.bpmodel.dev/model/domain"
	"go.bpmodel.dev/model/fk"
	"go.bpmodel.dev/model/xmlnode"
)

// Load opens path as a standalone XML model document (spec.md §4.1
// "Plain"), validates it against the bundled meta-schema, resolves every
// internal reference (C3-C10), checks every invariant of spec.md §3, and
// returns the fully linked [Model]. It either returns a complete Model or a
// single error; no partially built Model is ever observable (spec.md §5).
func Load(path string, opts ...Option) (*Model, error) {
	src, err := archive.OpenPlain(path)
	if err != nil {
		return nil, mapArchiveErr(err)
	}
	defer src.Close()

	return loadFromSource(src, opts...)
}

// LoadArchive opens path as a sealed packaged-model ZIP archive (spec.md
// §4.1 "Packaged", §6.1), verifying schemaSHA1 and modelSHA1 immediately
// and cvSHA1 once every external CV member the load needs has been read. A
// digest mismatch anywhere is reported as [ErrCorruptArchive].
func LoadArchive(path string, opts ...Option) (*Model, error) {
	src, err := archive.OpenPackaged(path)
	if err != nil {
		return nil, mapArchiveErr(err)
	}
	defer src.Close()

	if src.SchemaPath != "" {
		defer os.Remove(src.SchemaPath)
	}

	m, err := loadFromSource(src, opts...)
	if err != nil {
		return nil, err
	}

	if err := src.VerifyCVDigest(); err != nil {
		return nil, mapArchiveErr(err)
	}

	m.Digests = src.Digests()

	return m, nil
}

// loadFromSource drives the pipeline of SPEC_FULL.md §2 over an already
// opened [archive.Source]: C1 validates, then C4 (named patterns) and C5
// (CVs) both run early since every later registry's column restrictions may
// reference them, then C6 (compound types), C7 (concept types), C8 (concept
// domains), C9 (FK propagation, a second pass over C8's output), and
// finally C10 (filename patterns). checkInvariants runs last, over the
// complete, frozen graph.
func loadFromSource(src *archive.Source, opts ...Option) (*Model, error) {
	root, err := xmlnode.ValidateBytes(src.ModelBytes)
	if err != nil {
		return nil, mapXMLNodeErr(err)
	}

	m := newModel()

	for _, opt := range opts {
		opt(m)
	}

	m.Project, _ = root.Attr("project")
	m.SchemaVer, _ = root.Attr("schemaVer")
	m.MetadataCollection, _ = root.Attr("metadataCollection")

	if a, ok := root.Child("annotations"); ok {
		m.Annotations = parseAnnotations(a)
	}

	m.Collections, err = buildCollections(root)
	if err != nil {
		return nil, err
	}

	m.Patterns, err = buildPatterns(root)
	if err != nil {
		return nil, err
	}

	m.CVs, err = buildCVs(root, src.OpenCV)
	if err != nil {
		return nil, err
	}

	m.NullCV, err = buildNullCV(root)
	if err != nil {
		return nil, err
	}

	m.CompoundTypes, err = buildCompoundTypes(root)
	if err != nil {
		return nil, err
	}

	m.ConceptTypes, err = buildConceptTypes(root)
	if err != nil {
		return nil, err
	}

	m.Domains, err = buildDomains(root)
	if err != nil {
		return nil, err
	}

	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)

		if err := domain.ResolveDomain(d, m.ConceptTypes); err != nil {
			return nil, mapDomainErr(err)
		}
	}

	lookup := fk.DomainLookup(func(name string) (*domain.Domain, bool) { return m.Domains.Get(name) })

	if err := fk.Propagate(m.Domains.Values(), lookup); err != nil {
		return nil, mapFKErr(err)
	}

	m.Filenames, err = buildFilenamePatterns(root)
	if err != nil {
		return nil, err
	}

	if err := checkInvariants(m); err != nil {
		return nil, err
	}

	m.Digests = src.Digests()

	return m, nil
}

// mapArchiveErr maps an archive-package error to the model-wide error
// kinds of §7.
func mapArchiveErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, archive.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	case errors.Is(err, archive.ErrIO):
		return fmt.Errorf("%w: %w", ErrIOError, err)
	case errors.Is(err, archive.ErrDuplicateName):
		return fmt.Errorf("%w: %w", ErrDuplicateName, err)
	default:
		return err
	}
}

// mapXMLNodeErr maps an xmlnode-package error to the model-wide error kinds
// of §7.
func mapXMLNodeErr(err error) error {
	if errors.Is(err, xmlnode.ErrViolation) {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}

	return fmt.Errorf("%w: %w", ErrIOError, err)
}

// mapDomainErr maps a domain-package error to the model-wide error kinds of
// §7.
func mapDomainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrColumnConflict):
		return fmt.Errorf("%w: %w", ErrColumnConflict, err)
	case errors.Is(err, domain.ErrUnknownReference):
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	default:
		return err
	}
}

// mapFKErr maps an fk-package error to the model-wide error kinds of §7.
func mapFKErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fk.ErrColumnConflict):
		return fmt.Errorf("%w: %w", ErrColumnConflict, err)
	case errors.Is(err, fk.ErrUnknownReference):
		return fmt.Errorf("%w: %w", ErrUnknownReference, err)
	default:
		return err
	}
}

// Package project implements the backend-neutral half of the backend
// projector (C11): it walks a resolved [go.bpmodel.dev/model/bpmodel.Model] and
// produces the hierarchical, backend-neutral structured form of spec.md
// §6.5 — a plain Go value tree that [go.bpmodel.dev/model/project/docstore]
// and [go.bpmodel.dev/model/project/searchindex] each turn into their own
// backend-native schema objects.
//
// Serialize never mutates the Model it walks (spec.md §5: "the core never
// mutates the Model after load returns").
package project

import (
	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/bpmodel"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/compound"
	"go.bpmodel.dev/model/cv"
	"go.bpmodel.dev/model/domain"
)

// Document is the top-level serialized shape of spec.md §6.5: project name,
// schema version, global annotations, collections keyed by path, and
// concept-domains keyed by name.
type Document struct {
	Project     string
	SchemaVer   string
	Annotations map[string]string
	Collections   map[string]*CollectionDoc   // keyed by path
	Domains       map[string]*DomainDoc       // keyed by name
	CVs           map[string]*CVDoc           // keyed by CV name, flattened for backend consumption
	CompoundTypes map[string]*CompoundTypeDoc // keyed by name, for nested-field projection
}

// CompoundTypeDoc mirrors [compound.Type]: its name and column set, used by
// [go.bpmodel.dev/model/project/searchindex] to build a nested sub-document
// field schema for any column restricted to this compound type.
type CompoundTypeDoc struct {
	Name    string
	Columns []ColumnDoc
}

// CollectionDoc mirrors [bpmodel.Collection]: its indices, serialized
// independent of any backend's index-creation API.
type CollectionDoc struct {
	Name    string
	Path    string
	Indices []IndexDoc
}

// IndexDoc mirrors [bpmodel.Index].
type IndexDoc struct {
	Unique  bool
	Columns []IndexColumnDoc
}

// IndexColumnDoc is one (column, direction) pair of an [IndexDoc].
type IndexColumnDoc struct {
	Column    string
	Direction int
}

// DomainDoc mirrors [domain.Domain]: its concepts, in declaration order.
type DomainDoc struct {
	Name        string
	FullName    string
	Abstract    bool
	Description string
	Annotations map[string]string
	Concepts    []*ConceptDoc
}

// ConceptDoc is one concept, serialized per spec.md §6.5: "_id, name,
// fullname, description, annotations, columns, and optional extends,
// identifiedBy, relatedTo (deduplicated list of target concept ids)".
type ConceptDoc struct {
	ID           string // domainName.conceptName, the metadata-collection document key
	Name         string
	FullName     string
	Description  string
	Annotations  map[string]string
	Columns      []ColumnDoc
	Extends      string
	IdentifiedBy string
	RelatedTo    []string // deduplicated target concept ids, in first-seen order
	Collection   string
}

// ColumnDoc is one column, name plus its [ColumnTypeDoc].
type ColumnDoc struct {
	Name        string
	Description string
	Type        ColumnTypeDoc
}

// ColumnTypeDoc mirrors spec.md §6.5's column-type shape: "type, use,
// isArray, optional default/defaultCol, and at most one of cv (CV _id),
// columns (compound), or pattern".
type ColumnTypeDoc struct {
	Type    string
	Use     string
	IsArray bool

	DefaultLiteral string // non-empty (or explicitly present) when the default is a literal
	HasDefault     bool
	DefaultCol     string // non-empty when the default names a sibling column

	CV       string // CV _id, when the restriction is a CV
	Pattern  string // named pattern, when the restriction is a pattern
	Compound string // compound-type name, when the restriction is a compound type
}

// CVDoc mirrors spec.md §6.5's CV-term shape at the CV level: its own
// terms plus, for a Meta-CV, the union-flattened effective term set so a
// backend that has no native "union of other collections" concept can
// still serve validation directly from this document.
type CVDoc struct {
	ID          string
	Name        string
	Description string
	Annotations map[string]string
	UnionOf     []string
	Terms       []TermDoc
}

// TermDoc mirrors spec.md §6.5: "_id, term, name, optional alt-id, and
// either alias+union-of or parents+ancestors".
type TermDoc struct {
	ID        string
	Term      string
	Name      string
	AltID     []string
	IsAlias   bool
	UnionOf   []string // meaningful only when IsAlias
	Parents   []string
	Ancestors []string
}

// CVSegment is one fragment of an oversize CV split by
// [go.bpmodel.dev/model/project/docstore.FragmentCV] per spec.md §4.9: the
// first segment of a split carries ID/Description/Annotations/NumSegments,
// every later segment omits them but repeats Name and CorrelationID.
type CVSegment struct {
	ID            string // non-empty only on the first segment
	Name          string
	Description   string            // non-empty only on the first segment
	Annotations   map[string]string // non-nil only on the first segment
	NumSegments   int               // set only on the first segment
	CorrelationID string            // the first segment's ID, repeated on every segment
	Terms         []TermDoc
}

// Serialize walks m and produces the backend-neutral [Document] of spec.md
// §6.5. A Meta-CV's union-of members are flattened into one effective term
// list by resolving them through m.LookupCV.
func Serialize(m *bpmodel.Model) *Document {
	doc := &Document{
		Project:       m.Project,
		SchemaVer:     m.SchemaVer,
		Annotations:   flattenAnnotations(m.Annotations),
		Collections:   make(map[string]*CollectionDoc, m.Collections.Len()),
		Domains:       make(map[string]*DomainDoc, m.Domains.Len()),
		CVs:           make(map[string]*CVDoc, m.CVs.Len()),
		CompoundTypes: make(map[string]*CompoundTypeDoc, len(m.CompoundTypes.Names())),
	}

	for _, name := range m.Collections.Keys() {
		c, _ := m.Collections.Get(name)
		doc.Collections[c.Path] = serializeCollection(c)
	}

	for _, dname := range m.Domains.Keys() {
		d, _ := m.Domains.Get(dname)
		doc.Domains[dname] = serializeDomain(d)
	}

	for _, name := range m.CVs.Keys() {
		c, _ := m.CVs.Get(name)
		doc.CVs[name] = serializeCV(c, m.LookupCV)
	}

	for _, name := range m.CompoundTypes.Names() {
		t, _ := m.CompoundTypes.Lookup(name)
		doc.CompoundTypes[name] = serializeCompoundType(t)
	}

	return doc
}

func serializeCompoundType(t *compound.Type) *CompoundTypeDoc {
	out := &CompoundTypeDoc{Name: t.Name}

	for _, col := range t.Columns.Columns() {
		out.Columns = append(out.Columns, serializeColumn(col))
	}

	return out
}

func serializeCollection(c *bpmodel.Collection) *CollectionDoc {
	out := &CollectionDoc{Name: c.Name, Path: c.Path}

	for _, idx := range c.Indices {
		id := IndexDoc{Unique: idx.Unique}

		for _, ic := range idx.Columns {
			id.Columns = append(id.Columns, IndexColumnDoc{Column: ic.Column, Direction: int(ic.Direction)})
		}

		out.Indices = append(out.Indices, id)
	}

	return out
}

func serializeDomain(d *domain.Domain) *DomainDoc {
	out := &DomainDoc{
		Name:        d.Name,
		FullName:    d.FullName,
		Abstract:    d.Abstract,
		Description: d.Description,
		Annotations: flattenAnnotations(d.Annotations),
	}

	for _, c := range d.Concepts() {
		out.Concepts = append(out.Concepts, serializeConcept(d.Name, c))
	}

	return out
}

func serializeConcept(domainName string, c *domain.Concept) *ConceptDoc {
	out := &ConceptDoc{
		ID:           domainName + "." + c.Name,
		Name:         c.Name,
		FullName:     c.FullName,
		Description:  c.Description,
		Annotations:  flattenAnnotations(c.Annotations),
		Extends:      c.Extends,
		IdentifiedBy: c.IdentifiedBy,
		Collection:   c.Collection,
	}

	for _, col := range c.ColumnSet.Columns() {
		out.Columns = append(out.Columns, serializeColumn(col))
	}

	seen := make(map[string]bool, len(c.RelatedConcepts))

	for _, rel := range c.RelatedConcepts {
		if rel.Resolved == nil {
			continue
		}

		target := rel.Resolved.Name
		if rel.TargetDomain != "" {
			target = rel.TargetDomain + "." + target
		} else {
			target = domainName + "." + target
		}

		if seen[target] {
			continue
		}

		seen[target] = true
		out.RelatedTo = append(out.RelatedTo, target)
	}

	return out
}

func serializeColumn(col *column.Column) ColumnDoc {
	out := ColumnDoc{Name: col.Name, Description: col.Description}

	if col.Type == nil {
		return out
	}

	ct := ColumnTypeDoc{
		Type:    string(col.Type.Primitive),
		Use:     col.Type.Usage.String(),
		IsArray: col.Type.IsArray(),
	}

	if d := col.Type.Default; d != nil {
		ct.HasDefault = true

		if d.IsLiteral() {
			ct.DefaultLiteral = d.Literal.String()
		} else {
			ct.DefaultCol = d.ColumnName
		}
	}

	if r := col.Type.Restriction; r != nil {
		switch r.Kind {
		case column.RestrictionCV:
			ct.CV = r.Name
		case column.RestrictionPattern:
			ct.Pattern = r.Name
		case column.RestrictionCompound:
			ct.Compound = r.Name
		}
	}

	out.Type = ct

	return out
}

func serializeCV(c *cv.CV, resolve func(string) (*cv.CV, bool)) *CVDoc {
	out := &CVDoc{
		ID:          c.Name,
		Name:        c.Name,
		Description: c.Description,
		Annotations: flattenAnnotations(c.Annotations),
		UnionOf:     c.UnionOf,
	}

	out.Terms = flattenTerms(c, resolve, make(map[string]bool))

	return out
}

// flattenTerms returns c's effective term set, in declaration order,
// chasing UnionOf for a Meta-CV. seen prevents infinite recursion and
// duplicate emission if two union members share a term key.
func flattenTerms(c *cv.CV, resolve func(string) (*cv.CV, bool), seen map[string]bool) []TermDoc {
	if len(c.UnionOf) > 0 {
		var out []TermDoc

		for _, member := range c.UnionOf {
			target, ok := resolve(member)
			if !ok {
				continue
			}

			out = append(out, flattenTerms(target, resolve, seen)...)
		}

		return out
	}

	var out []TermDoc

	for _, key := range c.Keys() {
		if seen[key] {
			continue
		}

		seen[key] = true

		t, _ := c.Lookup(key)
		out = append(out, serializeTerm(c, t))
	}

	return out
}

func serializeTerm(c *cv.CV, t *cv.Term) TermDoc {
	out := TermDoc{
		ID:      t.Key,
		Term:    t.Key,
		Name:    t.Name,
		AltID:   t.AltKeys,
		IsAlias: t.IsAlias,
	}

	if t.IsAlias {
		out.UnionOf = t.Parents

		return out
	}

	out.Parents = t.Parents

	if ancestors, err := c.Ancestors(t.Key); err == nil {
		out.Ancestors = ancestors
	}

	return out
}

func flattenAnnotations(set *annotation.Set) map[string]string {
	if set == nil || set.Len() == 0 {
		return nil
	}

	names := set.Names()
	out := make(map[string]string, len(names))

	for _, n := range names {
		v, ok := set.Get(n)
		if !ok {
			continue
		}

		out[n] = v.String()
	}

	return out
}

package bpmodel

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/archive"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/compound"
	"go.bpmodel.dev/model/concepttype"
	"go.bpmodel.dev/model/cv"
	"go.bpmodel.dev/model/cv/termfile"
	"go.bpmodel.dev/model/domain"
	"go.bpmodel.dev/model/filename"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/pattern"
	"go.bpmodel.dev/model/xmlnode"
)

// Emit serializes m back into a bp-model.xml document, the inverse of the
// build_*.go parsers this package loads with. It is the half of round-trip
// property P3 (`load(emit(M)) == M`) that does not depend on archive
// packaging; [Pack] builds on it to produce a full packaged archive.
func Emit(m *Model) ([]byte, error) {
	return xmlnode.EncodeTree(emitModel(m))
}

// Pack serializes m and packages it as a sealed archive per spec.md §6.1,
// writing it to w. schemaXSD is the raw bytes of the meta-schema document m
// was originally validated against — Model does not retain them after
// [Load]/[LoadArchive] returns (only the digest survives, on m.Digests), so
// the caller must supply them again.
func Pack(m *Model, schemaXSD []byte, srcModTime time.Time, w io.Writer) error {
	modelXML, err := Emit(m)
	if err != nil {
		return err
	}

	cvFiles, err := emitExternalCVFiles(m.CVs)
	if err != nil {
		return err
	}

	in := archive.EmitInput{
		ModelXML:   modelXML,
		SchemaXSD:  schemaXSD,
		CVFiles:    cvFiles,
		SrcModTime: srcModTime,
	}

	if err := archive.Emit(in, w); err != nil {
		return mapArchiveErr(err)
	}

	return nil
}

// emitExternalCVFiles re-serializes every externally-file-backed CV's
// in-memory term set back to the line-oriented format of §6.4, so a
// packaged archive built by Pack carries equivalent (if not byte-identical)
// content to what it was loaded from. Files are returned in declaration
// order, the order a later load reads them in, so the cvSHA1 written by
// [archive.Emit] matches the one [LoadArchive] recomputes.
func emitExternalCVFiles(cvs *omap.Map[*cv.CV]) ([]archive.CVFile, error) {
	var files []archive.CVFile

	for _, name := range cvs.Keys() {
		c, _ := cvs.Get(name)
		if c.ExternalFile == "" {
			continue
		}

		terms := make([]termfile.Term, 0, c.Len())

		for _, key := range c.Keys() {
			t, _ := c.Lookup(key)
			terms = append(terms, termfile.Term{Key: t.Key, AltKeys: t.AltKeys, Name: t.Name, Parents: t.Parents, IsAlias: t.IsAlias})
		}

		var buf strings.Builder

		if err := termfile.Write(&buf, terms); err != nil {
			return nil, fmt.Errorf("%w: cv %s: %w", ErrIOError, name, err)
		}

		_, ext := splitExt(c.ExternalFile)
		files = append(files, archive.CVFile{Name: name, Ext: ext, Data: []byte(buf.String())})
	}

	return files, nil
}

func splitExt(path string) (base, ext string) {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return path, ""
	}

	return path[:idx], path[idx+1:]
}

func newNode(name string) *xmlnode.Node {
	return &xmlnode.Node{XMLName: name, Attrs: make(map[string]string)}
}

func setAttr(n *xmlnode.Node, key, value string) {
	if value == "" {
		return
	}

	if _, exists := n.Attrs[key]; !exists {
		n.AttrKeys = append(n.AttrKeys, key)
	}

	n.Attrs[key] = value
}

func textNode(name, text string) *xmlnode.Node {
	n := newNode(name)
	n.Text = text

	return n
}

func emitModel(m *Model) *xmlnode.Node {
	root := newNode("model")
	setAttr(root, "project", m.Project)
	setAttr(root, "schemaVer", m.SchemaVer)
	setAttr(root, "metadataCollection", m.MetadataCollection)

	if m.Annotations != nil && m.Annotations.Len() > 0 {
		root.Children = append(root.Children, emitAnnotations(m.Annotations))
	}

	if m.Collections.Len() > 0 {
		root.Children = append(root.Children, emitCollections(m))
	}

	if len(m.Patterns.Names()) > 0 {
		root.Children = append(root.Children, emitPatterns(m.Patterns))
	}

	if m.CVs.Len() > 0 {
		root.Children = append(root.Children, emitCVDeclarations(m))
	}

	if m.NullCV != nil && m.NullCV.Len() > 0 {
		root.Children = append(root.Children, emitNullValues(m.NullCV))
	}

	if len(m.CompoundTypes.Names()) > 0 {
		root.Children = append(root.Children, emitCompoundTypes(m.CompoundTypes))
	}

	if len(m.ConceptTypes.Names()) > 0 {
		root.Children = append(root.Children, emitConceptTypes(m.ConceptTypes))
	}

	if m.Domains.Len() > 0 {
		root.Children = append(root.Children, emitConceptDomains(m))
	}

	if len(m.Filenames.Names()) > 0 {
		root.Children = append(root.Children, emitFilenamePatterns(m.Filenames))
	}

	return root
}

func emitAnnotations(set *annotation.Set) *xmlnode.Node {
	n := newNode("annotations")

	for _, name := range set.Names() {
		v, _ := set.Get(name)

		a := newNode("annotation")
		setAttr(a, "name", name)
		a.Text = v.String()

		n.Children = append(n.Children, a)
	}

	return n
}

func emitCollections(m *Model) *xmlnode.Node {
	n := newNode("collections")

	for _, name := range m.Collections.Keys() {
		c, _ := m.Collections.Get(name)

		cn := newNode("collection")
		setAttr(cn, "name", c.Name)
		setAttr(cn, "path", c.Path)

		for _, idx := range c.Indices {
			cn.Children = append(cn.Children, emitIndex(idx))
		}

		n.Children = append(n.Children, cn)
	}

	return n
}

func emitIndex(idx *Index) *xmlnode.Node {
	n := newNode("index")

	if idx.Unique {
		setAttr(n, "unique", "true")
	}

	specs := make([]string, 0, len(idx.Columns))

	for _, c := range idx.Columns {
		dir := "+1"
		if c.Direction == Descending {
			dir = "-1"
		}

		specs = append(specs, c.Column+":"+dir)
	}

	setAttr(n, "columns", strings.Join(specs, ","))

	return n
}

func emitPatterns(reg *pattern.Registry) *xmlnode.Node {
	n := newNode("pattern-declarations")

	for _, name := range reg.Names() {
		re, _ := reg.Lookup(name)

		pn := newNode("pattern")
		setAttr(pn, "name", name)
		setAttr(pn, "regex", re.String())

		n.Children = append(n.Children, pn)
	}

	return n
}

func emitCVDeclarations(m *Model) *xmlnode.Node {
	n := newNode("cv-declarations")

	for _, name := range m.CVs.Keys() {
		c, _ := m.CVs.Get(name)
		n.Children = append(n.Children, emitCV(c))
	}

	return n
}

func emitCV(c *cv.CV) *xmlnode.Node {
	n := newNode("cv")
	setAttr(n, "id", c.Name)

	if len(c.UnionOf) > 0 {
		for _, member := range c.UnionOf {
			n.Children = append(n.Children, textNode("union-cv", member))
		}

		return n
	}

	if c.IsUnresolved() {
		for _, uri := range c.URIs {
			n.Children = append(n.Children, textNode("cv-uri", uri))
		}

		return n
	}

	if c.Description != "" {
		n.Children = append(n.Children, textNode("description", c.Description))
	}

	if c.Annotations != nil && c.Annotations.Len() > 0 {
		n.Children = append(n.Children, emitAnnotations(c.Annotations))
	}

	if c.ExternalFile != "" {
		setAttr(n, "file", c.ExternalFile)

		return n
	}

	for _, key := range c.Keys() {
		t, _ := c.Lookup(key)
		n.Children = append(n.Children, emitTerm(t))
	}

	return n
}

func emitTerm(t *cv.Term) *xmlnode.Node {
	n := newNode("term")
	setAttr(n, "key", t.Key)
	setAttr(n, "name", t.Name)

	if len(t.AltKeys) > 0 {
		setAttr(n, "altKeys", strings.Join(t.AltKeys, ","))
	}

	if len(t.Parents) > 0 {
		setAttr(n, "parents", strings.Join(t.Parents, ","))
	}

	if t.IsAlias {
		setAttr(n, "alias", "true")
	}

	if t.Annotations != nil && t.Annotations.Len() > 0 {
		n.Children = append(n.Children, emitAnnotations(t.Annotations))
	}

	return n
}

func emitNullValues(nullCV *cv.CV) *xmlnode.Node {
	n := newNode("null-values")

	for _, key := range nullCV.Keys() {
		t, _ := nullCV.Lookup(key)
		n.Children = append(n.Children, emitTerm(t))
	}

	return n
}

func emitCompoundTypes(reg *compound.Registry) *xmlnode.Node {
	n := newNode("compound-types")

	for _, name := range reg.Names() {
		t, _ := reg.Lookup(name)

		tn := newNode("compound-type")
		setAttr(tn, "name", t.Name)
		tn.Children = append(tn.Children, emitColumnSet(t.Columns)...)

		n.Children = append(n.Children, tn)
	}

	return n
}

func emitConceptTypes(reg *concepttype.Registry) *xmlnode.Node {
	n := newNode("concept-types")

	for _, name := range reg.Names() {
		t, _ := reg.Lookup(name)

		tn := newNode("concept-type")
		setAttr(tn, "name", t.Name)
		setAttr(tn, "extends", t.Parent)
		setAttr(tn, "collection", t.Collection)
		tn.Children = append(tn.Children, emitColumnSet(t.Columns)...)

		n.Children = append(n.Children, tn)
	}

	return n
}

func emitConceptDomains(m *Model) *xmlnode.Node {
	n := newNode("concept-domains")

	for _, name := range m.Domains.Keys() {
		d, _ := m.Domains.Get(name)
		n.Children = append(n.Children, emitConceptDomain(d))
	}

	return n
}

func emitConceptDomain(d *domain.Domain) *xmlnode.Node {
	n := newNode("concept-domain")
	setAttr(n, "name", d.Name)
	setAttr(n, "fullname", d.FullName)

	if d.Abstract {
		setAttr(n, "abstract", "true")
	}

	if d.Description != "" {
		n.Children = append(n.Children, textNode("description", d.Description))
	}

	if d.Annotations != nil && d.Annotations.Len() > 0 {
		n.Children = append(n.Children, emitAnnotations(d.Annotations))
	}

	for _, c := range d.Concepts() {
		n.Children = append(n.Children, emitConcept(c))
	}

	return n
}

func emitConcept(c *domain.Concept) *xmlnode.Node {
	n := newNode("concept")
	setAttr(n, "name", c.Name)
	setAttr(n, "fullname", c.FullName)
	setAttr(n, "extends", c.Extends)
	setAttr(n, "identifiedBy", c.IdentifiedBy)
	setAttr(n, "idPrefix", c.IDPrefix)
	setAttr(n, "collection", c.Collection)

	if len(c.BasedOn) > 0 {
		setAttr(n, "basedOn", strings.Join(c.BasedOn, ","))
	}

	if c.Description != "" {
		n.Children = append(n.Children, textNode("description", c.Description))
	}

	if c.Annotations != nil && c.Annotations.Len() > 0 {
		n.Children = append(n.Children, emitAnnotations(c.Annotations))
	}

	if c.Own != nil {
		n.Children = append(n.Children, emitColumnSet(c.Own)...)
	}

	for _, rel := range c.RelatedConcepts {
		n.Children = append(n.Children, emitRelatedConcept(rel))
	}

	return n
}

func emitRelatedConcept(rel *domain.RelatedConcept) *xmlnode.Node {
	n := newNode("related-concept")
	setAttr(n, "domain", rel.TargetDomain)
	setAttr(n, "concept", rel.TargetConcept)
	setAttr(n, "keyPrefix", rel.KeyPrefix)
	setAttr(n, "arity", arityToWire(rel.Arity))

	return n
}

func arityToWire(a domain.Arity) string {
	switch a {
	case domain.ArityZeroOrOne:
		return "0..1"
	case domain.ArityOneToMany:
		return "1..N"
	case domain.ArityZeroToMany:
		return "0..N"
	default:
		return "1"
	}
}

func emitFilenamePatterns(reg *filename.Registry) *xmlnode.Node {
	n := newNode("filename-patterns")

	for _, name := range reg.Names() {
		p, _ := reg.Lookup(name)

		pn := newNode("filename-pattern")
		setAttr(pn, "name", p.Name)
		setAttr(pn, "concept", p.TargetConcept)

		for _, frag := range p.Fragments {
			pn.Children = append(pn.Children, emitFragment(frag))
		}

		n.Children = append(n.Children, pn)
	}

	return n
}

func emitFragment(frag filename.Fragment) *xmlnode.Node {
	n := newNode("fragment")

	if frag.Name == "" {
		setAttr(n, "literal", frag.Literal)

		return n
	}

	setAttr(n, "capture", frag.Name)
	setAttr(n, "type", string(frag.Spec.Primitive))
	setAttr(n, "column", frag.Spec.TargetColumn)
	setAttr(n, "regex", frag.Regex)

	return n
}

// emitColumnSet emits cs's columns as a sequence of <column> elements, in
// declaration order.
func emitColumnSet(cs *column.ColumnSet) []*xmlnode.Node {
	out := make([]*xmlnode.Node, 0, cs.Len())

	for _, col := range cs.Columns() {
		out = append(out, emitColumn(col))
	}

	return out
}

func emitColumn(col *column.Column) *xmlnode.Node {
	n := newNode("column")
	setAttr(n, "name", col.Name)

	if col.Type != nil {
		setAttr(n, "type", string(col.Type.Primitive))
		setAttr(n, "use", col.Type.Usage.String())
	}

	if col.Description != "" {
		n.Children = append(n.Children, textNode("description", col.Description))
	}

	if col.Annotations != nil && col.Annotations.Len() > 0 {
		n.Children = append(n.Children, emitAnnotations(col.Annotations))
	}

	if col.Type != nil && col.Type.Restriction != nil {
		n.Children = append(n.Children, emitRestriction(col.Type.Restriction))
	}

	if col.Type != nil && col.Type.Default != nil {
		n.Children = append(n.Children, emitDefault(col.Type.Default))
	}

	if col.Type != nil && col.Type.IsArray() {
		an := newNode("array")
		setAttr(an, "separators", string(col.Type.Separators))
		n.Children = append(n.Children, an)
	}

	return n
}

func emitRestriction(r *column.Restriction) *xmlnode.Node {
	n := newNode("restriction")

	switch r.Kind {
	case column.RestrictionPattern:
		setAttr(n, "pattern", r.Name)
	case column.RestrictionCV:
		setAttr(n, "cv", r.Name)
	case column.RestrictionCompound:
		setAttr(n, "compound", r.Name)
	}

	return n
}

// emitDefault serializes a column's default back to a <default> element. A
// literal flow-sequence default (parsed from YAML by parseLiteralDefault) is
// re-rendered as a YAML flow sequence rather than via [annotation.Value.String],
// which concatenates fragment text with no delimiters and would lose the
// list shape on round-trip.
func emitDefault(d *column.Default) *xmlnode.Node {
	n := newNode("default")

	if !d.IsLiteral() {
		setAttr(n, "column", d.ColumnName)

		return n
	}

	if d.Literal.IsPlain() {
		n.Text = d.Literal.Plain

		return n
	}

	parts := make([]string, 0, len(d.Literal.Fragments))
	for _, f := range d.Literal.Fragments {
		parts = append(parts, f.Text)
	}

	n.Text = "[" + strings.Join(parts, ", ") + "]"

	return n
}

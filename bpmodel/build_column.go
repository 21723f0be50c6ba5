package bpmodel

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/scalar"
	"go.bpmodel.dev/model/xmlnode"
)

// columnWireUsage maps the model document's "use" attribute to [column.Usage].
var columnWireUsage = map[string]column.Usage{
	"idref":     column.UsageIDRef,
	"required":  column.UsageRequired,
	"desirable": column.UsageDesirable,
	"optional":  column.UsageOptional,
}

// parseColumnSet parses every <column> child of owner into a
// [column.ColumnSet], in document order. It does not resolve restrictions
// against any registry — that only matters for invariant checking (I5),
// which runs once the whole model is loaded (see checkInvariants).
func parseColumnSet(owner *xmlnode.Node) (*column.ColumnSet, error) {
	cs := column.NewColumnSet()

	for _, n := range owner.ChildrenNamed("column") {
		col, err := parseColumn(n)
		if err != nil {
			return nil, err
		}

		if err := cs.Add(col); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateName, err)
		}
	}

	return cs, nil
}

// parseColumn parses one <column> element:
//
//	<column name="id" type="string" use="idref">
//	  <description>Sample identifier</description>
//	  <restriction pattern="idPattern"/>   <!-- or cv="..." or compound="..." -->
//	  <default>literal</default>           <!-- or <default column="other"/> -->
//	  <array separators=";|"/>
//	</column>
func parseColumn(n *xmlnode.Node) (*column.Column, error) {
	name, ok := n.Attr("name")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: column missing name", ErrSchemaViolation)
	}

	ct, err := parseColumnType(n)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}

	col := &column.Column{
		Name:        name,
		Annotations: annotation.NewSet(),
		Type:        ct,
	}

	if d, ok := n.Child("description"); ok {
		col.Description = d.TrimmedText()
	}

	if a, ok := n.Child("annotations"); ok {
		col.Annotations = parseAnnotations(a)
	}

	return col, nil
}

func parseColumnType(n *xmlnode.Node) (*column.ColumnType, error) {
	typeAttr, _ := n.Attr("type")
	if typeAttr == "" {
		typeAttr = string(scalar.String)
	}

	useAttr, _ := n.Attr("use")

	usage, ok := columnWireUsage[useAttr]
	if !ok {
		usage = column.UsageOptional
	}

	ct := &column.ColumnType{
		Primitive: scalar.Tag(typeAttr),
		Usage:     usage,
	}

	if r, ok := n.Child("restriction"); ok {
		restriction, err := parseRestriction(r)
		if err != nil {
			return nil, err
		}

		ct.Restriction = restriction
	}

	if d, ok := n.Child("default"); ok {
		if colRef, ok := d.Attr("column"); ok && colRef != "" {
			ct.Default = &column.Default{ColumnName: colRef}
		} else {
			v := parseLiteralDefault(d.TrimmedText())
			ct.Default = &column.Default{Literal: &v}
		}
	}

	if a, ok := n.Child("array"); ok {
		seps, _ := a.Attr("separators")
		ct.Separators = []rune(seps)
	}

	return ct, nil
}

// parseLiteralDefault decodes a <default> element's text as a YAML scalar
// or flow sequence with goccy/go-yaml. A flow sequence keeps its list shape
// as one [annotation.Fragment] per item; a scalar becomes a plain string of
// its decoded value (fmt.Sprint), so its int/float/bool type is not kept.
// A value that does not parse as YAML (or is empty) falls back to the raw
// text as a plain string.
func parseLiteralDefault(text string) annotation.Value {
	if text == "" {
		return annotation.PlainValue("")
	}

	var decoded any

	if err := yaml.Unmarshal([]byte(text), &decoded); err != nil {
		return annotation.PlainValue(text)
	}

	items, ok := decoded.([]any)
	if !ok {
		return annotation.PlainValue(fmt.Sprint(decoded))
	}

	fragments := make([]annotation.Fragment, len(items))
	for i, item := range items {
		fragments[i] = annotation.Fragment{Text: fmt.Sprint(item)}
	}

	return annotation.Value{Fragments: fragments}
}

func parseRestriction(n *xmlnode.Node) (*column.Restriction, error) {
	if v, ok := n.Attr("pattern"); ok && v != "" {
		return &column.Restriction{Kind: column.RestrictionPattern, Name: v}, nil
	}

	if v, ok := n.Attr("cv"); ok && v != "" {
		return &column.Restriction{Kind: column.RestrictionCV, Name: v}, nil
	}

	if v, ok := n.Attr("compound"); ok && v != "" {
		return &column.Restriction{Kind: column.RestrictionCompound, Name: v}, nil
	}

	return nil, fmt.Errorf("%w: restriction names neither pattern, cv, nor compound", ErrSchemaViolation)
}

// parseAnnotations parses an <annotations> element's <annotation name="..">
// children into an ordered [annotation.Set].
func parseAnnotations(n *xmlnode.Node) *annotation.Set {
	set := annotation.NewSet()

	for _, a := range n.ChildrenNamed("annotation") {
		name, _ := a.Attr("name")
		if name == "" {
			continue
		}

		set.Set(name, annotation.PlainValue(a.TrimmedText()))
	}

	return set
}

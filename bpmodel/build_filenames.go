package bpmodel

import (
	"fmt"

	"go.bpmodel.dev/model/filename"
	"go.bpmodel.dev/model/scalar"
	"go.bpmodel.dev/model/xmlnode"
)

// buildFilenamePatterns parses <filename-patterns><filename-pattern
// name=".." concept="..">...</filename-pattern></filename-patterns> (C10).
//
//	<filename-pattern name="sampleFile" concept="sample">
//	  <fragment literal="sample_"/>
//	  <fragment capture="id" type="string" column="id" regex="[A-Z0-9]+"/>
//	  <fragment literal=".tsv"/>
//	</filename-pattern>
func buildFilenamePatterns(root *xmlnode.Node) (*filename.Registry, error) {
	reg := filename.New()

	section, ok := root.Child("filename-patterns")
	if !ok {
		return reg, nil
	}

	for _, n := range section.ChildrenNamed("filename-pattern") {
		name, _ := n.Attr("name")
		if name == "" {
			return nil, fmt.Errorf("%w: filename-pattern missing name", ErrSchemaViolation)
		}

		concept, _ := n.Attr("concept")

		p := &filename.Pattern{Name: name, TargetConcept: concept}

		for _, fn := range n.ChildrenNamed("fragment") {
			frag, err := parseFragment(fn)
			if err != nil {
				return nil, fmt.Errorf("filename-pattern %s: %w", name, err)
			}

			p.Fragments = append(p.Fragments, frag)
		}

		if err := p.Compile(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPatternInvalid, err)
		}

		if !reg.Register(p) {
			return nil, wrapNamed(ErrDuplicateName, name)
		}
	}

	return reg, nil
}

func parseFragment(n *xmlnode.Node) (filename.Fragment, error) {
	if lit, ok := n.Attr("literal"); ok {
		return filename.Fragment{Literal: lit}, nil
	}

	capture, ok := n.Attr("capture")
	if !ok || capture == "" {
		return filename.Fragment{}, fmt.Errorf("%w: fragment names neither literal nor capture", ErrSchemaViolation)
	}

	typeAttr, _ := n.Attr("type")
	if typeAttr == "" {
		typeAttr = string(scalar.String)
	}

	column, _ := n.Attr("column")
	if column == "" {
		column = capture
	}

	regexAttr, _ := n.Attr("regex")

	return filename.Fragment{
		Name:  capture,
		Spec:  filename.CaptureSpec{Primitive: scalar.Tag(typeAttr), TargetColumn: column},
		Regex: regexAttr,
	}, nil
}

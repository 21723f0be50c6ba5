package bpmodel

import (
	"fmt"
	"strconv"
	"strings"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/domain"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/xmlnode"
)

// arityWire maps the model document's "arity" attribute to [domain.Arity].
var arityWire = map[string]domain.Arity{
	"1":    domain.ArityOne,
	"0..1": domain.ArityZeroOrOne,
	"1..N": domain.ArityOneToMany,
	"0..N": domain.ArityZeroToMany,
}

// buildDomains parses <concept-domains><concept-domain name="..">...
// in document order, building every [domain.Domain] and its unresolved
// [domain.Concept]s, but does not itself run [domain.ResolveDomain] or the
// cross-domain [go.bpmodel.dev/model/fk.Propagate] pass — Load does that
// once every domain's concepts are registered, so extends/identifiedBy and
// cross-domain related-concept references may point anywhere in the
// document (spec.md §4.6 "declaration order of concepts ... does not
// matter").
func buildDomains(root *xmlnode.Node) (*omap.Map[*domain.Domain], error) {
	domains := omap.New[*domain.Domain]()

	section, ok := root.Child("concept-domains")
	if !ok {
		return domains, nil
	}

	for _, n := range section.ChildrenNamed("concept-domain") {
		name, _ := n.Attr("name")
		if name == "" {
			return nil, fmt.Errorf("%w: concept-domain missing name", ErrSchemaViolation)
		}

		d := domain.New(name)
		d.FullName, _ = n.Attr("fullname")

		if abstractAttr, ok := n.Attr("abstract"); ok {
			if b, err := strconv.ParseBool(abstractAttr); err == nil {
				d.Abstract = b
			}
		}

		if desc, ok := n.Child("description"); ok {
			d.Description = desc.TrimmedText()
		}

		if a, ok := n.Child("annotations"); ok {
			d.Annotations = parseAnnotations(a)
		} else {
			d.Annotations = annotation.NewSet()
		}

		for _, cn := range n.ChildrenNamed("concept") {
			c, err := parseConcept(cn)
			if err != nil {
				return nil, fmt.Errorf("concept-domain %s: %w", name, err)
			}

			if !d.AddConcept(c) {
				return nil, wrapNamed(ErrDuplicateName, name+"."+c.Name)
			}
		}

		if !domains.SetUnique(name, d) {
			return nil, wrapNamed(ErrDuplicateName, name)
		}
	}

	return domains, nil
}

// parseConcept parses one <concept> element:
//
//	<concept name="sample" fullname="Biological sample"
//	         basedOn="trackable,taggable" extends="specimen"
//	         identifiedBy="donor" idPrefix="donor_" collection="samples">
//	  <description>...</description>
//	  <column .../>
//	  <related-concept domain="study" concept="experiment"
//	                    keyPrefix="exp_" arity="1..N"/>
//	</concept>
func parseConcept(n *xmlnode.Node) (*domain.Concept, error) {
	name, _ := n.Attr("name")
	if name == "" {
		return nil, fmt.Errorf("%w: concept missing name", ErrSchemaViolation)
	}

	c := &domain.Concept{Name: name, Annotations: annotation.NewSet()}

	c.FullName, _ = n.Attr("fullname")
	c.Extends, _ = n.Attr("extends")
	c.IdentifiedBy, _ = n.Attr("identifiedBy")
	c.IDPrefix, _ = n.Attr("idPrefix")
	c.Collection, _ = n.Attr("collection")

	if basedOn, ok := n.Attr("basedOn"); ok && basedOn != "" {
		c.BasedOn = splitCSV(basedOn)
	}

	if desc, ok := n.Child("description"); ok {
		c.Description = desc.TrimmedText()
	}

	if a, ok := n.Child("annotations"); ok {
		c.Annotations = parseAnnotations(a)
	}

	own, err := parseColumnSet(n)
	if err != nil {
		return nil, fmt.Errorf("concept %s: %w", name, err)
	}

	c.Own = own

	for _, rn := range n.ChildrenNamed("related-concept") {
		rel, err := parseRelatedConcept(rn)
		if err != nil {
			return nil, fmt.Errorf("concept %s: %w", name, err)
		}

		c.RelatedConcepts = append(c.RelatedConcepts, rel)
	}

	return c, nil
}

func parseRelatedConcept(n *xmlnode.Node) (*domain.RelatedConcept, error) {
	target, _ := n.Attr("concept")
	if target == "" {
		return nil, fmt.Errorf("%w: related-concept missing concept", ErrSchemaViolation)
	}

	rel := &domain.RelatedConcept{TargetConcept: target}
	rel.TargetDomain, _ = n.Attr("domain")
	rel.KeyPrefix, _ = n.Attr("keyPrefix")

	arityAttr, _ := n.Attr("arity")
	if arityAttr == "" {
		arityAttr = "1"
	}

	arity, ok := arityWire[strings.TrimSpace(arityAttr)]
	if !ok {
		return nil, fmt.Errorf("%w: related-concept arity %q", ErrSchemaViolation, arityAttr)
	}

	rel.Arity = arity

	return rel, nil
}

package bpmodel

import (
	"fmt"
	"strconv"
	"strings"

	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/xmlnode"
)

// buildCollections parses <collections><collection name=".." path="..">...
// in document order (spec.md §3 "Collection").
//
//	<collections>
//	  <collection name="samples" path="db.samples">
//	    <index unique="true" columns="id:+1"/>
//	    <index columns="donor_id:+1,collected:-1"/>
//	  </collection>
//	</collections>
func buildCollections(root *xmlnode.Node) (*omap.Map[*Collection], error) {
	collections := omap.New[*Collection]()

	section, ok := root.Child("collections")
	if !ok {
		return collections, nil
	}

	for _, n := range section.ChildrenNamed("collection") {
		name, _ := n.Attr("name")
		if name == "" {
			return nil, fmt.Errorf("%w: collection missing name", ErrSchemaViolation)
		}

		path, _ := n.Attr("path")

		col := &Collection{Name: name, Path: path}

		for _, idxNode := range n.ChildrenNamed("index") {
			idx, err := parseIndex(idxNode)
			if err != nil {
				return nil, fmt.Errorf("collection %s: %w", name, err)
			}

			col.Indices = append(col.Indices, idx)
		}

		if !collections.SetUnique(name, col) {
			return nil, wrapNamed(ErrDuplicateName, name)
		}
	}

	return collections, nil
}

func parseIndex(n *xmlnode.Node) (*Index, error) {
	idx := &Index{}

	if uniqueAttr, ok := n.Attr("unique"); ok {
		if b, err := strconv.ParseBool(uniqueAttr); err == nil {
			idx.Unique = b
		}
	}

	colsAttr, _ := n.Attr("columns")
	if colsAttr == "" {
		return nil, fmt.Errorf("%w: index missing columns", ErrSchemaViolation)
	}

	for _, spec := range strings.Split(colsAttr, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		name, dirStr, _ := strings.Cut(spec, ":")

		dir := Ascending
		if dirStr == "-1" {
			dir = Descending
		}

		idx.Columns = append(idx.Columns, IndexColumn{Column: name, Direction: dir})
	}

	return idx, nil
}

package bpmodel

import (
	"fmt"

	"go.bpmodel.dev/model/pattern"
	"go.bpmodel.dev/model/xmlnode"
)

// buildPatterns parses <pattern-declarations><pattern name=".." regex=".."/>
// ...</pattern-declarations> (C4), compiling each named regular expression
// once so column-type restrictions (spec.md §4.3) can reference it by name.
//
//	<pattern-declarations>
//	  <pattern name="sampleId" regex="[A-Z]{2}[0-9]{4}"/>
//	</pattern-declarations>
func buildPatterns(root *xmlnode.Node) (*pattern.Registry, error) {
	reg := pattern.New()

	section, ok := root.Child("pattern-declarations")
	if !ok {
		return reg, nil
	}

	seen := make(map[string]bool)

	for _, n := range section.ChildrenNamed("pattern") {
		name, _ := n.Attr("name")
		if name == "" {
			return nil, fmt.Errorf("%w: pattern missing name", ErrSchemaViolation)
		}

		if seen[name] {
			return nil, wrapNamed(ErrDuplicateName, name)
		}

		seen[name] = true

		regex, _ := n.Attr("regex")

		if err := reg.Register(name, regex); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPatternInvalid, err)
		}
	}

	return reg, nil
}

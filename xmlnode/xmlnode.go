// Package xmlnode implements the meta-schema validator (C1): a generic
// XML-to-tree decoder, a projection of that tree into the map/slice/scalar
// shape [encoding/json] would produce, and validation of that shape against
// the bundled meta-schema.
//
// Successful validation here does not imply semantic correctness — the
// resolvers in compound, concepttype, domain, fk, and cv still run and may
// still fail with their own error kinds (spec.md §4.2).
package xmlnode

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed meta-schema.json
var metaSchemaJSON []byte

var resolvedMetaSchema *jsonschema.Resolved

func init() {
	var schema jsonschema.Schema
	if err := json.Unmarshal(metaSchemaJSON, &schema); err != nil {
		panic(fmt.Sprintf("xmlnode: embedded meta-schema does not parse: %v", err))
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("xmlnode: embedded meta-schema does not resolve: %v", err))
	}

	resolvedMetaSchema = resolved
}

// ErrViolation wraps a meta-schema validation failure. The message carries
// the schema-reported instance location; callers that need the model-wide
// bpmodel.ErrSchemaViolation sentinel map this with errors.Is at the
// boundary.
var ErrViolation = fmt.Errorf("xmlnode: schema violation")

// Node is a generic XML element: its qualified name, attributes, own text
// content (concatenated from adjacent character data), and child elements
// in document order. Attribute and child order is always document order,
// since that ordering feeds directly into every downstream registry's
// declaration order (spec.md §5).
type Node struct {
	XMLName  string
	Attrs    map[string]string
	AttrKeys []string // attribute names in document order
	Text     string
	Children []*Node
}

// Attr returns the value of the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]

	return v, ok
}

// Child returns the first child element named name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.XMLName == name {
			return c, true
		}
	}

	return nil, false
}

// ChildrenNamed returns every child element named name, in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node

	for _, c := range n.Children {
		if c.XMLName == name {
			out = append(out, c)
		}
	}

	return out
}

// TrimmedText returns n's own text with leading/trailing whitespace
// removed, the common case for a leaf element like <name>sample</name>.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}

// DecodeTree parses r as XML into a [Node] tree rooted at the document
// element.
func DecodeTree(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var (
		stack []*Node
		root  *Node
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("xmlnode: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{XMLName: t.Name.Local, Attrs: make(map[string]string)}

			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
				n.AttrKeys = append(n.AttrKeys, a.Name.Local)
			}

			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}

			stack = append(stack, n)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("xmlnode: %w", io.ErrUnexpectedEOF)
	}

	return root, nil
}

// ToSchemaInstance projects n into the map[string]any/[]any/scalar shape
// [encoding/json] would produce from an equivalent document, so it can be
// handed to a JSON Schema validator. Attributes become string-valued
// properties prefixed with "@"; repeated child element names become a
// []any; non-blank text content becomes the "#text" property, or the bare
// string value when n has neither children nor attributes.
func ToSchemaInstance(n *Node) any {
	if len(n.Children) == 0 && len(n.Attrs) == 0 {
		return n.TrimmedText()
	}

	obj := make(map[string]any, len(n.Attrs)+len(n.Children)+1)

	for k, v := range n.Attrs {
		obj["@"+k] = v
	}

	if text := n.TrimmedText(); text != "" {
		obj["#text"] = text
	}

	childNames := make(map[string]int)
	for _, c := range n.Children {
		childNames[c.XMLName]++
	}

	seen := make(map[string]bool, len(childNames))

	for _, c := range n.Children {
		if seen[c.XMLName] {
			continue
		}

		seen[c.XMLName] = true

		if childNames[c.XMLName] > 1 {
			var arr []any

			for _, sibling := range n.ChildrenNamed(c.XMLName) {
				arr = append(arr, ToSchemaInstance(sibling))
			}

			obj[c.XMLName] = arr

			continue
		}

		obj[c.XMLName] = ToSchemaInstance(c)
	}

	return obj
}

// Validate validates instance (typically the result of [ToSchemaInstance])
// against the bundled meta-schema. A failure returns an error wrapping
// [ErrViolation] and naming the schema-reported instance path.
func Validate(instance any) error {
	if err := resolvedMetaSchema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrViolation, err)
	}

	return nil
}

// ValidateBytes decodes raw as XML, projects it, and validates it in one
// call — the convenience path [go.bpmodel.dev/model/bpmodel.Load] uses.
func ValidateBytes(raw []byte) (*Node, error) {
	root, err := DecodeTree(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	if err := Validate(ToSchemaInstance(root)); err != nil {
		return nil, err
	}

	return root, nil
}

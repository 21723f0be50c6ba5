package xmlnode

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// EncodeTree serializes n back to XML, attributes in [Node.AttrKeys] order
// and children in [Node.Children] order — the inverse of [DecodeTree],
// modulo insignificant whitespace between sibling elements (this package
// decodes text nodes into [Node.Text] but writes no indentation back out).
func EncodeTree(n *Node) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)

	if err := encodeNode(&buf, n); err != nil {
		return nil, fmt.Errorf("xmlnode: %w", err)
	}

	return buf.Bytes(), nil
}

func encodeNode(buf *bytes.Buffer, n *Node) error {
	buf.WriteByte('<')
	buf.WriteString(n.XMLName)

	for _, k := range n.AttrKeys {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteString(`="`)

		if err := xml.EscapeText(buf, []byte(n.Attrs[k])); err != nil {
			return err
		}

		buf.WriteByte('"')
	}

	if n.Text == "" && len(n.Children) == 0 {
		buf.WriteString("/>")

		return nil
	}

	buf.WriteByte('>')

	if n.Text != "" {
		if err := xml.EscapeText(buf, []byte(n.Text)); err != nil {
			return err
		}
	}

	for _, c := range n.Children {
		if err := encodeNode(buf, c); err != nil {
			return err
		}
	}

	buf.WriteString("</")
	buf.WriteString(n.XMLName)
	buf.WriteByte('>')

	return nil
}

package xmlnode_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/xmlnode"
)

const sampleXML = `<model project="demo" schemaVer="1.0">
  <collections>
    <collection name="main" path="./main"/>
  </collections>
</model>`

func TestDecodeTreeBasic(t *testing.T) {
	root, err := xmlnode.DecodeTree(strings.NewReader(sampleXML))
	require.NoError(t, err)

	assert.Equal(t, "model", root.XMLName)

	project, ok := root.Attr("project")
	require.True(t, ok)
	assert.Equal(t, "demo", project)

	collections, ok := root.Child("collections")
	require.True(t, ok)

	collection, ok := collections.Child("collection")
	require.True(t, ok)

	name, ok := collection.Attr("name")
	require.True(t, ok)
	assert.Equal(t, "main", name)
}

func TestDecodeTreeEmptyInput(t *testing.T) {
	_, err := xmlnode.DecodeTree(strings.NewReader(""))
	assert.Error(t, err)
}

func TestChildrenNamedMultiple(t *testing.T) {
	const multi = `<root><item>a</item><item>b</item></root>`

	root, err := xmlnode.DecodeTree(strings.NewReader(multi))
	require.NoError(t, err)

	items := root.ChildrenNamed("item")
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].TrimmedText())
	assert.Equal(t, "b", items[1].TrimmedText())
}

func TestToSchemaInstanceLeafText(t *testing.T) {
	root, err := xmlnode.DecodeTree(strings.NewReader(`<name>  sample  </name>`))
	require.NoError(t, err)

	got := xmlnode.ToSchemaInstance(root)
	assert.Equal(t, "sample", got)
}

func TestToSchemaInstanceRepeatedChildrenBecomeArray(t *testing.T) {
	root, err := xmlnode.DecodeTree(strings.NewReader(`<root><item>a</item><item>b</item></root>`))
	require.NoError(t, err)

	got := xmlnode.ToSchemaInstance(root).(map[string]any)
	arr, ok := got["item"].([]any)
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestToSchemaInstanceAttributesPrefixed(t *testing.T) {
	root, err := xmlnode.DecodeTree(strings.NewReader(`<concept name="Sample"/>`))
	require.NoError(t, err)

	got := xmlnode.ToSchemaInstance(root).(map[string]any)
	assert.Equal(t, "Sample", got["@name"])
}

func TestValidateBytesAcceptsWellFormedModel(t *testing.T) {
	_, err := xmlnode.ValidateBytes([]byte(sampleXML))
	require.NoError(t, err)
}

func TestValidateBytesRejectsMissingRequiredAttr(t *testing.T) {
	_, err := xmlnode.ValidateBytes([]byte(`<model/>`))
	assert.ErrorIs(t, err, xmlnode.ErrViolation)
}

func TestEncodeTreeRoundTrip(t *testing.T) {
	root, err := xmlnode.DecodeTree(strings.NewReader(sampleXML))
	require.NoError(t, err)

	encoded, err := xmlnode.EncodeTree(root)
	require.NoError(t, err)

	reDecoded, err := xmlnode.DecodeTree(strings.NewReader(string(encoded)))
	require.NoError(t, err)

	assert.Equal(t, root.XMLName, reDecoded.XMLName)

	project, _ := reDecoded.Attr("project")
	assert.Equal(t, "demo", project)
}

func TestEncodeTreeEscapesText(t *testing.T) {
	root := &xmlnode.Node{XMLName: "description", Text: `a & b < c`}

	encoded, err := xmlnode.EncodeTree(root)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "a &amp; b &lt; c")
}

func TestEncodeTreeSelfClosesEmptyElement(t *testing.T) {
	root := &xmlnode.Node{XMLName: "empty"}

	encoded, err := xmlnode.EncodeTree(root)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "<empty/>")
}

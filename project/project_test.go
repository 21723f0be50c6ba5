package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/bpmodel"
	"go.bpmodel.dev/model/project"
)

const fixture = `<model project="demo" schemaVer="1.0">
  <annotations><annotation name="owner">team-a</annotation></annotations>
  <collections>
    <collection name="samples" path="db.samples"/>
  </collections>
  <cv-declarations>
    <cv id="tissue">
      <term key="blood" name="Blood"/>
      <term key="plasma" name="Plasma" parents="blood"/>
    </cv>
    <cv id="anyTissue"><union-cv>tissue</union-cv></cv>
  </cv-declarations>
  <compound-types>
    <compound-type name="address">
      <column name="city" type="string" use="required"/>
    </compound-type>
  </compound-types>
  <concept-domains>
    <concept-domain name="bio" fullname="Biology">
      <concept name="Sample" collection="samples">
        <column name="id" type="string" use="idref"/>
        <column name="tissue" type="string" use="required">
          <restriction cv="tissue"/>
        </column>
        <column name="status" type="string" use="optional">
          <default>active</default>
        </column>
        <column name="location" type="compound" use="optional">
          <restriction compound="address"/>
        </column>
      </concept>
      <concept name="Measurement" collection="samples">
        <column name="value" type="decimal" use="required"/>
        <related-concept concept="Sample" keyPrefix="sample_" arity="1"/>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

func loadFixture(t *testing.T) *bpmodel.Model {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "bp-model.xml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	m, err := bpmodel.Load(path)
	require.NoError(t, err)

	return m
}

func conceptByID(t *testing.T, doc *project.Document, id string) *project.ConceptDoc {
	t.Helper()

	for _, d := range doc.Domains {
		for _, c := range d.Concepts {
			if c.ID == id {
				return c
			}
		}
	}

	t.Fatalf("concept %s not found", id)

	return nil
}

func columnByName(t *testing.T, c *project.ConceptDoc, name string) project.ColumnDoc {
	t.Helper()

	for _, col := range c.Columns {
		if col.Name == name {
			return col
		}
	}

	t.Fatalf("column %s not found on concept %s", name, c.ID)

	return project.ColumnDoc{}
}

func TestSerializeTopLevel(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	assert.Equal(t, "demo", doc.Project)
	assert.Equal(t, "1.0", doc.SchemaVer)
	assert.Equal(t, "team-a", doc.Annotations["owner"])

	col, ok := doc.Collections["db.samples"]
	require.True(t, ok)
	assert.Equal(t, "samples", col.Name)
}

func TestSerializeConceptColumnsAndDefault(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	sample := conceptByID(t, doc, "bio.Sample")
	assert.Equal(t, "Sample", sample.Name)

	status := columnByName(t, sample, "status")
	assert.True(t, status.Type.HasDefault)
	assert.Equal(t, "active", status.Type.DefaultLiteral)

	location := columnByName(t, sample, "location")
	assert.Equal(t, "address", location.Type.Compound)

	tissueCol := columnByName(t, sample, "tissue")
	assert.Equal(t, "tissue", tissueCol.Type.CV)
}

func TestSerializeRelatedConcepts(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	measurement := conceptByID(t, doc, "bio.Measurement")
	assert.Equal(t, []string{"bio.Sample"}, measurement.RelatedTo)

	columnByName(t, measurement, "sample_id")
}

func TestSerializeCVTermsAndAncestors(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	tissue, ok := doc.CVs["tissue"]
	require.True(t, ok)
	require.Len(t, tissue.Terms, 2)

	var plasma *project.TermDoc
	for i := range tissue.Terms {
		if tissue.Terms[i].Term == "plasma" {
			plasma = &tissue.Terms[i]
		}
	}
	require.NotNil(t, plasma)
	assert.Equal(t, []string{"blood"}, plasma.Ancestors)
}

func TestSerializeMetaCVFlattensUnion(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	anyTissue, ok := doc.CVs["anyTissue"]
	require.True(t, ok)
	assert.Equal(t, []string{"tissue"}, anyTissue.UnionOf)
	assert.Len(t, anyTissue.Terms, 2)
}

func TestSerializeCompoundTypes(t *testing.T) {
	m := loadFixture(t)
	doc := project.Serialize(m)

	address, ok := doc.CompoundTypes["address"]
	require.True(t, ok)
	require.Len(t, address.Columns, 1)
	assert.Equal(t, "city", address.Columns[0].Name)
}

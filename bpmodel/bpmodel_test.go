package bpmodel_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/bpmodel"
)

// writeModel writes xml as bp-model.xml into a fresh temp directory,
// alongside any extra files (e.g. external CV termfiles), and returns the
// model's path.
func writeModel(t *testing.T, xml string, extraFiles map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "bp-model.xml")
	require.NoError(t, os.WriteFile(path, []byte(xml), 0o600))

	for name, content := range extraFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return path
}

const fullFixture = `<model project="demo" schemaVer="1.0" metadataCollection="meta">
  <collections>
    <collection name="samples" path="db.samples">
      <index unique="true" columns="id:+1"/>
    </collection>
    <collection name="aliquots" path="db.aliquots">
      <index columns="sample_id:+1"/>
    </collection>
  </collections>
  <pattern-declarations>
    <pattern name="barcodePattern" regex="[A-Z]{2}[0-9]{4}"/>
  </pattern-declarations>
  <cv-declarations>
    <cv id="tissue">
      <term key="blood" name="Blood"/>
      <term key="plasma" name="Plasma" parents="blood"/>
    </cv>
    <cv id="anyTissue">
      <union-cv>tissue</union-cv>
    </cv>
    <cv id="species" file="species.cv"/>
  </cv-declarations>
  <null-values>
    <term key="NA"/>
  </null-values>
  <compound-types>
    <compound-type name="address">
      <column name="city" type="string" use="required"/>
    </compound-type>
  </compound-types>
  <concept-types>
    <concept-type name="Timestamped">
      <column name="created_at" type="timestamp" use="required"/>
    </concept-type>
  </concept-types>
  <concept-domains>
    <concept-domain name="bio" fullname="Biology">
      <concept name="Sample" collection="samples" basedOn="Timestamped">
        <column name="id" type="string" use="idref"/>
        <column name="tissue" type="string" use="required">
          <restriction cv="tissue"/>
        </column>
        <column name="barcode" type="string" use="optional">
          <restriction pattern="barcodePattern"/>
        </column>
      </concept>
      <concept name="Aliquot" identifiedBy="Sample" idPrefix="sample_" collection="aliquots">
        <column name="volume" type="decimal" use="required"/>
        <related-concept concept="Sample" keyPrefix="parent_" arity="1"/>
      </concept>
    </concept-domain>
  </concept-domains>
  <filename-patterns>
    <filename-pattern name="sampleFile" concept="Sample">
      <fragment literal="sample_"/>
      <fragment capture="id" type="string" column="id" regex="[A-Za-z0-9]+"/>
      <fragment literal=".csv"/>
    </filename-pattern>
  </filename-patterns>
</model>`

const speciesCV = "human\tHomo sapiens\nmouse\tMus musculus\n"

func TestLoadEndToEnd(t *testing.T) {
	path := writeModel(t, fullFixture, map[string]string{"species.cv": speciesCV})

	m, err := bpmodel.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", m.Project)
	assert.Equal(t, "1.0", m.SchemaVer)
	assert.Equal(t, "meta", m.MetadataCollection)

	samples, ok := m.Collection("samples")
	require.True(t, ok)
	assert.Equal(t, "db.samples", samples.Path)
	require.Len(t, samples.Indices, 1)
	assert.True(t, samples.Indices[0].Unique)

	assert.Contains(t, m.Patterns.Names(), "barcodePattern")

	_, ok = m.LookupCV("tissue")
	require.True(t, ok)
	species, ok := m.LookupCV("species")
	require.True(t, ok)
	assert.Equal(t, 2, species.Len())

	assert.True(t, m.IsValidNull("NA"))
	assert.False(t, m.IsValidNull("unknown"))

	assert.Contains(t, m.CompoundTypes.Names(), "address")
	assert.Contains(t, m.ConceptTypes.Names(), "Timestamped")

	sample, ok := m.Concept("bio", "Sample")
	require.True(t, ok)
	assert.True(t, sample.ColumnSet.Has("id"))
	assert.True(t, sample.ColumnSet.Has("tissue"))
	assert.True(t, sample.ColumnSet.Has("barcode"))
	assert.True(t, sample.ColumnSet.Has("created_at"))

	aliquot, ok := m.Concept("bio", "Aliquot")
	require.True(t, ok)
	assert.True(t, aliquot.ColumnSet.Has("volume"))
	assert.True(t, aliquot.ColumnSet.Has("sample_id"))
	assert.True(t, aliquot.ColumnSet.Has("parent_id"))
	assert.False(t, aliquot.ColumnSet.Has("created_at"))

	matches := m.Filenames
	p, ok := matches.Lookup("sampleFile")
	require.True(t, ok)
	found := p
	require.NotNil(t, found)

	assert.NotEmpty(t, m.Digests.ModelSHA1)
}

func TestLoadRejectsMissingProjectAttr(t *testing.T) {
	path := writeModel(t, `<model schemaVer="1.0"/>`, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrSchemaViolation)
}

func TestLoadDetectsDuplicateCollectionName(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <collections>
    <collection name="samples" path="a"/>
    <collection name="samples" path="b"/>
  </collections>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrDuplicateName)
}

func TestLoadDetectsCVCycle(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <cv-declarations>
    <cv id="loopy">
      <term key="a" name="A" parents="b"/>
      <term key="b" name="B" parents="a"/>
    </cv>
  </cv-declarations>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrCvCycle)
}

func TestLoadDetectsUnknownRestrictionCV(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample">
        <column name="tissue" type="string" use="required">
          <restriction cv="ghost"/>
        </column>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrUnknownReference)
}

func TestLoadDetectsUnknownRestrictionPattern(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample">
        <column name="barcode" type="string" use="required">
          <restriction pattern="ghost"/>
        </column>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrUnknownReference)
}

func TestLoadDetectsInvalidPatternRegex(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <pattern-declarations>
    <pattern name="broken" regex="[a-z"/>
  </pattern-declarations>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrPatternInvalid)
}

func TestLoadDetectsArrayIDRefWithoutReferredColumn(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample">
        <column name="id" type="string" use="idref">
          <array separators=";"/>
        </column>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrSchemaViolation)
}

func TestLoadDetectsUnknownDefaultColumn(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample">
        <column name="id" type="string" use="idref"/>
        <column name="status" type="string" use="optional">
          <default column="phantom"/>
        </column>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrUnknownReference)
}

func TestLoadDetectsMissingIndexColumn(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <collections>
    <collection name="samples" path="db.samples">
      <index columns="phantom:+1"/>
    </collection>
  </collections>
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample" collection="samples">
        <column name="id" type="string" use="idref"/>
      </concept>
    </concept-domain>
  </concept-domains>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrUnknownReference)
}

func TestLoadDetectsMissingFilenameCaptureColumn(t *testing.T) {
	const xml = `<model project="demo" schemaVer="1.0">
  <concept-domains>
    <concept-domain name="bio">
      <concept name="Sample">
        <column name="id" type="string" use="idref"/>
      </concept>
    </concept-domain>
  </concept-domains>
  <filename-patterns>
    <filename-pattern name="sampleFile" concept="Sample">
      <fragment capture="phantom" column="phantom" regex=".+"/>
    </filename-pattern>
  </filename-patterns>
</model>`

	path := writeModel(t, xml, nil)

	_, err := bpmodel.Load(path)
	assert.ErrorIs(t, err, bpmodel.ErrUnknownReference)
}

func TestEmitAndLoadRoundTrip(t *testing.T) {
	path := writeModel(t, fullFixture, map[string]string{"species.cv": speciesCV})

	m, err := bpmodel.Load(path)
	require.NoError(t, err)

	emitted, err := bpmodel.Emit(m)
	require.NoError(t, err)

	roundTripPath := writeModel(t, string(emitted), map[string]string{"species.cv": speciesCV})

	m2, err := bpmodel.Load(roundTripPath)
	require.NoError(t, err)

	assert.Equal(t, m.Project, m2.Project)
	assert.Equal(t, m.SchemaVer, m2.SchemaVer)
	assert.Equal(t, m.MetadataCollection, m2.MetadataCollection)
	assert.ElementsMatch(t, m.Collections.Keys(), m2.Collections.Keys())
	assert.ElementsMatch(t, m.CVs.Keys(), m2.CVs.Keys())
	assert.ElementsMatch(t, m.Patterns.Names(), m2.Patterns.Names())

	aliquot, ok := m2.Concept("bio", "Aliquot")
	require.True(t, ok)
	assert.True(t, aliquot.ColumnSet.Has("sample_id"))
	assert.True(t, aliquot.ColumnSet.Has("parent_id"))
}

func TestPackAndLoadArchiveRoundTrip(t *testing.T) {
	path := writeModel(t, fullFixture, map[string]string{"species.cv": speciesCV})

	m, err := bpmodel.Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bpmodel.Pack(m, []byte("<schema/>"), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), &buf))

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "model.bpz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o600))

	m2, err := bpmodel.LoadArchive(archivePath)
	require.NoError(t, err)

	assert.Equal(t, m.Project, m2.Project)
	assert.Equal(t, m.SchemaVer, m2.SchemaVer)

	sample, ok := m2.Concept("bio", "Sample")
	require.True(t, ok)
	assert.True(t, sample.ColumnSet.Has("tissue"))
	assert.Contains(t, m2.Patterns.Names(), "barcodePattern")

	species, ok := m2.LookupCV("species")
	require.True(t, ok)
	assert.Equal(t, 2, species.Len())
}

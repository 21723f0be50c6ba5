package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/concepttype"
	"go.bpmodel.dev/model/domain"
)

func ownColumns(t *testing.T, cols ...*column.Column) *column.ColumnSet {
	t.Helper()

	cs := column.NewColumnSet()
	for _, c := range cols {
		require.NoError(t, cs.Add(c))
	}

	return cs
}

func TestResolveDomainExtends(t *testing.T) {
	d := domain.New("bio")

	parent := &domain.Concept{
		Name: "Specimen",
		Own:  ownColumns(t, &column.Column{Name: "id", Type: &column.ColumnType{Usage: column.UsageIDRef}}),
	}
	child := &domain.Concept{
		Name:    "Sample",
		Extends: "Specimen",
		Own:     ownColumns(t, &column.Column{Name: "weight", Type: &column.ColumnType{Usage: column.UsageRequired}}),
	}

	require.True(t, d.AddConcept(parent))
	require.True(t, d.AddConcept(child))

	require.NoError(t, domain.ResolveDomain(d, concepttype.New()))

	assert.Equal(t, 1, parent.ColumnSet.Len())
	assert.Equal(t, 2, child.ColumnSet.Len())
	assert.True(t, child.ColumnSet.Has("id"))
	assert.True(t, child.ColumnSet.Has("weight"))
}

func TestResolveDomainIdentifiedByPrefixesAndWidens(t *testing.T) {
	d := domain.New("bio")

	owner := &domain.Concept{
		Name: "Sample",
		Own:  ownColumns(t, &column.Column{Name: "id", Type: &column.ColumnType{Usage: column.UsageIDRef}}),
	}
	weak := &domain.Concept{
		Name:         "Aliquot",
		IdentifiedBy: "Sample",
		IDPrefix:     "sample_",
		Own:          ownColumns(t, &column.Column{Name: "volume", Type: &column.ColumnType{Usage: column.UsageRequired}}),
	}

	require.True(t, d.AddConcept(owner))
	require.True(t, d.AddConcept(weak))

	require.NoError(t, domain.ResolveDomain(d, concepttype.New()))

	col, ok := weak.ColumnSet.Get("sample_id")
	require.True(t, ok)
	assert.Equal(t, column.UsageRequired, col.Type.Usage)
	assert.Equal(t, "Sample", col.RefConcept)
	assert.Equal(t, "id", col.RefColumn)
}

func TestResolveDomainBasedOnConceptType(t *testing.T) {
	ctr := concepttype.New()
	base := &concepttype.ConceptType{
		Name:    "Timestamped",
		Columns: ownColumns(t, &column.Column{Name: "created_at", Type: &column.ColumnType{Usage: column.UsageRequired}}),
	}
	require.True(t, ctr.Register(base))

	d := domain.New("bio")
	c := &domain.Concept{
		Name:    "Event",
		BasedOn: []string{"Timestamped"},
		Own:     ownColumns(t, &column.Column{Name: "kind", Type: &column.ColumnType{Usage: column.UsageRequired}}),
	}
	require.True(t, d.AddConcept(c))

	require.NoError(t, domain.ResolveDomain(d, ctr))

	assert.True(t, c.ColumnSet.Has("created_at"))
	assert.True(t, c.ColumnSet.Has("kind"))
}

func TestResolveDomainUnknownExtends(t *testing.T) {
	d := domain.New("bio")
	c := &domain.Concept{Name: "Sample", Extends: "Ghost", Own: ownColumns(t)}
	require.True(t, d.AddConcept(c))

	err := domain.ResolveDomain(d, concepttype.New())
	assert.ErrorIs(t, err, domain.ErrUnknownReference)
}

func TestResolveDomainColumnConflict(t *testing.T) {
	d := domain.New("bio")
	parent := &domain.Concept{
		Name: "Specimen",
		Own:  ownColumns(t, &column.Column{Name: "value", Type: &column.ColumnType{Usage: column.UsageOptional}}),
	}
	child := &domain.Concept{
		Name:    "Sample",
		Extends: "Specimen",
		Own:     ownColumns(t, &column.Column{Name: "value", Type: &column.ColumnType{Usage: column.UsageRequired}}),
	}
	require.True(t, d.AddConcept(parent))
	require.True(t, d.AddConcept(child))

	err := domain.ResolveDomain(d, concepttype.New())
	assert.ErrorIs(t, err, domain.ErrColumnConflict)
}

func TestConceptLookupAndConcepts(t *testing.T) {
	d := domain.New("bio")
	c := &domain.Concept{Name: "Sample", Own: ownColumns(t)}
	require.True(t, d.AddConcept(c))
	assert.False(t, d.AddConcept(c))

	got, ok := d.Concept("Sample")
	require.True(t, ok)
	assert.Same(t, c, got)

	assert.Len(t, d.Concepts(), 1)
}

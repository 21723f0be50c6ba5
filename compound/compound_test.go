package compound_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/compound"
)

func TestRegisterAndLookup(t *testing.T) {
	r := compound.New()
	cs := column.NewColumnSet()
	require.NoError(t, cs.Add(&column.Column{Name: "lat", Type: &column.ColumnType{Usage: column.UsageRequired}}))

	typ := &compound.Type{Name: "geopoint", Columns: cs}
	require.True(t, r.Register(typ))
	assert.False(t, r.Register(typ))

	got, ok := r.Lookup("geopoint")
	require.True(t, ok)
	assert.Same(t, typ, got)

	assert.Equal(t, []string{"geopoint"}, r.Names())
}

func TestResolveColumnUnknown(t *testing.T) {
	r := compound.New()
	_, err := r.ResolveColumn("missing")
	assert.ErrorIs(t, err, compound.ErrUnknown)
}

func TestResolveColumnKnown(t *testing.T) {
	r := compound.New()
	cs := column.NewColumnSet()
	typ := &compound.Type{Name: "geopoint", Columns: cs}
	require.True(t, r.Register(typ))

	got, err := r.ResolveColumn("geopoint")
	require.NoError(t, err)
	assert.Same(t, typ, got)
}

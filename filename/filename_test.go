package filename_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/filename"
	"go.bpmodel.dev/model/scalar"
)

func TestCompileAndMatch(t *testing.T) {
	p := &filename.Pattern{
		Name:          "sample-csv",
		TargetConcept: "Sample",
		Fragments: []filename.Fragment{
			{Literal: "sample_"},
			{Name: "id", Regex: `[0-9]+`, Spec: filename.CaptureSpec{Primitive: scalar.Integer, TargetColumn: "sample_id"}},
			{Literal: ".csv"},
		},
	}
	require.NoError(t, p.Compile())

	r := filename.New()
	require.True(t, r.Register(p))
	assert.False(t, r.Register(p))

	matches := r.MatchConcept("sample_0042.csv")
	require.Len(t, matches, 1)
	assert.Equal(t, "0042", matches[0].ExtractedValues["id"])
	assert.Equal(t, "0042", matches[0].MappedValues["sample_id"])
}

func TestMatchConceptOmitsTypeMismatchedCaptureFromMappedValues(t *testing.T) {
	p := &filename.Pattern{
		Name:          "sample-any",
		TargetConcept: "Sample",
		Fragments: []filename.Fragment{
			{Literal: "sample_"},
			{Name: "id", Regex: `.+`, Spec: filename.CaptureSpec{Primitive: scalar.Integer, TargetColumn: "sample_id"}},
			{Literal: ".csv"},
		},
	}
	require.NoError(t, p.Compile())

	r := filename.New()
	require.True(t, r.Register(p))

	matches := r.MatchConcept("sample_not-a-number.csv")
	require.Len(t, matches, 1)
	assert.Equal(t, "not-a-number", matches[0].ExtractedValues["id"])
	assert.NotContains(t, matches[0].MappedValues, "sample_id")
}

func TestMatchConceptNoMatch(t *testing.T) {
	p := &filename.Pattern{
		Name: "strict",
		Fragments: []filename.Fragment{{Literal: "exact.csv"}},
	}
	require.NoError(t, p.Compile())

	r := filename.New()
	require.True(t, r.Register(p))

	assert.Empty(t, r.MatchConcept("other.csv"))
}

func TestMultiplePatternsCanBothMatch(t *testing.T) {
	p1 := &filename.Pattern{Name: "p1", Fragments: []filename.Fragment{{Name: "any", Regex: ".+"}}}
	p2 := &filename.Pattern{Name: "p2", Fragments: []filename.Fragment{{Name: "any", Regex: ".+"}}}
	require.NoError(t, p1.Compile())
	require.NoError(t, p2.Compile())

	r := filename.New()
	require.True(t, r.Register(p1))
	require.True(t, r.Register(p2))

	matches := r.MatchConcept("whatever.csv")
	assert.Len(t, matches, 2)
}

func TestCompileDuplicateCaptureName(t *testing.T) {
	p := &filename.Pattern{
		Name: "bad",
		Fragments: []filename.Fragment{
			{Name: "x", Regex: `[0-9]+`},
			{Literal: "-"},
			{Name: "x", Regex: `[0-9]+`},
		},
	}

	err := p.Compile()
	assert.ErrorIs(t, err, filename.ErrPatternInvalid)
}

func TestLookupAndNames(t *testing.T) {
	r := filename.New()
	p := &filename.Pattern{Name: "p1", Fragments: []filename.Fragment{{Literal: "x"}}}
	require.NoError(t, p.Compile())
	require.True(t, r.Register(p))

	got, ok := r.Lookup("p1")
	require.True(t, ok)
	assert.Same(t, p, got)

	assert.Equal(t, []string{"p1"}, r.Names())
}

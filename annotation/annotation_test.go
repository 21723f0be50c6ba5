package annotation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/annotation"
)

func TestPlainValue(t *testing.T) {
	v := annotation.PlainValue("hello")
	assert.True(t, v.IsPlain())
	assert.Equal(t, "hello", v.String())
}

func TestFragmentValueString(t *testing.T) {
	v := annotation.Value{Fragments: []annotation.Fragment{
		{Text: "see "},
		{Text: "code", Markup: "code"},
		{Text: " here"},
	}}
	assert.False(t, v.IsPlain())
	assert.Equal(t, "see code here", v.String())
}

func TestSetOrderAndOverwrite(t *testing.T) {
	s := annotation.NewSet()
	s.Set("b", annotation.PlainValue("2"))
	s.Set("a", annotation.PlainValue("1"))
	s.Set("b", annotation.PlainValue("overwritten"))

	assert.Equal(t, []string{"b", "a"}, s.Names())
	assert.Equal(t, 2, s.Len())

	v, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "overwritten", v.Plain)
}

func TestDescriptionSetString(t *testing.T) {
	d := &annotation.DescriptionSet{}
	d.Append(annotation.PlainValue("first"))
	d.Append(annotation.PlainValue("second"))

	assert.Equal(t, "first\n\nsecond", d.String())
}

func TestDescriptionSetStringEmpty(t *testing.T) {
	d := &annotation.DescriptionSet{}
	assert.Equal(t, "", d.String())
}

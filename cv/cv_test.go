package cv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/cv"
)

func resolveNone(string) (*cv.CV, bool) { return nil, false }

func TestAddTermAndLookup(t *testing.T) {
	c := cv.New("tissue", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "blood", AltKeys: []string{"whole-blood"}, Name: "Blood"}))

	term, ok := c.Lookup("blood")
	require.True(t, ok)
	assert.Equal(t, "Blood", term.Name)

	term, ok = c.Lookup("whole-blood")
	require.True(t, ok)
	assert.Equal(t, "blood", term.Key)
}

func TestAddTermDuplicateKey(t *testing.T) {
	c := cv.New("tissue", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "blood"}))

	err := c.AddTerm(&cv.Term{Key: "blood"})
	assert.ErrorIs(t, err, cv.ErrDuplicateTerm)
}

func TestAddTermDuplicateAltKeyAgainstOtherPrimary(t *testing.T) {
	c := cv.New("tissue", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "blood"}))

	err := c.AddTerm(&cv.Term{Key: "plasma", AltKeys: []string{"blood"}})
	assert.ErrorIs(t, err, cv.ErrDuplicateTerm)
}

func TestResolveAncestorClosure(t *testing.T) {
	c := cv.New("anatomy", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "organ"}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "liver", Parents: []string{"organ"}}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "liver-lobe", Parents: []string{"liver"}}))

	require.NoError(t, c.Resolve())

	anc, err := c.Ancestors("liver-lobe")
	require.NoError(t, err)
	assert.Equal(t, []string{"liver", "organ"}, anc)

	anc, err = c.Ancestors("organ")
	require.NoError(t, err)
	assert.Empty(t, anc)
}

func TestResolveDetectsCycle(t *testing.T) {
	c := cv.New("cyclic", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "a", Parents: []string{"b"}}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "b", Parents: []string{"a"}}))

	err := c.Resolve()
	assert.ErrorIs(t, err, cv.ErrCycle)
}

func TestAncestorsBeforeResolve(t *testing.T) {
	c := cv.New("x", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "a"}))

	_, err := c.Ancestors("a")
	assert.ErrorIs(t, err, cv.ErrUnresolved)
}

func TestAliasTermUnionOfKeys(t *testing.T) {
	c := cv.New("grouped", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "a"}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "b"}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "ab", IsAlias: true, Parents: []string{"a", "b"}}))

	require.NoError(t, c.Resolve())

	assert.Equal(t, []string{"a", "b"}, c.UnionOfKeys("ab"))

	anc, err := c.Ancestors("ab")
	require.NoError(t, err)
	assert.Empty(t, anc)
}

func TestValidateSimpleCV(t *testing.T) {
	c := cv.New("tissue", cv.Simple)
	require.NoError(t, c.AddTerm(&cv.Term{Key: "blood"}))

	assert.NoError(t, c.Validate("blood", resolveNone))
	assert.ErrorIs(t, c.Validate("missing", resolveNone), cv.ErrTermNotFound)
}

func TestValidateMetaCVUnion(t *testing.T) {
	a := cv.New("a", cv.Simple)
	require.NoError(t, a.AddTerm(&cv.Term{Key: "x"}))

	b := cv.New("b", cv.Simple)
	require.NoError(t, b.AddTerm(&cv.Term{Key: "y"}))

	meta := cv.NewUnion("meta", []string{"a", "b"})

	resolve := func(name string) (*cv.CV, bool) {
		switch name {
		case "a":
			return a, true
		case "b":
			return b, true
		default:
			return nil, false
		}
	}

	assert.NoError(t, meta.Validate("x", resolve))
	assert.NoError(t, meta.Validate("y", resolve))
	assert.Error(t, meta.Validate("z", resolve))
}

func TestUnresolvedCV(t *testing.T) {
	c := cv.NewUnresolved("remote", []string{"https://example.org/terms"})
	assert.True(t, c.IsUnresolved())

	err := c.Validate("anything", resolveNone)
	assert.ErrorIs(t, err, cv.ErrUnresolved)

	require.NoError(t, c.AddTerm(&cv.Term{Key: "anything"}))
	assert.False(t, c.IsUnresolved())
}

func TestKeysAndLen(t *testing.T) {
	c := cv.New("x", cv.Simple)
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.AddTerm(&cv.Term{Key: "a"}))
	require.NoError(t, c.AddTerm(&cv.Term{Key: "b"}))

	assert.Equal(t, []string{"a", "b"}, c.Keys())
	assert.Equal(t, 2, c.Len())
}

package termfile_test

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // matching the package under test's content digest
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/cv/termfile"
)

func TestParseBasic(t *testing.T) {
	input := "blood|whole-blood\tBlood\t\nplasma\tPlasma\ttissue,fluid\n"

	terms, err := termfile.Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, terms, 2)

	assert.Equal(t, "blood", terms[0].Key)
	assert.Equal(t, []string{"whole-blood"}, terms[0].AltKeys)
	assert.Equal(t, "Blood", terms[0].Name)
	assert.Empty(t, terms[0].Parents)

	assert.Equal(t, "plasma", terms[1].Key)
	assert.Equal(t, []string{"tissue", "fluid"}, terms[1].Parents)
}

func TestParseSkipsBlankAndMetadataLines(t *testing.T) {
	input := "# comment\n\nblood\tBlood\n"

	terms, err := termfile.Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "blood", terms[0].Key)
}

func TestParseAliasMarksNextTerm(t *testing.T) {
	input := "a\tA\nb\tB\n#alias\nab\tAB\ta,b\n"

	terms, err := termfile.Parse(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, terms, 3)

	assert.False(t, terms[0].IsAlias)
	assert.True(t, terms[2].IsAlias)
	assert.Equal(t, []string{"a", "b"}, terms[2].Parents)
}

func TestParseMalformedLine(t *testing.T) {
	_, err := termfile.Parse(strings.NewReader("\tNoKey\n"), nil)
	assert.ErrorIs(t, err, termfile.ErrMalformed)
}

func TestParseMissingNameField(t *testing.T) {
	_, err := termfile.Parse(strings.NewReader("onlykey\n"), nil)
	assert.ErrorIs(t, err, termfile.ErrMalformed)
}

func TestParseAccumulatesDigest(t *testing.T) {
	input := "blood\tBlood\n"
	digest := sha1.New() //nolint:gosec

	_, err := termfile.Parse(strings.NewReader(input), digest)
	require.NoError(t, err)

	want := sha1.Sum([]byte(input)) //nolint:gosec
	assert.Equal(t, want[:], digest.Sum(nil))
}

func TestWriteRoundTrip(t *testing.T) {
	terms := []termfile.Term{
		{Key: "a", AltKeys: []string{"alpha"}, Name: "A"},
		{Key: "ab", Name: "AB", Parents: []string{"a", "b"}, IsAlias: true},
	}

	var buf bytes.Buffer
	require.NoError(t, termfile.Write(&buf, terms))

	parsed, err := termfile.Parse(&buf, nil)
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, terms[0].Key, parsed[0].Key)
	assert.Equal(t, terms[0].AltKeys, parsed[0].AltKeys)
	assert.True(t, parsed[1].IsAlias)
	assert.Equal(t, []string{"a", "b"}, parsed[1].Parents)
}

func TestSHA1MatchesWrittenBytes(t *testing.T) {
	terms := []termfile.Term{{Key: "a", Name: "A"}}

	sum, err := termfile.SHA1(terms)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, termfile.Write(&buf, terms))
	want := sha1.Sum(buf.Bytes()) //nolint:gosec

	assert.Equal(t, want, sum)
}

package ingest_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bpmodel.dev/model/bpmodel"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/cv"
	"go.bpmodel.dev/model/domain"
	"go.bpmodel.dev/model/ingest"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/pattern"
)

func testModel(t *testing.T) *bpmodel.Model {
	t.Helper()

	tissue := cv.New("tissue", cv.Simple)
	require.NoError(t, tissue.AddTerm(&cv.Term{Key: "blood", Name: "Blood"}))
	require.NoError(t, tissue.Resolve())

	cvs := omap.New[*cv.CV]()
	require.True(t, cvs.SetUnique("tissue", tissue))

	nullCV := cv.New("nullCV", cv.Simple)
	require.NoError(t, nullCV.AddTerm(&cv.Term{Key: "NA"}))
	require.NoError(t, nullCV.Resolve())

	return &bpmodel.Model{
		CVs:      cvs,
		NullCV:   nullCV,
		Patterns: pattern.New(),
	}
}

func testConcept(t *testing.T) *domain.Concept {
	t.Helper()

	cs := column.NewColumnSet()
	require.NoError(t, cs.Add(&column.Column{Name: "id", Type: &column.ColumnType{Usage: column.UsageRequired}}))
	require.NoError(t, cs.Add(&column.Column{
		Name: "tissue",
		Type: &column.ColumnType{
			Usage:       column.UsageRequired,
			Restriction: &column.Restriction{Kind: column.RestrictionCV, Name: "tissue"},
		},
	}))
	require.NoError(t, cs.Add(&column.Column{Name: "notes", Type: &column.ColumnType{Usage: column.UsageOptional}}))

	return &domain.Concept{Name: "Sample", ColumnSet: cs}
}

func readerFrom(records []ingest.Record) ingest.Reader {
	i := 0

	return func(_ context.Context) (ingest.Record, error) {
		if i >= len(records) {
			return nil, io.EOF
		}

		r := records[i]
		i++

		return r, nil
	}
}

func TestDriverRunValidatesAndCommits(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	records := []ingest.Record{
		{"id": "s1", "tissue": "blood"},
		{"id": "s2", "tissue": "blood", "notes": "ok"},
	}

	var committed []ingest.Record

	commit := func(_ context.Context, batch []ingest.Record) error {
		committed = append(committed, batch...)

		return nil
	}

	err := d.Run(context.Background(), readerFrom(records), commit, func([]ingest.RecordError) bool { return true })
	require.NoError(t, err)
	assert.Len(t, committed, 2)
}

func TestDriverRunSkipsInvalidRecordsWhenContinuing(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	records := []ingest.Record{
		{"id": "s1", "tissue": "blood"},
		{"id": "s2", "tissue": "plasma"}, // not a member of the cv
		{"id": "s3", "tissue": "blood"},
	}

	var committed []ingest.Record
	var seenErrs []ingest.RecordError

	commit := func(_ context.Context, batch []ingest.Record) error {
		committed = append(committed, batch...)

		return nil
	}

	cont := func(errs []ingest.RecordError) bool {
		seenErrs = append(seenErrs, errs...)

		return true
	}

	err := d.Run(context.Background(), readerFrom(records), commit, cont)
	require.NoError(t, err)
	assert.Len(t, committed, 2)
	require.Len(t, seenErrs, 1)
	assert.Equal(t, 1, seenErrs[0].Index)
	assert.ErrorIs(t, seenErrs[0].Err, ingest.ErrValidation)
}

func TestDriverRunAbortsWhenContinueReturnsFalse(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	records := []ingest.Record{
		{"id": "s1", "tissue": "plasma"},
		{"id": "s2", "tissue": "blood"},
	}

	commit := func(_ context.Context, _ []ingest.Record) error { return nil }
	cont := func([]ingest.RecordError) bool { return false }

	err := d.Run(context.Background(), readerFrom(records), commit, cont)
	assert.ErrorIs(t, err, ingest.ErrAborted)
}

func TestDriverRunRejectsMissingRequiredColumn(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	records := []ingest.Record{{"id": "s1"}}

	var seenErrs []ingest.RecordError

	commit := func(_ context.Context, _ []ingest.Record) error { return nil }
	cont := func(errs []ingest.RecordError) bool {
		seenErrs = append(seenErrs, errs...)

		return true
	}

	require.NoError(t, d.Run(context.Background(), readerFrom(records), commit, cont))
	require.Len(t, seenErrs, 1)
}

func TestDriverRunRejectsNullOnRequiredColumn(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	records := []ingest.Record{{"id": "s1", "tissue": "NA"}}

	var seenErrs []ingest.RecordError

	commit := func(_ context.Context, _ []ingest.Record) error { return nil }
	cont := func(errs []ingest.RecordError) bool {
		seenErrs = append(seenErrs, errs...)

		return true
	}

	require.NoError(t, d.Run(context.Background(), readerFrom(records), commit, cont))
	require.Len(t, seenErrs, 1)
}

func TestDriverRunBatchSizeSplitsCommits(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t), ingest.WithBatchSize(1))

	records := []ingest.Record{
		{"id": "s1", "tissue": "blood"},
		{"id": "s2", "tissue": "blood"},
	}

	var commitCalls atomic.Int32

	commit := func(_ context.Context, _ []ingest.Record) error {
		commitCalls.Add(1)

		return nil
	}

	err := d.Run(context.Background(), readerFrom(records), commit, func([]ingest.RecordError) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, int32(2), commitCalls.Load())
}

func TestDriverRunPropagatesReadError(t *testing.T) {
	d := ingest.New(testModel(t), testConcept(t))

	readErr := errors.New("boom")
	read := func(_ context.Context) (ingest.Record, error) { return nil, readErr }

	commit := func(_ context.Context, _ []ingest.Record) error { return nil }

	err := d.Run(context.Background(), read, commit, func([]ingest.RecordError) bool { return true })
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
}

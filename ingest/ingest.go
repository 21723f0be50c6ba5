// Package ingest implements the bulk-ingest driver of spec.md §5/§7: batched
// validation of caller-supplied records against a resolved
// [go.bpmodel.dev/model/domain.Concept]'s column-set, with per-record
// failures collected and handed to a continuation decision rather than
// aborting the batch outright.
//
// The actual record source (a file or row reader) and the actual commit
// destination (a document-store or search-index client) are both excluded
// external collaborators, per spec.md §1 — Driver only calls the functions
// the caller supplies for them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"go.bpmodel.dev/model/bpmodel"
	"go.bpmodel.dev/model/column"
	"go.bpmodel.dev/model/domain"
)

// Record is one raw input row: column name to its raw text value, prior to
// any type coercion. Ingest validates in this representation rather than a
// richer typed one since every primitive type (§6.2) round-trips through a
// string on the wire (CV keys, pattern-matched text, numeric literals).
type Record map[string]string

// Reader is the caller-supplied record source. It returns [io.EOF] to
// signal a clean end of input; any other error aborts the run.
type Reader func(ctx context.Context) (Record, error)

// Committer is the caller-supplied batch sink — the actual backend client
// call. It receives the batch's validated records; Driver never inspects
// its return value besides the error.
type Committer func(ctx context.Context, batch []Record) error

// Continue is consulted after each rejected record, with a slice holding
// that record's [RecordError]. Returning false aborts the run with
// [ErrAborted] after the records validated so far in the current batch
// are committed.
type Continue func(errs []RecordError) bool

// RecordError reports one record's validation failure, identified by its
// position in the overall input stream (0-based).
type RecordError struct {
	Index int
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Err)
}

// Error kinds returned by this package.
var (
	// ErrAborted is returned by [Driver.Run] when a [Continue] callback
	// returns false.
	ErrAborted = errors.New("ingest: aborted by continuation callback")

	// ErrValidation is the root of every per-record validation failure
	// wrapped into a [RecordError]: missing required column, value not a
	// member of its CV, pattern mismatch, or disallowed null.
	ErrValidation = errors.New("ingest: validation failed")
)

const defaultBatchSize = 20000

// Option configures a [Driver].
type Option func(*Driver)

// WithBatchSize overrides the default batch size of 20 000 records.
func WithBatchSize(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// Driver validates records read from a [Reader] against one concept's
// column-set, batches them, and hands each batch to a [Committer].
type Driver struct {
	model     *bpmodel.Model
	concept   *domain.Concept
	batchSize int
}

// New returns a [Driver] that validates records against concept's resolved
// column-set, using m for CV/null-sentinel lookups.
func New(m *bpmodel.Model, concept *domain.Concept, opts ...Option) *Driver {
	d := &Driver{model: m, concept: concept, batchSize: defaultBatchSize}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run drives the read-validate-commit loop to completion: it reads records
// from read until read returns [io.EOF], groups them into batches of
// d.batchSize, validates each batch on the calling goroutine while the
// previous batch's Committer call runs concurrently via
// [golang.org/x/sync/errgroup], and calls cont after each record that
// fails validation. Run is cancellable between records via ctx; an in-flight
// batch always finishes committing or returns its commit error whole — no
// partial batch state is ever observable by the caller.
func (d *Driver) Run(ctx context.Context, read Reader, commit Committer, cont Continue) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		batch []Record
		index int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		pending := batch
		batch = nil

		g.Go(func() error {
			return commit(gctx, pending)
		})

		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()

			return err
		}

		rec, err := read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			_ = g.Wait()

			return fmt.Errorf("ingest: read: %w", err)
		}

		var recErrs []RecordError

		if verr := d.validate(rec); verr != nil {
			recErrs = append(recErrs, RecordError{Index: index, Err: verr})
		} else {
			batch = append(batch, rec)
		}

		index++

		if len(recErrs) > 0 && !cont(recErrs) {
			if err := flush(); err != nil {
				return err
			}

			if err := g.Wait(); err != nil {
				return err
			}

			return ErrAborted
		}

		if len(batch) >= d.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	return g.Wait()
}

// validate checks rec against d.concept's column-set: every required
// column present, every value a member of its restriction (CV or pattern),
// and every null sentinel disallowed in a required column (spec.md §7).
func (d *Driver) validate(rec Record) error {
	for _, col := range d.concept.ColumnSet.Columns() {
		v, present := rec[col.Name]

		required := col.Type != nil && (col.Type.Usage == column.UsageRequired || col.Type.Usage == column.UsageIDRef)

		if !present || v == "" {
			if d.model.IsValidNull(v) {
				continue
			}

			if required {
				return fmt.Errorf("%w: %s: missing required value", ErrValidation, col.Name)
			}

			continue
		}

		if d.model.IsValidNull(v) {
			if required {
				return fmt.Errorf("%w: %s: null not permitted", ErrValidation, col.Name)
			}

			continue
		}

		if col.Type == nil || col.Type.Restriction == nil {
			continue
		}

		if err := d.validateRestriction(col, v); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrValidation, col.Name, err)
		}
	}

	return nil
}

func (d *Driver) validateRestriction(col *column.Column, v string) error {
	switch col.Type.Restriction.Kind {
	case column.RestrictionCV:
		cv, ok := d.model.LookupCV(col.Type.Restriction.Name)
		if !ok {
			return fmt.Errorf("unknown cv %s", col.Type.Restriction.Name)
		}

		return cv.Validate(v, d.model.LookupCV)
	case column.RestrictionPattern:
		p, ok := d.model.Patterns.Lookup(col.Type.Restriction.Name)
		if !ok {
			return fmt.Errorf("unknown pattern %s", col.Type.Restriction.Name)
		}

		if !p.MatchString(v) {
			return fmt.Errorf("value %q does not match pattern %s", v, col.Type.Restriction.Name)
		}

		return nil
	default:
		return nil
	}
}

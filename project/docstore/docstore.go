// Package docstore implements the document-store half of the backend
// projector (C11): turning a [project.Document] into an inert create+index
// plan and the metadata-collection documents of spec.md §4.9, plus the
// oversize-CV fragmentation of the same section.
//
// Neither this package nor [go.bpmodel.dev/model/project/searchindex]
// invokes a real backend client; each produces a plan the caller hands to
// its own MongoDB/Elasticsearch driver (spec.md §1).
package docstore

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"go.bpmodel.dev/model/project"
)

// Standing auxiliary indices every metadata collection carries (spec.md
// §4.9: "Three standing auxiliary indices are added to the metadata
// collection: term, parents, ancestors").
var metadataIndices = []string{"term", "parents", "ancestors"}

// Options configures [Project].
type Options struct {
	// MetadataCollection names the collection model/domain/concept/CV
	// documents are written into. Required.
	MetadataCollection string

	// MaxTerms and MaxBytes bound [FragmentCV]; zero means the spec.md
	// §4.9 defaults (256 terms, 16 MiB minus a safety margin).
	MaxTerms int
	MaxBytes int
}

const (
	defaultMaxTerms = 256
	maxDocBytes     = 16 << 20
	safetyMargin    = 64 << 10 // headroom for the BSON document envelope itself
	defaultMaxBytes = maxDocBytes - safetyMargin
)

// CollectionPlan is one collection's create+index plan.
type CollectionPlan struct {
	Path    string
	Indices []project.IndexDoc
}

// MetadataDoc is one document destined for the metadata collection: a
// model header, a domain, a concept, or a CV (segment).
type MetadataDoc struct {
	Kind string // "model", "domain", "concept", or "cv"
	ID   string
	Body any
}

// Plan is the inert result of [Project]: one [CollectionPlan] per declared
// collection, the metadata collection's own create+index plan, and the
// metadata documents to insert into it.
type Plan struct {
	Collections        []*CollectionPlan
	MetadataCollection *CollectionPlan
	MetadataDocs       []*MetadataDoc
}

// ErrBackendError is returned, wrapping the offending collection or index
// name, when building a plan fails.
var ErrBackendError = fmt.Errorf("docstore: backend error")

// Project builds a [Plan] from ser. Each declared collection's plan is
// built concurrently with [golang.org/x/sync/errgroup] (one goroutine per
// collection, since per spec.md §5 collections are disjoint); the metadata
// documents are built on the calling goroutine afterward, since they read
// across every domain/CV rather than one collection at a time.
func Project(ctx context.Context, ser *project.Document, opts Options) (*Plan, error) {
	if opts.MetadataCollection == "" {
		return nil, fmt.Errorf("%w: metadata collection name is required", ErrBackendError)
	}

	plan := &Plan{
		MetadataCollection: &CollectionPlan{Path: opts.MetadataCollection, Indices: standingIndices()},
	}

	paths := make([]string, 0, len(ser.Collections))
	for path := range ser.Collections {
		paths = append(paths, path)
	}

	results := make([]*CollectionPlan, len(paths))

	g, _ := errgroup.WithContext(ctx)

	for i, path := range paths {
		i, path := i, path

		g.Go(func() error {
			col := ser.Collections[path]

			cp, err := buildCollectionPlan(col)
			if err != nil {
				return fmt.Errorf("%w: collection %s: %w", ErrBackendError, path, err)
			}

			results[i] = cp

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan.Collections = results

	plan.MetadataDocs = buildMetadataDocs(ser, opts)

	return plan, nil
}

func buildCollectionPlan(col *project.CollectionDoc) (*CollectionPlan, error) {
	return &CollectionPlan{Path: col.Path, Indices: convertIndices(col.Indices)}, nil
}

func convertIndices(in []project.IndexDoc) []project.IndexDoc {
	out := make([]project.IndexDoc, len(in))
	copy(out, in)

	return out
}

func standingIndices() []project.IndexDoc {
	out := make([]project.IndexDoc, 0, len(metadataIndices))

	for _, name := range metadataIndices {
		out = append(out, project.IndexDoc{Unique: false, Columns: []project.IndexColumnDoc{{Column: name, Direction: 1}}})
	}

	return out
}

// buildMetadataDocs produces one document for the model header, one per
// concept-domain, one per concept, and one per CV (or, for an oversize CV,
// one per fragment), in that order (spec.md §4.9).
func buildMetadataDocs(ser *project.Document, opts Options) []*MetadataDoc {
	var docs []*MetadataDoc

	docs = append(docs, &MetadataDoc{
		Kind: "model",
		ID:   "model",
		Body: map[string]any{
			"_id":         "model",
			"project":     ser.Project,
			"schemaVer":   ser.SchemaVer,
			"annotations": ser.Annotations,
		},
	})

	for _, name := range sortedKeys(ser.Domains) {
		d := ser.Domains[name]

		docs = append(docs, &MetadataDoc{Kind: "domain", ID: d.Name, Body: d})

		for _, c := range d.Concepts {
			docs = append(docs, &MetadataDoc{Kind: "concept", ID: c.ID, Body: c})
		}
	}

	maxTerms, maxBytes := opts.MaxTerms, opts.MaxBytes
	if maxTerms == 0 {
		maxTerms = defaultMaxTerms
	}

	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}

	for _, name := range sortedKeys(ser.CVs) {
		cv := ser.CVs[name]

		segments := FragmentCV(cv, maxTerms, maxBytes)

		for _, seg := range segments {
			id := seg.ID
			if id == "" {
				id = seg.CorrelationID
			}

			docs = append(docs, &MetadataDoc{Kind: "cv", ID: id, Body: seg})
		}
	}

	return docs
}

// sortedKeys returns m's keys, sorted, for deterministic metadata-document
// ordering independent of Go's randomized map iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

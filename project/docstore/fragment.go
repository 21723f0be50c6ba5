package docstore

import (
	"go.bpmodel.dev/model/project"
)

// FragmentCV implements spec.md §4.9's oversize-CV fragmentation. If cv's
// term count exceeds maxTerms, or its estimated serialized size exceeds
// maxBytes, it is split into N segments of at most maxTerms terms each,
// every segment also kept under maxBytes. The first segment retains _id,
// description, annotations, and num-segments=N; every later segment omits
// those four fields but repeats name and a correlation key equal to the
// first segment's id (P6).
//
// A CV that fits within both bounds is returned as a single segment
// carrying every field (N=1 is never set on it, matching the single-segment
// case of an ordinary, non-oversize CV).
func FragmentCV(cv *project.CVDoc, maxTerms, maxBytes int) []*project.CVSegment {
	if maxTerms <= 0 {
		maxTerms = defaultMaxTerms
	}

	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	if !needsFragmentation(cv, maxTerms, maxBytes) {
		return []*project.CVSegment{{
			ID:          cv.ID,
			Name:        cv.Name,
			Description: cv.Description,
			Annotations: cv.Annotations,
			Terms:       cv.Terms,
		}}
	}

	batches := splitTerms(cv.Terms, maxTerms, maxBytes)

	segments := make([]*project.CVSegment, len(batches))

	for i, batch := range batches {
		seg := &project.CVSegment{
			Name:          cv.Name,
			CorrelationID: cv.ID,
			Terms:         batch,
		}

		if i == 0 {
			seg.ID = cv.ID
			seg.Description = cv.Description
			seg.Annotations = cv.Annotations
			seg.NumSegments = len(batches)
		}

		segments[i] = seg
	}

	return segments
}

func needsFragmentation(cv *project.CVDoc, maxTerms, maxBytes int) bool {
	if len(cv.Terms) > maxTerms {
		return true
	}

	return estimateSize(cv.ID, cv.Name, cv.Description, cv.Annotations, cv.Terms) > maxBytes
}

// splitTerms greedily packs terms into batches of at most maxTerms terms
// each, starting a new batch early if adding the next term would push the
// running batch over maxBytes. Every term is conservatively sized as if it
// were in a first segment, so a split computed this way never later
// exceeds maxBytes once the first batch's fixed fields are added back in
// by the caller.
func splitTerms(terms []project.TermDoc, maxTerms, maxBytes int) [][]project.TermDoc {
	var batches [][]project.TermDoc

	var current []project.TermDoc

	currentSize := fixedOverheadSize

	for _, t := range terms {
		termSize := termByteSize(t)

		if len(current) > 0 && (len(current) >= maxTerms || currentSize+termSize > maxBytes) {
			batches = append(batches, current)
			current = nil
			currentSize = fixedOverheadSize
		}

		current = append(current, t)
		currentSize += termSize
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	if len(batches) == 0 {
		batches = [][]project.TermDoc{{}}
	}

	return batches
}

// fixedOverheadSize approximates the BSON envelope of a segment document
// exclusive of its terms array: _id, name, description, annotations,
// num-segments, correlation key.
const fixedOverheadSize = 512

func estimateSize(id, name, description string, annotations map[string]string, terms []project.TermDoc) int {
	size := fixedOverheadSize + len(id) + len(name) + len(description)

	for k, v := range annotations {
		size += len(k) + len(v)
	}

	for _, t := range terms {
		size += termByteSize(t)
	}

	return size
}

func termByteSize(t project.TermDoc) int {
	size := len(t.ID) + len(t.Term) + len(t.Name)

	for _, a := range t.AltID {
		size += len(a)
	}

	for _, p := range t.Parents {
		size += len(p)
	}

	for _, a := range t.Ancestors {
		size += len(a)
	}

	for _, u := range t.UnionOf {
		size += len(u)
	}

	// Per-field BSON key/type overhead, approximated as a flat constant
	// rather than walking the exact wire encoding.
	size += 64

	return size
}

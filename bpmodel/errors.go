package bpmodel

import (
	"errors"
	"fmt"
)

// wrapNamed wraps kind with a name, e.g. wrapNamed(ErrDuplicateName, "donor")
// produces an error whose message is "bpmodel: duplicate name: donor" and
// that still satisfies errors.Is(err, kind).
func wrapNamed(kind error, name string) error {
	return fmt.Errorf("%w: %s", kind, name)
}

// Error kinds returned by this module and its subpackages. None conflates
// with another: callers distinguish failure modes with [errors.Is], and
// wrapped messages (via %w) carry the offending name, path, or location.
var (
	// ErrSchemaViolation means the model document failed meta-schema
	// validation (C1).
	ErrSchemaViolation = errors.New("bpmodel: schema violation")

	// ErrCorruptArchive means a packaged model's digest manifest did not
	// match the computed digest of one of its members (C2).
	ErrCorruptArchive = errors.New("bpmodel: corrupt archive")

	// ErrUnknownReference means a name lookup against a registry failed:
	// an undeclared CV, pattern, compound type, concept type, concept,
	// concept-domain, or column.
	ErrUnknownReference = errors.New("bpmodel: unknown reference")

	// ErrDuplicateName means a name-keyed registry received a second
	// entry under a name it already holds.
	ErrDuplicateName = errors.New("bpmodel: duplicate name")

	// ErrColumnConflict means merging two column-sets produced a
	// same-name collision that the usage-widening rule does not permit.
	ErrColumnConflict = errors.New("bpmodel: column conflict")

	// ErrCvCycle means a CV term's parents form a cycle.
	ErrCvCycle = errors.New("bpmodel: cv cycle")

	// ErrCvTermNotFound means a key did not resolve to any term of a CV
	// (including its enclosed CVs, for a meta-CV).
	ErrCvTermNotFound = errors.New("bpmodel: cv term not found")

	// ErrUnresolvedCV means term-level validation was attempted against
	// a CV that only carries reference URIs and has not been resolved.
	ErrUnresolvedCV = errors.New("bpmodel: unresolved cv")

	// ErrPatternInvalid means a named pattern or a restriction pattern
	// failed to compile as a regular expression.
	ErrPatternInvalid = errors.New("bpmodel: pattern invalid")

	// ErrIOError wraps a failure opening, reading, or writing a file or
	// archive member.
	ErrIOError = errors.New("bpmodel: io error")

	// ErrBackendError wraps a failure the backend projector reports,
	// always naming the offending collection or index.
	ErrBackendError = errors.New("bpmodel: backend error")
)

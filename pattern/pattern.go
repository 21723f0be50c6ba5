// Package pattern implements the named-pattern half of C4: a registry of
// compiled regular expressions, identified by name, that column-type
// restrictions and filename-pattern capture specifiers can reference.
//
// The null-value CV half of C4 lives on [go.bpmodel.dev/model/bpmodel.Model] as an
// ordinary [go.bpmodel.dev/model/cv.CV], since a null-sentinel vocabulary is
// structurally just a CV bound to a dedicated slot.
package pattern

import (
	"fmt"
	"regexp"

	"go.bpmodel.dev/model/cv"
)

// ErrInvalid wraps a pattern that failed to compile as a regular
// expression.
var ErrInvalid = fmt.Errorf("pattern: invalid")

// Registry is an insertion-ordered set of named, compiled patterns.
type Registry struct {
	byName map[string]*regexp.Regexp
	names  []string
}

// New returns an empty [Registry].
func New() *Registry {
	return &Registry{byName: make(map[string]*regexp.Regexp)}
}

// Register compiles expr and stores it under name. It returns [ErrInvalid]
// if expr does not compile. Register does not check for a duplicate name
// itself — the caller owns the shared name namespace across CVs, patterns,
// and compound/concept types, and is expected to reject a repeat name
// (reported as bpmodel.ErrDuplicateName) before calling Register.
func (r *Registry) Register(name, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
	}

	r.byName[name] = re
	r.names = append(r.names, name)

	return nil
}

// Lookup returns the compiled pattern registered under name.
func (r *Registry) Lookup(name string) (*regexp.Regexp, bool) {
	re, ok := r.byName[name]

	return re, ok
}

// Names returns registered pattern names in declaration order.
func (r *Registry) Names() []string {
	return r.names
}

// IsValidNull reports whether value is one of nullCV's term keys. resolve
// looks up a CV by name, needed only if nullCV is an alias or union.
func IsValidNull(nullCV *cv.CV, value string, resolve func(name string) (*cv.CV, bool)) bool {
	if nullCV == nil {
		return false
	}

	return nullCV.Validate(value, resolve) == nil
}

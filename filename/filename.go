// Package filename implements the filename-pattern registry (C10):
// parametric patterns mapping data-file basenames to a target concept plus
// typed column values extracted from the name itself.
package filename

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.bpmodel.dev/model/scalar"
)

// ErrPatternInvalid means a pattern's literal/capture fragments did not
// compile to a valid regular expression.
var ErrPatternInvalid = errors.New("filename: invalid pattern")

// CaptureSpec describes one named capture group: the primitive type its raw
// text decodes as, and the column on the target concept it maps to.
type CaptureSpec struct {
	Primitive    scalar.Tag
	TargetColumn string
}

// Pattern is one named filename pattern: an ordered sequence of literal
// fragments and typed capture specifiers, compiled into a regular
// expression with named groups plus a capture-name → [CaptureSpec] map.
type Pattern struct {
	Name          string
	TargetConcept string // concept-name; domain is implied by the registry's owner

	// Fragments is the ordered literal/capture sequence as declared. A
	// capture fragment's Name must be non-empty; a literal fragment's
	// Name is empty and Literal holds its text.
	Fragments []Fragment

	re       *regexp.Regexp
	captures map[string]CaptureSpec
}

// Fragment is one piece of a [Pattern]'s declared sequence.
type Fragment struct {
	Literal string      // non-empty for a literal fragment
	Name    string       // capture-group name, non-empty for a capture fragment
	Spec    CaptureSpec  // meaningful only when Name is non-empty
	Regex   string       // the capture's own matching regex, e.g. `[0-9]+`
}

// Compile builds the pattern's regular expression and capture-spec map from
// its Fragments. It must be called once after a Pattern's Fragments are
// fully populated and before [Registry.Register].
func (p *Pattern) Compile() error {
	var sb strings.Builder

	sb.WriteByte('^')

	captures := make(map[string]CaptureSpec)

	for _, f := range p.Fragments {
		if f.Name == "" {
			sb.WriteString(regexp.QuoteMeta(f.Literal))

			continue
		}

		if _, exists := captures[f.Name]; exists {
			return fmt.Errorf("%w: %s: duplicate capture %s", ErrPatternInvalid, p.Name, f.Name)
		}

		groupRegex := f.Regex
		if groupRegex == "" {
			groupRegex = ".+"
		}

		fmt.Fprintf(&sb, "(?P<%s>%s)", f.Name, groupRegex)
		captures[f.Name] = f.Spec
	}

	sb.WriteByte('$')

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPatternInvalid, p.Name, err)
	}

	p.re = re
	p.captures = captures

	return nil
}

// Match is one result of [Registry.MatchConcept]: the pattern that matched,
// the mapped target-column values (type-checked), and the raw extracted
// capture values.
type Match struct {
	Pattern         *Pattern
	MappedValues    map[string]string
	ExtractedValues map[string]string
}

// Registry is the insertion-ordered set of named filename patterns declared
// in a model.
type Registry struct {
	patterns []*Pattern
	byName   map[string]*Pattern
}

// New returns an empty, ready-to-use [Registry].
func New() *Registry {
	return &Registry{byName: make(map[string]*Pattern)}
}

// Register adds p, already [Pattern.Compile]d, to the registry.
func (r *Registry) Register(p *Pattern) bool {
	if _, exists := r.byName[p.Name]; exists {
		return false
	}

	r.byName[p.Name] = p
	r.patterns = append(r.patterns, p)

	return true
}

// Lookup returns the pattern registered under name.
func (r *Registry) Lookup(name string) (*Pattern, bool) {
	p, ok := r.byName[name]

	return p, ok
}

// Names returns pattern names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.Name
	}

	return names
}

// MatchConcept returns every registered pattern whose regex matches
// basename, each paired with its mapped column values and raw captures.
// Multiple patterns may match; per spec.md §9 open question (a), this
// package does not disambiguate — the caller decides how to use a set of
// more than one match.
func (r *Registry) MatchConcept(basename string) []Match {
	var matches []Match

	for _, p := range r.patterns {
		if p.re == nil {
			continue
		}

		groups := p.re.FindStringSubmatch(basename)
		if groups == nil {
			continue
		}

		extracted := make(map[string]string, len(p.captures))
		mapped := make(map[string]string, len(p.captures))

		for i, name := range p.re.SubexpNames() {
			if name == "" || i >= len(groups) {
				continue
			}

			extracted[name] = groups[i]

			if spec, ok := p.captures[name]; ok && scalar.Validate(spec.Primitive, groups[i]) {
				mapped[spec.TargetColumn] = groups[i]
			}
		}

		matches = append(matches, Match{Pattern: p, MappedValues: mapped, ExtractedValues: extracted})
	}

	return matches
}

// Package cv implements the controlled-vocabulary subsystem: named,
// ordered sets of terms that column values and null sentinels validate
// against, plus the "meta" flavor whose effective term set is the ordered
// union of other CVs.
package cv

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/omap"
)

// Error kinds returned by this package. Callers that need the model-wide
// sentinels (bpmodel.ErrCvCycle, bpmodel.ErrCvTermNotFound) map these with
// errors.Is at the boundary, since this package cannot import bpmodel
// without creating an import cycle (bpmodel owns a registry of *CV).
var (
	ErrDuplicateTerm = errors.New("cv: duplicate term")
	ErrTermNotFound  = errors.New("cv: term not found")
	ErrCycle         = errors.New("cv: parent cycle")
	ErrUnresolved    = errors.New("cv: not resolved")
)

// Kind distinguishes a CV that owns its own terms (Simple) from a Meta-CV
// that owns none and whose effective term set is the ordered union of
// other CVs' terms (spec.md §3 "Meta-CV").
type Kind int

const (
	Simple Kind = iota
	Meta
)

// Term is one entry of a [CV]: a primary key, any alternate keys, a
// display name, free text, and — unless IsAlias — a parent-key list whose
// reflexive-free transitive closure becomes Ancestors once the owning CV
// is [CV.Resolve]d.
//
// When IsAlias is true, Parents is reinterpreted as a "union-of" list:
// keys of other terms in the same CV this alias term stands in for. Alias
// terms never receive an ancestor closure (spec.md §4.4 "Parent/ancestor
// closure").
type Term struct {
	Key         string
	AltKeys     []string
	Name        string
	Description string
	Annotations *annotation.Set

	Parents []string
	IsAlias bool
}

// CV is a named controlled vocabulary: either a flat term set (optionally
// with a parent/ancestor hierarchy among its terms) or, when UnionOf is
// non-empty, a Meta-CV whose effective term set is the ordered union of
// the named CVs' term sets. A CV also carries an Unresolved state when it
// only references external URIs whose content was never fetched at load
// time (spec.md §4.4 "Lazy URI-referenced CVs").
type CV struct {
	Name        string
	Kind        Kind
	Description string
	Annotations *annotation.Set

	Terms *omap.Map[*Term]

	// UnionOf names CVs whose term sets combine, in listed order, to
	// form this CV's effective term set (Meta-CV).
	UnionOf []string

	// URIs holds one or more reference URIs for a CV whose content is
	// not fetched at load time. Non-empty URIs with no own Terms makes
	// this CV Unresolved.
	URIs []string

	// ExternalFile names the relative path, from the CV directory, of
	// the line-oriented external file this CV's terms were (or will be)
	// loaded from. Empty for an inline CV.
	ExternalFile string

	resolved  bool
	ancestors map[string][]string // term key -> nearest-first ancestor closure
	keyToTerm map[string]*Term    // every primary and alternate key -> owning term
}

// New returns an empty, ready-to-use [CV] named name.
func New(name string, kind Kind) *CV {
	return &CV{Name: name, Kind: kind, Terms: omap.New[*Term]()}
}

// NewUnion returns a Meta-[CV] whose effective term set is the union, in
// members order, of the named CVs.
func NewUnion(name string, members []string) *CV {
	return &CV{Name: name, Kind: Meta, UnionOf: members}
}

// NewUnresolved returns a [CV] that only carries reference URIs; term-level
// validation against it is [ErrUnresolved] until the caller supplies terms
// via [CV.AddTerm] and [CV.Resolve].
func NewUnresolved(name string, uris []string) *CV {
	return &CV{Name: name, URIs: uris, Terms: omap.New[*Term]()}
}

// IsComposite reports whether this CV defers to other CVs rather than
// owning its own terms.
func (c *CV) IsComposite() bool {
	return len(c.UnionOf) > 0
}

// IsUnresolved reports whether this CV only carries reference URIs and has
// not been populated with terms.
func (c *CV) IsUnresolved() bool {
	return len(c.URIs) > 0 && (c.Terms == nil || c.Terms.Len() == 0)
}

// AddTerm appends t to the vocabulary. It returns [ErrDuplicateTerm] if t's
// primary key or any alternate key collides with an existing term's
// primary or alternate key. AddTerm is only meaningful on a non-composite
// CV.
func (c *CV) AddTerm(t *Term) error {
	if c.Terms == nil {
		c.Terms = omap.New[*Term]()
	}

	for _, k := range append([]string{t.Key}, t.AltKeys...) {
		if _, exists := c.lookupKey(k); exists {
			return fmt.Errorf("%w: %s: %s", ErrDuplicateTerm, c.Name, k)
		}
	}

	c.Terms.Set(t.Key, t)
	c.resolved = false
	c.keyToTerm = nil

	return nil
}

func (c *CV) lookupKey(key string) (*Term, bool) {
	c.buildKeyIndex()

	t, ok := c.keyToTerm[key]

	return t, ok
}

func (c *CV) buildKeyIndex() {
	if c.keyToTerm != nil || c.Terms == nil {
		return
	}

	c.keyToTerm = make(map[string]*Term, c.Terms.Len())

	for _, t := range c.Terms.Values() {
		c.keyToTerm[t.Key] = t

		for _, alt := range t.AltKeys {
			c.keyToTerm[alt] = t
		}
	}
}

// Lookup returns the term whose primary or alternate key is key, on a
// non-composite CV, without chasing UnionOf.
func (c *CV) Lookup(key string) (*Term, bool) {
	if c.Terms == nil {
		return nil, false
	}

	return c.lookupKey(key)
}

// Resolve computes the ancestor closure for every non-alias term, detecting
// cycles among parent references. It is a no-op, returning nil, for a
// composite (Meta/UnionOf) CV. Resolve must be called once after all terms
// are added and before [CV.Ancestors] or [CV.Validate] are used.
func (c *CV) Resolve() error {
	if c.IsComposite() || c.Terms == nil {
		c.resolved = true

		return nil
	}

	c.buildKeyIndex()

	ancestors := make(map[string][]string, c.Terms.Len())

	for _, key := range c.Terms.Keys() {
		term, _ := c.Terms.Get(key)
		if term.IsAlias {
			continue
		}

		closure, err := c.computeClosure(key, nil)
		if err != nil {
			return err
		}

		ancestors[key] = closure
	}

	c.ancestors = ancestors
	c.resolved = true

	return nil
}

// computeClosure walks parent references from key outward, nearest first,
// detecting a cycle by tracking the path taken to reach key.
func (c *CV) computeClosure(key string, path []string) ([]string, error) {
	for _, seen := range path {
		if seen == key {
			return nil, fmt.Errorf("%w: %s: %s", ErrCycle, c.Name, key)
		}
	}

	term, ok := c.Terms.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s", ErrTermNotFound, c.Name, key)
	}

	if term.IsAlias {
		return nil, nil
	}

	path = append(path, key)

	var closure []string

	seen := make(map[string]bool)

	for _, parent := range term.Parents {
		if seen[parent] {
			continue
		}

		seen[parent] = true
		closure = append(closure, parent)

		grandparents, err := c.computeClosure(parent, path)
		if err != nil {
			return nil, err
		}

		for _, gp := range grandparents {
			if !seen[gp] {
				seen[gp] = true
				closure = append(closure, gp)
			}
		}
	}

	return closure, nil
}

// Ancestors returns the nearest-first transitive closure of parent term
// keys for key, on a resolved CV. Returns an empty slice (not an error) for
// an alias term, which carries no ancestor closure.
func (c *CV) Ancestors(key string) ([]string, error) {
	if !c.resolved {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, c.Name)
	}

	if term, ok := c.lookupKey(key); ok && term.IsAlias {
		return nil, nil
	}

	closure, ok := c.ancestors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %s", ErrTermNotFound, c.Name, key)
	}

	return closure, nil
}

// UnionOfKeys returns the alias term at key's reinterpreted "union-of"
// member keys (its Parents field), or nil if key does not name an alias
// term.
func (c *CV) UnionOfKeys(key string) []string {
	term, ok := c.lookupKey(key)
	if !ok || !term.IsAlias {
		return nil
	}

	return term.Parents
}

// Validate reports whether key is a member of this CV's effective term
// set: a primary or alternate key of one of its own terms, or — for a
// Meta-CV — a member of one of its unioned CVs. resolve looks up a CV by
// name, used to chase UnionOf references; a non-composite CV ignores
// resolve and may pass nil. An [CV.IsUnresolved] CV always returns
// [ErrUnresolved].
func (c *CV) Validate(key string, resolve func(name string) (*CV, bool)) error {
	if c.IsUnresolved() {
		return fmt.Errorf("%w: %s", ErrUnresolved, c.Name)
	}

	if len(c.UnionOf) > 0 {
		for _, member := range c.UnionOf {
			target, ok := resolve(member)
			if !ok {
				continue
			}

			if target.Validate(key, resolve) == nil {
				return nil
			}
		}

		return fmt.Errorf("%w: %s: %s", ErrTermNotFound, c.Name, key)
	}

	if _, ok := c.Lookup(key); !ok {
		return fmt.Errorf("%w: %s: %s", ErrTermNotFound, c.Name, key)
	}

	return nil
}

// Keys returns term primary keys in declaration order, for a non-composite
// CV.
func (c *CV) Keys() []string {
	if c.Terms == nil {
		return nil
	}

	return c.Terms.Keys()
}

// Len returns the number of locally declared terms.
func (c *CV) Len() int {
	if c.Terms == nil {
		return 0
	}

	return c.Terms.Len()
}

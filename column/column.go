// Package column holds the column and column-set types shared by the model
// root package and every resolver that builds or merges column sets
// (compound, concepttype, domain, fk). It is a leaf package — like omap and
// annotation, it exists on its own so that those resolvers can build
// *ColumnSet values without importing the root bpmodel package, which in
// turn imports all of them.
package column

import (
	"errors"
	"fmt"

	"go.bpmodel.dev/model/annotation"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/scalar"
)

// ErrDuplicate is returned by [ColumnSet.Add] when a column name is already
// present. Callers that need the model-wide bpmodel.ErrDuplicateName
// sentinel map this with errors.Is at the boundary.
var ErrDuplicate = errors.New("column: duplicate name")

// Usage classifies how required a column's value is.
type Usage int

// The four usage levels, in widening order: a same-name override may
// only widen required to desirable to optional.
const (
	UsageIDRef Usage = iota
	UsageRequired
	UsageDesirable
	UsageOptional
)

// String renders the usage level for diagnostics.
func (u Usage) String() string {
	switch u {
	case UsageIDRef:
		return "idref"
	case UsageRequired:
		return "required"
	case UsageDesirable:
		return "desirable"
	case UsageOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Widens reports whether moving from u to next is a permitted widening
// (required→desirable→optional only; idref never widens into anything, and
// nothing widens into idref).
func (u Usage) Widens(next Usage) bool {
	if u == UsageIDRef || next == UsageIDRef {
		return u == next
	}

	return next >= u
}

// RestrictionKind identifies which of a [ColumnType]'s mutually exclusive
// restrictions is set.
type RestrictionKind int

const (
	RestrictionNone RestrictionKind = iota
	RestrictionPattern
	RestrictionCV
	RestrictionCompound
)

// Restriction narrows the set of valid values for a column beyond its
// primitive tag: a named pattern, a named CV, or a named compound type
// Exactly one of these is meaningful, selected by Kind.
type Restriction struct {
	Kind RestrictionKind
	Name string
}

// Default is a column-type's optional default: either a literal value or a
// reference to a sibling column whose value should be copied.
type Default struct {
	Literal    *annotation.Value // non-nil for a literal default
	ColumnName string            // non-empty for a sibling-column default
}

// IsLiteral reports whether this default is a literal value rather than a
// sibling-column reference.
func (d Default) IsLiteral() bool {
	return d.Literal != nil
}

// ColumnType is the type half of a [Column]: primitive tag, usage,
// optional default, optional restriction, and the array-separator ladder
// that lets a single text value decode into nested dimensions.
type ColumnType struct {
	Primitive   scalar.Tag
	Usage       Usage
	Default     *Default
	Restriction *Restriction
	// Separators holds one single-character separator per array
	// dimension, outermost first. An empty slice means the column is
	// scalar (not an array).
	Separators []rune
}

// IsArray reports whether this column type carries an array-separator
// ladder of depth greater than zero.
func (ct *ColumnType) IsArray() bool {
	return ct != nil && len(ct.Separators) > 0
}

// Column is one entry of a [ColumnSet]: a name, free text, and a
// [ColumnType]. RefConcept/RefColumn are populated only for columns
// synthesized by the related-concept propagator or by weak-entity
// identifier injection; both are empty for locally declared columns.
type Column struct {
	Name        string
	Description string
	Annotations *annotation.Set
	Type        *ColumnType

	// RefConcept/RefColumn record, for a synthesized column, the concept
	// and column it was copied from (back-reference populated by C8/C9).
	RefConcept string
	RefColumn  string
}

// IsRef reports whether this column was synthesized from another concept's
// identifier column.
func (c *Column) IsRef() bool {
	return c.RefConcept != "" || c.RefColumn != ""
}

// ColumnSet is an insertion-ordered mapping from column name to [Column],
// with a tracked subset of names acting as identifiers. Column-set merges
// throughout C6-C9 preserve this ordering.
type ColumnSet struct {
	columns     *omap.Map[*Column]
	identifiers map[string]bool
}

// NewColumnSet returns an empty, ready-to-use [ColumnSet].
func NewColumnSet() *ColumnSet {
	return &ColumnSet{columns: omap.New[*Column](), identifiers: make(map[string]bool)}
}

// Add appends col to the set. It returns [ErrDuplicate] if a column with
// the same name is already present; merging logic in compound, concepttype,
// and domain decides how to combine same-named columns before calling Add,
// per the widening rule honored by [Usage.Widens].
func (cs *ColumnSet) Add(col *Column) error {
	if !cs.columns.SetUnique(col.Name, col) {
		return fmt.Errorf("%w: %s", ErrDuplicate, col.Name)
	}

	if col.Type != nil && col.Type.Usage == UsageIDRef {
		cs.identifiers[col.Name] = true
	}

	return nil
}

// Replace overwrites the column at name (used by widening merges, where the
// wider column type supersedes the narrower one in place, at its original
// position).
func (cs *ColumnSet) Replace(col *Column) {
	cs.columns.Set(col.Name, col)

	if col.Type != nil && col.Type.Usage == UsageIDRef {
		cs.identifiers[col.Name] = true
	} else {
		delete(cs.identifiers, col.Name)
	}
}

// Get returns the column named name.
func (cs *ColumnSet) Get(name string) (*Column, bool) {
	return cs.columns.Get(name)
}

// Has reports whether a column named name exists.
func (cs *ColumnSet) Has(name string) bool {
	return cs.columns.Has(name)
}

// Names returns column names in declaration order.
func (cs *ColumnSet) Names() []string {
	return cs.columns.Keys()
}

// Columns returns columns in declaration order.
func (cs *ColumnSet) Columns() []*Column {
	return cs.columns.Values()
}

// Len returns the number of columns.
func (cs *ColumnSet) Len() int {
	return cs.columns.Len()
}

// Identifiers returns the sub-ordering of this column-set whose members are
// marked idref, in declaration order (used by C9 to compute a target
// concept's identifier column set).
func (cs *ColumnSet) Identifiers() []*Column {
	var ids []*Column

	for _, col := range cs.columns.Values() {
		if cs.identifiers[col.Name] {
			ids = append(ids, col)
		}
	}

	return ids
}

// Clone returns a deep-enough copy: a new ColumnSet with the same Column
// pointers (columns are immutable after construction) in the same order.
func (cs *ColumnSet) Clone() *ColumnSet {
	clone := &ColumnSet{columns: cs.columns.Clone(), identifiers: make(map[string]bool, len(cs.identifiers))}
	for k, v := range cs.identifiers {
		clone.identifiers[k] = v
	}

	return clone
}

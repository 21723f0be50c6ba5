package bpmodel

// Direction is an index column's sort direction.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// IndexColumn is one (column-name, direction) pair of an [Index].
type IndexColumn struct {
	Column    string
	Direction Direction
}

// Index is an ordered sequence of (column, direction) pairs, optionally
// enforcing uniqueness, declared on a [Collection].
type Index struct {
	Unique  bool
	Columns []IndexColumn
}

// Collection is a named destination within the target backend: a path
// string and its ordered set of indices.
type Collection struct {
	Name    string
	Path    string
	Indices []*Index
}

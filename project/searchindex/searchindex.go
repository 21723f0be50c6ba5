// Package searchindex implements the search-index half of the backend
// projector (C11): mapping a [project.Document] to one index per
// collection and one field schema per concept, per spec.md §4.9 and the
// fixed primitive-to-field-type table of §6.2.
package searchindex

import (
	"fmt"
	"sort"

	"go.bpmodel.dev/model/project"
	"go.bpmodel.dev/model/scalar"
)

// fieldTypes is the fixed primitive→search-index field-type table of
// spec.md §6.2.
var fieldTypes = map[scalar.Tag]string{
	scalar.String:    "keyword",
	scalar.Text:      "text",
	scalar.Integer:   "long",
	scalar.Decimal:   "double",
	scalar.Boolean:   "boolean",
	scalar.Timestamp: "date",
	scalar.Duration:  "keyword",
	scalar.Compound:  "nested",
}

// Field is one field of a [Mapping]: its search-index type, whether it is
// an array, and an optional null-value default copied from a literal
// column default.
type Field struct {
	Name         string
	Type         string
	IsArray      bool
	NullValue    string
	HasNullValue bool

	// Fields holds the nested field schema for a "nested" (compound-type)
	// field; empty for every other type.
	Fields []Field
}

// Mapping is one concept's field schema within an [Index].
type Mapping struct {
	ConceptID string
	Fields    []Field
}

// Index is one collection's search index: its mappings, one per concept
// whose Collection names this index.
type Index struct {
	Name     string
	Mappings []Mapping
}

// Plan is the inert result of [Project]: one [Index] per collection path.
type Plan struct {
	Indices []*Index
}

// ErrBackendError is returned, wrapping the offending collection or field
// name, when a concept names a primitive this package does not recognize.
var ErrBackendError = fmt.Errorf("searchindex: backend error")

// Project maps ser to a [Plan]: every collection becomes one [Index], and
// every concept whose Collection names that collection becomes one
// [Mapping] within it. Collections are taken in path order and domains in
// name order; concepts keep their declaration order within a domain.
func Project(ser *project.Document) (*Plan, error) {
	byPath := make(map[string]*Index)

	var order []string

	for _, path := range sortedKeys(ser.Collections) {
		idx := &Index{Name: indexName(ser.Collections[path])}
		byPath[path] = idx
		order = append(order, path)
	}

	for _, dname := range sortedKeys(ser.Domains) {
		d := ser.Domains[dname]

		for _, c := range d.Concepts {
			if c.Collection == "" {
				continue
			}

			idx, ok := byPath[c.Collection]
			if !ok {
				return nil, fmt.Errorf("%w: concept %s: unknown collection %s", ErrBackendError, c.ID, c.Collection)
			}

			mapping, err := buildMapping(c, ser.CompoundTypes)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBackendError, err)
			}

			idx.Mappings = append(idx.Mappings, mapping)
		}
	}

	plan := &Plan{}
	for _, path := range order {
		plan.Indices = append(plan.Indices, byPath[path])
	}

	return plan, nil
}

func indexName(c *project.CollectionDoc) string {
	return c.Name
}

func buildMapping(c *project.ConceptDoc, compoundTypes map[string]*project.CompoundTypeDoc) (Mapping, error) {
	m := Mapping{ConceptID: c.ID}

	for _, col := range c.Columns {
		f, err := buildField(col, compoundTypes)
		if err != nil {
			return Mapping{}, fmt.Errorf("concept %s: column %s: %w", c.ID, col.Name, err)
		}

		m.Fields = append(m.Fields, f)
	}

	return m, nil
}

func buildField(col project.ColumnDoc, compoundTypes map[string]*project.CompoundTypeDoc) (Field, error) {
	fieldType, ok := fieldTypes[scalar.Tag(col.Type.Type)]
	if !ok {
		return Field{}, fmt.Errorf("%w: unknown primitive %s", ErrBackendError, col.Type.Type)
	}

	f := Field{Name: col.Name, Type: fieldType, IsArray: col.Type.IsArray}

	if col.Type.HasDefault && col.Type.DefaultLiteral != "" {
		f.HasNullValue = true
		f.NullValue = col.Type.DefaultLiteral
	}

	if col.Type.Compound != "" {
		f.Type = fieldTypes[scalar.Compound]

		ct, ok := compoundTypes[col.Type.Compound]
		if !ok {
			return Field{}, fmt.Errorf("%w: unknown compound type %s", ErrBackendError, col.Type.Compound)
		}

		for _, sub := range ct.Columns {
			subField, err := buildField(sub, compoundTypes)
			if err != nil {
				return Field{}, fmt.Errorf("compound %s: %w", ct.Name, err)
			}

			f.Fields = append(f.Fields, subField)
		}
	}

	return f, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

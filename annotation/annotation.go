// Package annotation holds the two free-text carriers every entity in a
// go.bpmodel.dev/model [Model] attaches: an ordered name→value [Set], and an
// unnamed [DescriptionSet] sequence.
package annotation

import "go.bpmodel.dev/model/omap"

// Fragment is one piece of a [Value]: either plain text or a markup-tagged
// span (e.g. the content of an inline <em>/<code> element inside an
// annotation's XML body).
type Fragment struct {
	Text   string
	Markup string // empty for plain-text fragments
}

// Value is the value half of a [Set] entry: either a single plain-text
// string or an ordered sequence of [Fragment]s.
type Value struct {
	Plain     string
	Fragments []Fragment // nil when Plain is used
}

// PlainValue returns a [Value] holding a plain-text string.
func PlainValue(s string) Value {
	return Value{Plain: s}
}

// IsPlain reports whether this value is a single plain-text string rather
// than a fragment sequence.
func (v Value) IsPlain() bool {
	return v.Fragments == nil
}

// String renders the value as plain text, concatenating fragment text when
// the value is a fragment sequence.
func (v Value) String() string {
	if v.IsPlain() {
		return v.Plain
	}

	var out []byte
	for _, f := range v.Fragments {
		out = append(out, f.Text...)
	}

	return string(out)
}

// Set is an ordered mapping from annotation name to [Value].
type Set struct {
	entries *omap.Map[Value]
}

// NewSet returns an empty, ready-to-use [Set].
func NewSet() *Set {
	return &Set{entries: omap.New[Value]()}
}

// Set records value under name, preserving declaration order. A later call
// with the same name overwrites the value in place.
func (a *Set) Set(name string, value Value) {
	a.entries.Set(name, value)
}

// Get returns the value stored under name.
func (a *Set) Get(name string) (Value, bool) {
	return a.entries.Get(name)
}

// Names returns annotation names in declaration order.
func (a *Set) Names() []string {
	return a.entries.Keys()
}

// Len returns the number of annotations.
func (a *Set) Len() int {
	return a.entries.Len()
}

// DescriptionSet is an ordered sequence of annotation-like values, used for
// multi-paragraph descriptions that don't carry individual names.
type DescriptionSet struct {
	Values []Value
}

// Append adds value to the end of the sequence.
func (d *DescriptionSet) Append(value Value) {
	d.Values = append(d.Values, value)
}

// String renders all values as plain text, joined with a blank line.
func (d *DescriptionSet) String() string {
	var out string

	for i, v := range d.Values {
		if i > 0 {
			out += "\n\n"
		}

		out += v.String()
	}

	return out
}

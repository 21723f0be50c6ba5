// Package scalar holds the built-in primitive-type registry: the fixed
// set of scalar tags every column-type ultimately resolves to, each with an
// optional validator pattern.
//
// The registry is an immutable table constructed once as a package-level
// value, not a runtime-mutable singleton: there is nothing to lock because
// there is nothing to
// mutate after package initialization.
package scalar

import "regexp"

// Tag identifies a built-in primitive type.
type Tag string

// The fixed set of primitive tags.
const (
	String    Tag = "string"
	Text      Tag = "text"
	Integer   Tag = "integer"
	Decimal   Tag = "decimal"
	Boolean   Tag = "boolean"
	Timestamp Tag = "timestamp"
	Duration  Tag = "duration"
	Compound  Tag = "compound"
)

// Primitive describes one built-in scalar type: its tag and an optional
// validator. A nil Validator always accepts.
type Primitive struct {
	Tag       Tag
	Validator func(string) bool
}

var (
	integerPattern   = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalPattern   = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
	booleanPattern   = regexp.MustCompile(`^(?i:true|false|0|1)$`)
	timestampPattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}(T[0-9]{2}:[0-9]{2}:[0-9]{2}(\.[0-9]+)?(Z|[+-][0-9]{2}:[0-9]{2})?)?$`)
	durationPattern  = regexp.MustCompile(`^-?P(?:[0-9]+Y)?(?:[0-9]+M)?(?:[0-9]+D)?(?:T(?:[0-9]+H)?(?:[0-9]+M)?(?:[0-9]+(?:\.[0-9]+)?S)?)?$`)
)

// registry is the immutable, process-wide primitive-type table. It is built
// once here and never mutated; concurrent reads need no synchronization.
var registry = map[Tag]Primitive{
	String:    {Tag: String, Validator: nil},
	Text:      {Tag: Text, Validator: nil},
	Integer:   {Tag: Integer, Validator: integerPattern.MatchString},
	Decimal:   {Tag: Decimal, Validator: decimalPattern.MatchString},
	Boolean:   {Tag: Boolean, Validator: booleanPattern.MatchString},
	Timestamp: {Tag: Timestamp, Validator: timestampPattern.MatchString},
	Duration:  {Tag: Duration, Validator: durationPattern.MatchString},
	Compound:  {Tag: Compound, Validator: nil},
}

// Lookup returns the built-in [Primitive] for tag and whether it is known.
func Lookup(tag Tag) (Primitive, bool) {
	p, ok := registry[tag]

	return p, ok
}

// Validate reports whether value is well-formed for tag. An unknown tag, or
// a tag with no validator, always validates.
func Validate(tag Tag, value string) bool {
	p, ok := registry[tag]
	if !ok || p.Validator == nil {
		return true
	}

	return p.Validator(value)
}

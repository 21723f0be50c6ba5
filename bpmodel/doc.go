// Package bpmodel loads a declarative, XML-expressed data model for
// semi-structured scientific datasets, resolves every internal reference it
// contains (concept-type inheritance, weak-entity identification,
// cross-domain foreign keys, controlled vocabularies, compound types,
// filename patterns), and hands back a fully linked, invariant-checked,
// content-addressed in-memory [Model].
//
// # Design principles
//
// Three principles guide this package and its subpackages:
//
//  1. Atomic load: [Load] and [LoadArchive] either return a fully resolved
//     [Model] or a single error. A partially built Model is never observable
//     outside this package.
//
//  2. Frozen after load: every entity a [Model] owns is created during
//     loading and mutated only by the resolution passes described in the
//     subpackages of this module. Once Load returns, the Model is read-only
//     and safe for concurrent readers without locking.
//
//  3. Ownership by name: inter-entity references (a related-concept's
//     target, a column's restriction, an index's columns) are resolved
//     through a registry lookup by name rather than a shared pointer, so the
//     directed graphs related-concepts can form never become ownership
//     cycles.
//
// # Resolution pipeline
//
// [Load] drives the components documented in SPEC_FULL.md in this order:
// the source is opened (plain file or packaged archive, see package
// [go.bpmodel.dev/model/archive]), validated against the bundled
// meta-schema (package [go.bpmodel.dev/model/xmlnode]), then resolved in
// declaration order: controlled vocabularies, compound types, concept
// types, concept domains, related-concept foreign-key propagation, and
// finally filename patterns. [go.bpmodel.dev/model/project] traverses the
// result on demand; it never mutates it.
package bpmodel

package bpmodel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bpmodel.dev/model/cv"
	"go.bpmodel.dev/model/cv/termfile"
	"go.bpmodel.dev/model/omap"
	"go.bpmodel.dev/model/xmlnode"
)

// cvFileOpener opens an external CV file by its relative path, as exposed
// by [go.bpmodel.dev/model/archive.Source.OpenCV] — reading it also feeds
// the running cvSHA1/fullmodelSHA1 digest (§6.3).
type cvFileOpener func(relPath string) (io.ReadCloser, error)

// buildCVs parses <cv-declarations><cv>...</cv-declarations> in document
// order, resolving inline terms, external files (via openCV), and
// Meta-CV/alias references against CVs declared earlier in the same
// document (spec.md §4.4: "CVs may reference earlier CVs by name").
func buildCVs(root *xmlnode.Node, openCV cvFileOpener) (*omap.Map[*cv.CV], error) {
	cvs := omap.New[*cv.CV]()

	decls, ok := root.Child("cv-declarations")
	if !ok {
		return cvs, nil
	}

	for _, n := range decls.ChildrenNamed("cv") {
		one, err := parseCV(n, cvs, openCV)
		if err != nil {
			return nil, err
		}

		if !cvs.SetUnique(one.Name, one) {
			return nil, wrapNamed(ErrDuplicateName, one.Name)
		}

		if err := one.Resolve(); err != nil {
			return nil, mapCVErr(err)
		}
	}

	return cvs, nil
}

// buildNullCV parses the document's <null-values> element (if any) into the
// dedicated null-sentinel [cv.CV] (spec.md §4.3).
func buildNullCV(root *xmlnode.Node) (*cv.CV, error) {
	n, ok := root.Child("null-values")
	if !ok {
		return cv.New("nullCV", cv.Simple), nil
	}

	nullCV := cv.New("nullCV", cv.Simple)

	for _, t := range n.ChildrenNamed("term") {
		term, err := parseTerm(t)
		if err != nil {
			return nil, err
		}

		if err := nullCV.AddTerm(term); err != nil {
			return nil, mapCVErr(err)
		}
	}

	if err := nullCV.Resolve(); err != nil {
		return nil, mapCVErr(err)
	}

	return nullCV, nil
}

func parseCV(n *xmlnode.Node, declaredSoFar *omap.Map[*cv.CV], openCV cvFileOpener) (*cv.CV, error) {
	name, _ := n.Attr("id")
	if name == "" {
		name, _ = n.Attr("name")
	}

	if name == "" {
		return nil, fmt.Errorf("%w: cv missing id/name", ErrSchemaViolation)
	}

	if unions := n.ChildrenNamed("union-cv"); len(unions) > 0 {
		members := make([]string, 0, len(unions))

		for _, u := range unions {
			member := u.TrimmedText()

			if !declaredSoFar.Has(member) {
				return nil, fmt.Errorf("%w: %s union-cv %s", ErrUnknownReference, name, member)
			}

			members = append(members, member)
		}

		return cv.NewUnion(name, members), nil
	}

	if uris := n.ChildrenNamed("cv-uri"); len(uris) > 0 && len(n.ChildrenNamed("term")) == 0 {
		var uriList []string
		for _, u := range uris {
			uriList = append(uriList, u.TrimmedText())
		}

		return cv.NewUnresolved(name, uriList), nil
	}

	one := cv.New(name, cv.Simple)

	if d, ok := n.Child("description"); ok {
		one.Description = d.TrimmedText()
	}

	if a, ok := n.Child("annotations"); ok {
		one.Annotations = parseAnnotations(a)
	}

	if file, ok := n.Attr("file"); ok && file != "" {
		one.ExternalFile = file

		if openCV == nil {
			return nil, fmt.Errorf("%w: %s: no cv file opener configured", ErrIOError, name)
		}

		rc, err := openCV(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIOError, name, err)
		}
		defer rc.Close()

		terms, err := termfile.Parse(rc, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrIOError, name, err)
		}

		for _, t := range terms {
			term := &cv.Term{Key: t.Key, AltKeys: t.AltKeys, Name: t.Name, Parents: t.Parents, IsAlias: t.IsAlias}
			if err := one.AddTerm(term); err != nil {
				return nil, mapCVErr(err)
			}
		}

		return one, nil
	}

	for _, t := range n.ChildrenNamed("term") {
		term, err := parseTerm(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		if err := one.AddTerm(term); err != nil {
			return nil, mapCVErr(err)
		}
	}

	return one, nil
}

func parseTerm(n *xmlnode.Node) (*cv.Term, error) {
	key, ok := n.Attr("key")
	if !ok || key == "" {
		return nil, fmt.Errorf("%w: term missing key", ErrSchemaViolation)
	}

	term := &cv.Term{Key: key}

	if name, ok := n.Attr("name"); ok {
		term.Name = name
	}

	if altAttr, ok := n.Attr("altKeys"); ok && altAttr != "" {
		term.AltKeys = splitCSV(altAttr)
	}

	if parentsAttr, ok := n.Attr("parents"); ok && parentsAttr != "" {
		term.Parents = splitCSV(parentsAttr)
	}

	if aliasAttr, ok := n.Attr("alias"); ok {
		if b, err := strconv.ParseBool(aliasAttr); err == nil {
			term.IsAlias = b
		}
	}

	if a, ok := n.Child("annotations"); ok {
		term.Annotations = parseAnnotations(a)
	}

	return term, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// mapCVErr maps a cv-package error to the model-wide error kinds of §7.
func mapCVErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cv.ErrCycle):
		return fmt.Errorf("%w: %w", ErrCvCycle, err)
	case errors.Is(err, cv.ErrTermNotFound):
		return fmt.Errorf("%w: %w", ErrCvTermNotFound, err)
	case errors.Is(err, cv.ErrDuplicateTerm):
		return fmt.Errorf("%w: %w", ErrDuplicateName, err)
	case errors.Is(err, cv.ErrUnresolved):
		return fmt.Errorf("%w: %w", ErrUnresolvedCV, err)
	default:
		return err
	}
}

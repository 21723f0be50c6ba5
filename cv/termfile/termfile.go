// Package termfile parses the external, line-oriented controlled-vocabulary
// file format of spec.md §6.4: one term per line, UTF-8, with a leading
// "#" marking a metadata line rather than a term.
//
// The format is deliberately close to the bitnami readme-generator's
// line-oriented "## @param key [type] description" convention, adapted from
// a one-line-per-parameter comment grammar to a one-line-per-term data
// file: each line holds a key (with optional pipe-separated alternate
// keys), a display name, and an optional comma-separated parent list,
// tab-separated.
package termfile

import (
	"bufio"
	"bytes"
	"crypto/sha1" //nolint:gosec // content digest, not a security boundary
	"fmt"
	"hash"
	"io"
	"strings"
)

// Term is one parsed line: a primary key, its alternate keys, a display
// name, and either its immediate parents or — when IsAlias is set — the
// union-of keys it stands in for (spec.md §4.4 "Parent/ancestor closure").
type Term struct {
	Key     string
	AltKeys []string
	Name    string
	Parents []string
	IsAlias bool
}

// ErrMalformed reports a line that does not parse as a term.
var ErrMalformed = fmt.Errorf("termfile: malformed line")

// Parse reads terms from r, one per non-blank, non-metadata line. A "#alias"
// metadata line marks the very next term line as an alias term (its
// parents field is then read as union-of keys rather than a parent list).
// Any other "#<name> <value>" metadata line is otherwise ignored by this
// package — CV-level metadata (description, annotations) is carried in
// bp-model.xml, not in the external file.
//
// Digest, if non-nil, accumulates every byte read from r — including line
// terminators and skipped metadata/blank lines — so that the caller can
// compute a content digest (e.g. cvSHA1) over exactly the bytes on disk
// regardless of how Parse tokenizes them.
func Parse(r io.Reader, digest hash.Hash) ([]Term, error) {
	src := r
	if digest != nil {
		src = io.TeeReader(r, digest)
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		terms        []Term
		lineNo       int
		pendingAlias bool
	)

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			if trimmed == "#alias" {
				pendingAlias = true
			}

			continue
		}

		term, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("termfile: line %d: %w", lineNo, err)
		}

		term.IsAlias = pendingAlias
		pendingAlias = false

		terms = append(terms, term)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("termfile: %w", err)
	}

	return terms, nil
}

// parseLine splits a tab-separated line into key(|altkeys), name, parents,
// per spec.md §6.4: "primary_key[|alt_key1|alt_key2...]<TAB>name[<TAB>
// parent1,parent2,...]".
func parseLine(line string) (Term, error) {
	fields := strings.Split(line, "\t")

	keyField := strings.TrimSpace(fields[0])
	if keyField == "" {
		return Term{}, ErrMalformed
	}

	keys := strings.Split(keyField, "|")

	term := Term{Key: strings.TrimSpace(keys[0])}
	if term.Key == "" {
		return Term{}, ErrMalformed
	}

	for _, alt := range keys[1:] {
		if alt = strings.TrimSpace(alt); alt != "" {
			term.AltKeys = append(term.AltKeys, alt)
		}
	}

	if len(fields) < 2 {
		return Term{}, ErrMalformed
	}

	term.Name = strings.TrimSpace(fields[1])

	if len(fields) > 2 {
		if parents := strings.TrimSpace(fields[2]); parents != "" {
			for _, p := range strings.Split(parents, ",") {
				if p = strings.TrimSpace(p); p != "" {
					term.Parents = append(term.Parents, p)
				}
			}
		}
	}

	return term, nil
}

// Write serializes terms back to the line-oriented format of spec.md §6.4,
// one per line, in the given order, preceding an alias term with its own
// "#alias" metadata line. It is the inverse of Parse (modulo metadata lines
// other than "#alias" and blank lines, which Parse discards and Write never
// emits besides that one), used when bpmodel.Pack writes each file-backed
// CV back out into a packaged archive.
func Write(w io.Writer, terms []Term) error {
	for _, t := range terms {
		var line bytes.Buffer

		if t.IsAlias {
			line.WriteString("#alias\n")
		}

		line.WriteString(t.Key)

		for _, alt := range t.AltKeys {
			line.WriteByte('|')
			line.WriteString(alt)
		}

		line.WriteByte('\t')
		line.WriteString(t.Name)
		line.WriteByte('\t')
		line.WriteString(strings.Join(t.Parents, ","))
		line.WriteByte('\n')

		if _, err := w.Write(line.Bytes()); err != nil {
			return fmt.Errorf("termfile: %w", err)
		}
	}

	return nil
}

// SHA1 returns the content digest of terms as they would be written by
// Write, matching the digest Parse would accumulate when reading the same
// file back (cvSHA1).
func SHA1(terms []Term) ([20]byte, error) {
	h := sha1.New() //nolint:gosec

	if err := Write(h, terms); err != nil {
		return [20]byte{}, err
	}

	var sum [20]byte
	copy(sum[:], h.Sum(nil))

	return sum, nil
}

// Package archive implements the integrity / packaging layer (C2): opening
// either a standalone XML model document or a sealed ZIP "packaged model"
// archive, computing and verifying the content digests of §6.3, and
// emitting a new packaged archive from raw, already-serialized bytes.
//
// This package never parses the model XML itself — that is [xmlnode]'s and
// [go.bpmodel.dev/model/bpmodel]'s job — it only ever deals in raw bytes and file
// members, consistent with its role as "integrity / packaging", not
// semantic resolution.
package archive

import (
	"archive/zip"
	"bufio"
	"bytes"
	"crypto/sha1" //nolint:gosec // content digest, not a security boundary
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Error kinds returned by this package.
var (
	// ErrCorrupt means a packaged archive's signatures.txt digest did not
	// match the computed digest of the named member.
	ErrCorrupt = errors.New("archive: corrupt")

	// ErrIO wraps a failure opening, reading, or writing a file or
	// archive member.
	ErrIO = errors.New("archive: io error")

	// ErrDuplicateName means two external CV files would flatten to the
	// same case-folded name inside a packaged archive's cv/ directory.
	ErrDuplicateName = errors.New("archive: duplicate cv filename")
)

const (
	modelMember  = "bp-model.xml"
	schemaMember = "bp-schema.xsd"
	sigMember    = "signatures.txt"
	cvDir        = "cv/"
)

// Digests holds the four content digests of §6.3, computed bit-exactly
// regardless of load path (P4).
type Digests struct {
	SchemaSHA1     [20]byte
	ModelSHA1      [20]byte
	CVSHA1         [20]byte
	FullModelSHA1  [20]byte
}

// Source is an opened model source: the raw model bytes, an optional raw
// schema (present only when loaded from a packaged archive), and a way to
// open external CV files by relative path, accumulating their bytes into
// the running cvSHA1/fullmodelSHA1 digests as they are read.
//
// Every successful Open is paired with a Close on every exit path; Close
// removes any temp file this Source extracted, except the schema member,
// which is transferred to the caller (via SchemaPath) and must be removed
// by whoever finishes with it (C1, after meta-schema validation).
type Source struct {
	ModelBytes  []byte
	SchemaBytes []byte // nil for a plain (non-packaged) source
	SchemaPath  string // non-empty only for a packaged source; transferred

	cvHash   hash.Hash
	fullHash hash.Hash

	openCV func(relPath string) (io.ReadCloser, error)

	expected map[string]string // from signatures.txt; nil for plain
	closers  []func() error
}

// OpenPlain opens path as a standalone XML document: it reads the raw
// bytes (feeding modelSHA1), and external CV files it is later asked to
// open are resolved relative to path's directory.
func OpenPlain(path string) (*Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	dir := filepath.Dir(path)

	src := newSource(raw)
	src.openCV = func(relPath string) (io.ReadCloser, error) {
		f, err := os.Open(filepath.Join(dir, relPath))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		return f, nil
	}

	return src, nil
}

// OpenPackaged opens path as a ZIP "packaged model" archive per §6.1,
// extracting bp-schema.xsd (to a temp file, transferred via SchemaPath),
// reading bp-model.xml and signatures.txt fully into memory, and verifying
// schemaSHA1/modelSHA1 against the manifest immediately. cvSHA1 is only
// fully known once every CV member the caller needs has been read through
// [Source.OpenCV]; call [Source.VerifyCVDigest] after resolution completes.
func OpenPackaged(path string) (*Source, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	sigRaw, err := readZipMember(files, sigMember)
	if err != nil {
		zr.Close()

		return nil, err
	}

	expected, err := parseSignatures(sigRaw)
	if err != nil {
		zr.Close()

		return nil, err
	}

	modelRaw, err := readZipMember(files, modelMember)
	if err != nil {
		zr.Close()

		return nil, err
	}

	schemaRaw, err := readZipMember(files, schemaMember)
	if err != nil {
		zr.Close()

		return nil, err
	}

	if sum := sha1Sum(schemaRaw); !digestEquals(sum, expected["schemaSHA1"]) {
		zr.Close()

		return nil, fmt.Errorf("%w: schemaSHA1 mismatch", ErrCorrupt)
	}

	if sum := sha1Sum(modelRaw); !digestEquals(sum, expected["modelSHA1"]) {
		zr.Close()

		return nil, fmt.Errorf("%w: modelSHA1 mismatch", ErrCorrupt)
	}

	tmp, err := os.CreateTemp("", "bp-schema-*.xsd")
	if err != nil {
		zr.Close()

		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if _, err := tmp.Write(schemaRaw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		zr.Close()

		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	tmp.Close()

	src := newSource(modelRaw)
	src.SchemaBytes = schemaRaw
	src.SchemaPath = tmp.Name()
	src.expected = expected
	src.openCV = func(relPath string) (io.ReadCloser, error) {
		f, ok := files[cvDir+relPath]
		if !ok {
			return nil, fmt.Errorf("%w: cv member not found: %s", ErrIO, relPath)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		return rc, nil
	}
	src.closers = append(src.closers, zr.Close)

	return src, nil
}

func newSource(modelBytes []byte) *Source {
	full := sha1.New() //nolint:gosec
	full.Write(modelBytes)

	return &Source{
		ModelBytes: modelBytes,
		cvHash:     sha1.New(), //nolint:gosec
		fullHash:   full,
	}
}

// OpenCV opens the external CV file at relPath (relative to the model's
// directory for a plain source, or cv/relPath inside the archive for a
// packaged one). Every byte read from the returned reader is also fed into
// the running cvSHA1/fullmodelSHA1 digests, so callers must read it to EOF
// for the digests to be accurate — matching §6.3's requirement that every
// line read from every external CV file feeds the digest.
func (s *Source) OpenCV(relPath string) (io.ReadCloser, error) {
	rc, err := s.openCV(relPath)
	if err != nil {
		return nil, err
	}

	return &teeCloser{
		r:      io.TeeReader(rc, io.MultiWriter(s.cvHash, s.fullHash)),
		closer: rc,
	}, nil
}

type teeCloser struct {
	r      io.Reader
	closer io.Closer
}

func (t *teeCloser) Read(p []byte) (int, error) { return t.r.Read(p) }
func (t *teeCloser) Close() error                { return t.closer.Close() }

// Digests returns the digests computed so far. CVSHA1/FullModelSHA1 are
// only meaningful once every CV member the load needs has been read
// through [Source.OpenCV].
func (s *Source) Digests() Digests {
	var d Digests

	copy(d.ModelSHA1[:], sha1Sum(s.ModelBytes))

	if s.SchemaBytes != nil {
		copy(d.SchemaSHA1[:], sha1Sum(s.SchemaBytes))
	}

	copy(d.CVSHA1[:], s.cvHash.Sum(nil))
	copy(d.FullModelSHA1[:], s.fullHash.Sum(nil))

	return d
}

// VerifyCVDigest checks the accumulated cvSHA1 against the packaged
// archive's manifest. It is a no-op for a plain source (s.expected is nil).
func (s *Source) VerifyCVDigest() error {
	if s.expected == nil {
		return nil
	}

	got := fmt.Sprintf("%x", s.cvHash.Sum(nil))
	if got != s.expected["cvSHA1"] {
		return fmt.Errorf("%w: cvSHA1 mismatch", ErrCorrupt)
	}

	return nil
}

// Close removes every temp file this Source extracted, except the schema
// member (transferred to the caller via SchemaPath). It is safe to call
// more than once.
func (s *Source) Close() error {
	var firstErr error

	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.closers = nil

	return firstErr
}

func readZipMember(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: archive missing member %s", ErrCorrupt, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return raw, nil
}

// parseSignatures parses the line-oriented "key: value\n" manifest of §6.1.
func parseSignatures(raw []byte) (map[string]string, error) {
	out := make(map[string]string, 3)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed signatures line %q", ErrCorrupt, line)
		}

		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return out, nil
}

func sha1Sum(b []byte) []byte {
	h := sha1.New() //nolint:gosec
	h.Write(b)

	return h.Sum(nil)
}

func digestEquals(sum []byte, hexExpected string) bool {
	return fmt.Sprintf("%x", sum) == hexExpected
}

// CVFile is one external CV file's content, supplied by the caller for
// [Emit] to flatten into the packaged archive's cv/ directory.
type CVFile struct {
	Name string // the CV's logical name, used to derive the flattened filename
	Ext  string // original extension, preserved on collision-suffixed names
	Data []byte
}

// EmitInput carries everything [Emit] needs: the already-serialized model
// XML and meta-schema bytes, and the external CV files to flatten into
// cv/.
type EmitInput struct {
	ModelXML   []byte
	SchemaXSD  []byte
	CVFiles    []CVFile
	SrcModTime time.Time
}

// Emit writes a packaged archive to w: bp-schema.xsd, bp-model.xml (with
// its zip entry's modified time set to in.SrcModTime), every CV file
// flattened to cv/<name>[.ext] with collisions resolved by a
// monotonically increasing suffix preserving the original extension, and
// signatures.txt written last so its digests are final.
//
// Flattened names are compared case-folded: two CV files whose flattened
// names would collide only by case return [ErrDuplicateName] rather than
// silently overwriting one with the other, since no archive-emission
// precedent in this codebase's lineage models last-write-wins on a
// case-insensitive filesystem (spec.md §9 open question (c)).
func Emit(in EmitInput, w io.Writer) error {
	zw := zip.NewWriter(w)

	schemaSum := sha1Sum(in.SchemaXSD)
	modelSum := sha1Sum(in.ModelXML)

	if err := writeDeflated(zw, schemaMember, in.SchemaXSD, time.Time{}); err != nil {
		return err
	}

	if err := writeDeflated(zw, modelMember, in.ModelXML, in.SrcModTime); err != nil {
		return err
	}

	flatNames, err := flattenNames(in.CVFiles)
	if err != nil {
		return err
	}

	cvHash := sha1.New() //nolint:gosec

	for i, cvf := range in.CVFiles {
		cvHash.Write(cvf.Data)

		if err := writeDeflated(zw, cvDir+flatNames[i], cvf.Data, time.Time{}); err != nil {
			return err
		}
	}

	sig := fmt.Sprintf("schemaSHA1: %x\nmodelSHA1: %x\ncvSHA1: %x\n", schemaSum, modelSum, cvHash.Sum(nil))

	if err := writeDeflated(zw, sigMember, []byte(sig), time.Time{}); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return nil
}

// flattenNames assigns each CV file a flat, collision-free name under cv/,
// in the order given, suffixing with a monotonically increasing counter on
// collision ("<name>-2.<ext>", "<name>-3.<ext>", ...).
func flattenNames(files []CVFile) ([]string, error) {
	used := make(map[string]bool, len(files))   // exact flattened names used so far
	foldedOwner := make(map[string]string, len(files)) // case-folded -> first exact name that claimed it
	names := make([]string, len(files))

	for i, f := range files {
		base := f.Name
		ext := f.Ext

		candidate := base
		if ext != "" {
			candidate = base + "." + ext
		}

		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s-%d", base, n)
			if ext != "" {
				candidate = fmt.Sprintf("%s-%d.%s", base, n, ext)
			}
		}

		folded := strings.ToLower(candidate)
		if owner, exists := foldedOwner[folded]; exists && owner != candidate {
			return nil, fmt.Errorf("%w: %s collides with %s case-insensitively", ErrDuplicateName, candidate, owner)
		}

		foldedOwner[folded] = candidate
		used[candidate] = true
		names[i] = candidate
	}

	return names, nil
}

func writeDeflated(zw *zip.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modTime.IsZero() {
		hdr.Modified = modTime
	}

	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return nil
}

// SortedCVFiles is a convenience helper for callers that build the
// cv/ file list from a map keyed by CV name: it returns files in
// name-sorted order so Emit's output is deterministic across runs for a
// given model, independent of map iteration order.
func SortedCVFiles(byName map[string]CVFile) []CVFile {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]CVFile, len(names))
	for i, name := range names {
		out[i] = byName[name]
	}

	return out
}

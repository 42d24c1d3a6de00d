package source

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Target is a guarded location inside a cache directory.
type Target struct {
	// Rel is the slash separated path relative to the canonical root.
	Rel string
	// Path is the canonical absolute path, with symlinks evaluated.
	Path string
	Info fs.FileInfo
}

// Kind reports whether the target is a file or a directory.
func (t Target) Kind() NodeKind {
	if t.Info != nil && t.Info.IsDir() {
		return KindDirectory
	}
	return KindFile
}

// Resolve maps requested onto root. The containment check runs on the
// canonical form of both paths, after symlinks and dot segments are resolved.
// Absolute paths are rejected outright.
func Resolve(root, requested string) (Target, error) {
	if strings.TrimSpace(requested) == "" {
		return Target{}, newError(ErrInvalidPath, "resolve", "", requested, nil)
	}
	if path.IsAbs(requested) || filepath.IsAbs(requested) || filepath.VolumeName(requested) != "" {
		return Target{}, newError(ErrForbidden, "resolve", "", requested, nil)
	}
	if strings.ContainsRune(requested, 0) {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, nil)
	}

	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, err)
	}
	canonicalRoot, err = filepath.Abs(canonicalRoot)
	if err != nil {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, err)
	}

	candidate := filepath.Join(canonicalRoot, filepath.FromSlash(requested))
	if _, ok := within(canonicalRoot, candidate); !ok {
		return Target{}, newError(ErrForbidden, "resolve", "", requested, nil)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, err)
	}
	rel, ok := within(canonicalRoot, resolved)
	if !ok {
		return Target{}, newError(ErrForbidden, "resolve", "", requested, nil)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return Target{}, newError(ErrNotFound, "resolve", "", requested, nil)
	}

	return Target{Rel: rel, Path: resolved, Info: info}, nil
}

// within reports whether p lies under root and returns its slash separated
// relative form.
func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || filepath.IsAbs(rel) {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// GuardedFile is an open regular file that passed Resolve. Reads go through
// the same handle that was checked, never through the path again.
type GuardedFile struct {
	Target
	file *os.File
}

// OpenFile resolves requested and opens it. The opened handle is compared
// with the resolved target so a file swapped in between is refused.
func OpenFile(root, requested string) (*GuardedFile, error) {
	target, err := Resolve(root, requested)
	if err != nil {
		return nil, err
	}
	if !target.Info.Mode().IsRegular() {
		return nil, newError(ErrNotFound, "open", "", requested, nil)
	}

	f, err := os.Open(target.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(ErrNotFound, "open", "", requested, err)
		}
		return nil, newError(ErrRead, "open", "", requested, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, newError(ErrRead, "open", "", requested, err)
	}
	if !info.Mode().IsRegular() || !os.SameFile(info, target.Info) {
		_ = f.Close()
		return nil, newError(ErrNotFound, "open", "", requested, nil)
	}

	target.Info = info
	return &GuardedFile{Target: target, file: f}, nil
}

// Close releases the underlying handle.
func (g *GuardedFile) Close() error {
	if g == nil || g.file == nil {
		return nil
	}
	return g.file.Close()
}

// ReadText returns the file contents decoded as UTF-8. A leading byte order
// mark is dropped and invalid sequences become U+FFFD instead of failing.
func ReadText(g *GuardedFile) (string, error) {
	if g == nil || g.file == nil {
		return "", newError(ErrRead, "read", "", "", os.ErrClosed)
	}
	if _, err := g.file.Seek(0, io.SeekStart); err != nil {
		return "", newError(ErrRead, "read", "", g.Rel, err)
	}

	r := transform.NewReader(g.file, unicode.UTF8BOM.NewDecoder())
	data, err := io.ReadAll(r)
	if err != nil {
		return "", newError(ErrRead, "read", "", g.Rel, err)
	}
	return string(data), nil
}

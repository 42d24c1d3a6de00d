package source

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Callers match them with errors.Is; the HTTP layer maps each
// kind onto a status code.
var (
	// ErrNoArchive indicates the project has no stored source archive.
	ErrNoArchive = errors.New("no source code archive available")

	// ErrExtraction indicates the archive could not be opened or unpacked.
	ErrExtraction = errors.New("source archive extraction failed")

	// ErrInvalidPath indicates the requested path parameter is missing.
	ErrInvalidPath = errors.New("file path is required")

	// ErrNotFound indicates the resolved target does not exist or has the wrong kind.
	ErrNotFound = errors.New("file not found")

	// ErrForbidden indicates the resolved target lies outside the cache directory.
	ErrForbidden = errors.New("path escapes the source tree")

	// ErrRead indicates an I/O failure while reading an already guarded file.
	ErrRead = errors.New("failed to read file")

	// ErrLimitExceeded indicates the archive is larger than the extraction limits allow.
	ErrLimitExceeded = errors.New("archive exceeds extraction limits")
)

// Error carries the failure kind together with the operation, the project and
// the requested path. It unwraps to both Kind and the underlying cause.
type Error struct {
	Kind    error
	Op      string
	Project string
	Path    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Project != "" {
		fmt.Fprintf(&b, " project %s", e.Project)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, projectID, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Project: projectID, Path: path, Err: err}
}

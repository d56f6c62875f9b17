package smlio

import (
	"errors"
	"strconv"
	"strings"
)

// Sentinel errors returned by smlio operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, smlio.ErrInvalidEndLine) {
//	    // file was not written by a well-behaved writer
//	}
var (
	// ErrClosed indicates an operation on a closed handle, reader or writer.
	//
	// This is a programming error.
	ErrClosed = errors.New("smlio: closed")

	// ErrNoPreamble indicates a text file without a byte-order mark,
	// including a zero-length file.
	ErrNoPreamble = errors.New("smlio: no preamble")

	// ErrUnsupportedEncoding indicates a text file whose byte-order mark names
	// an encoding the stream readers and writers do not handle. Only UTF-8
	// files can be streamed; use [Load] for the others.
	ErrUnsupportedEncoding = errors.New("smlio: unsupported encoding")

	// ErrInvalidEndLine indicates the last non-blank line holds more than
	// one value.
	ErrInvalidEndLine = errors.New("smlio: invalid end line")

	// ErrNoEndLine indicates a text file without any line holding a value.
	ErrNoEndLine = errors.New("smlio: no end line")

	// ErrNotAppendMode indicates an append reader was requested for a writer
	// that did not open an existing file.
	//
	// This is a programming error.
	ErrNotAppendMode = errors.New("smlio: writer is not in append mode")

	// ErrChunkSizeTooSmall indicates [Options.ChunkSize] is below
	// [MinChunkSize].
	//
	// This is a programming error.
	ErrChunkSizeTooSmall = errors.New("smlio: chunk size too small")

	// ErrShortWrite indicates fewer bytes were written than requested. The
	// handle is closed when this is returned.
	ErrShortWrite = errors.New("smlio: short write")

	// ErrFileExists indicates [CreateNew] found an existing file.
	ErrFileExists = errors.New("smlio: file exists")

	// ErrInvalidState indicates a line was requested from an exhausted
	// line iterator.
	//
	// This is a programming error.
	ErrInvalidState = errors.New("smlio: invalid state")
)

// Error carries file context for errors returned by readers and writers.
//
// The underlying error message appears first, followed by the context:
//
//	smlio: invalid end line (path=doc.sml offset=120)
//
// Use [errors.As] to extract structured fields and [errors.Is] to check the
// sentinel it wraps.
type Error struct {
	Path string

	// Offset is the byte offset in the file, 0 when unknown.
	Offset int64

	// Line is the one-based line number, 0 when unknown.
	Line int

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (path=X offset=N line=N)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	if e.Offset > 0 {
		parts = append(parts, "offset="+strconv.FormatInt(e.Offset, 10))
	}

	if e.Line > 0 {
		parts = append(parts, "line="+strconv.Itoa(e.Line))
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// WithContext attaches file context to err. If err already carries an
// [*Error], missing fields are filled in place.
func WithContext(err error, path string, offset int64, line int) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		if existing.Path == "" {
			existing.Path = path
		}

		if existing.Offset == 0 {
			existing.Offset = offset
		}

		if existing.Line == 0 {
			existing.Line = line
		}

		return err
	}

	return &Error{Path: path, Offset: offset, Line: line, Err: err}
}

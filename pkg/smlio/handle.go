package smlio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/pkg/fs"
)

// Mode is the access mode of a [Handle].
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWriteAppend
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWriteAppend:
		return "read-write-append"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Header describes the fixed preamble at the start of a file format.
type Header interface {
	// ProbeSize is how many leading bytes Validate needs.
	ProbeSize() int

	// Validate checks the leading bytes of an existing file (fewer than
	// ProbeSize if the file is shorter) and returns the preamble length.
	Validate(start []byte) (preambleSize int, err error)

	// Encode returns the bytes written at the start of a new file and how
	// many of them form the preamble.
	Encode() (data []byte, preambleSize int, err error)
}

// TextHeader is the ReliableTXT byte-order mark of a UTF-8 file. Other
// encodings are rejected with [ErrUnsupportedEncoding].
type TextHeader struct{}

func (TextHeader) ProbeSize() int { return 4 }

func (TextHeader) Validate(start []byte) (int, error) {
	enc, n, err := DetectEncoding(start)
	if err != nil {
		return 0, err
	}

	if enc != UTF8 {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	return n, nil
}

func (TextHeader) Encode() ([]byte, int, error) {
	p := UTF8.Preamble()

	return p, len(p), nil
}

// Handle owns one open file and tracks the length of its preamble.
//
// Positions passed to [Handle.ReadAt] are absolute file offsets. A Handle is
// not safe for concurrent use.
type Handle struct {
	file         fs.File
	path         string
	mode         Mode
	preambleSize int64
	existing     bool
	closed       bool
	logger       log.Logger
}

// CreateReadHandle opens path read-only and validates its preamble.
func CreateReadHandle(path string, header Header, opts Options) (*Handle, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	f, err := opts.FS.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	h := &Handle{file: f, path: path, mode: ModeRead, existing: true, logger: opts.Logger}

	if err := h.validate(header); err != nil {
		return nil, h.closeWith(err)
	}

	h.logOpened()

	return h, nil
}

// CreateWriteHandle creates path and writes the header. With overwrite false an
// existing file fails with [ErrFileExists].
func CreateWriteHandle(path string, header Header, overwrite bool, opts Options) (*Handle, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	flag := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flag |= os.O_TRUNC
	} else {
		flag |= os.O_EXCL
	}

	f, err := opts.FS.OpenFile(path, flag, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, WithContext(ErrFileExists, path, 0, 0)
		}

		return nil, err
	}

	h := &Handle{file: f, path: path, mode: ModeWrite, logger: opts.Logger}

	data, preambleSize, err := header.Encode()
	if err != nil {
		return nil, h.closeWith(err)
	}

	if err := h.Append(data); err != nil {
		return nil, err
	}

	h.preambleSize = int64(preambleSize)
	h.logOpened()

	return h, nil
}

// CreateAppendHandle opens an existing file for reading and appending and
// validates its preamble. A missing file is created fresh as by
// [CreateWriteHandle]; an existing file without a valid preamble, including
// an empty one, fails validation.
func CreateAppendHandle(path string, header Header, opts Options) (*Handle, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	_, err = opts.FS.Stat(path)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return CreateWriteHandle(path, header, false, opts)
	case err != nil:
		return nil, err
	}

	f, err := opts.FS.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	h := &Handle{file: f, path: path, mode: ModeReadWriteAppend, existing: true, logger: opts.Logger}

	if err := h.validate(header); err != nil {
		return nil, h.closeWith(err)
	}

	h.logOpened()

	return h, nil
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// Mode returns the access mode.
func (h *Handle) Mode() Mode { return h.mode }

// PreambleSize returns the number of header bytes before the first node.
func (h *Handle) PreambleSize() int64 { return h.preambleSize }

// Existing reports whether the handle was opened on a pre-existing file.
func (h *Handle) Existing() bool { return h.existing }

// IsClosed reports whether [Handle.Close] has been called.
func (h *Handle) IsClosed() bool { return h.closed }

// Logger returns the logger the handle was opened with.
func (h *Handle) Logger() log.Logger { return h.logger }

// Size returns the current file size.
func (h *Handle) Size() (int64, error) {
	if h.closed {
		return 0, ErrClosed
	}

	info, err := h.file.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// ReadAt reads into buf starting at position. It returns fewer than
// len(buf) bytes only at end of file, in which case err is nil.
func (h *Handle) ReadAt(buf []byte, position int64) (int, error) {
	if h.closed {
		return 0, ErrClosed
	}

	n, err := h.file.ReadAt(buf, position)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

// Append writes data at the current end of file. The size is read first and
// the bytes written at exactly that offset.
//
// A failed or short write closes the handle.
func (h *Handle) Append(data []byte) error {
	if h.closed {
		return ErrClosed
	}

	if len(data) == 0 {
		return nil
	}

	offset, err := h.Size()
	if err != nil {
		return err
	}

	n, err := h.file.WriteAt(data, offset)

	switch {
	case n > 0 && n < len(data):
		cause := fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(data))
		if err != nil {
			cause = fmt.Errorf("%w: %w", cause, err)
		}

		return h.closeWith(WithContext(cause, h.path, offset, 0))
	case err != nil:
		return h.closeWith(WithContext(err, h.path, offset, 0))
	case n < len(data):
		return h.closeWith(WithContext(ErrShortWrite, h.path, offset, 0))
	}

	return nil
}

// Truncate cuts the file to size bytes.
func (h *Handle) Truncate(size int64) error {
	if h.closed {
		return ErrClosed
	}

	return h.file.Truncate(size)
}

// Close closes the file. Calling Close more than once is a no-op.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}

	h.closed = true

	level.Debug(h.logger).Log("msg", "handle closed", "path", h.path, "mode", h.mode)

	return h.file.Close()
}

func (h *Handle) validate(header Header) error {
	start := make([]byte, header.ProbeSize())

	n, err := h.ReadAt(start, 0)
	if err != nil {
		return err
	}

	size, err := header.Validate(start[:n])
	if err != nil {
		return WithContext(err, h.path, 0, 0)
	}

	h.preambleSize = int64(size)

	return nil
}

// closeWith closes the handle and returns err joined with any close error.
func (h *Handle) closeWith(err error) error {
	if closeErr := h.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}

	return err
}

func (h *Handle) logOpened() {
	level.Debug(h.logger).Log("msg", "handle opened", "path", h.path, "mode", h.mode,
		"preamble", h.preambleSize, "existing", h.existing)
}

package bsml

import (
	"fmt"
	"math"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
)

// streamSource decodes from a file through a fixed read buffer. The buffer
// is replaced by a larger one only when a single string does not fit.
type streamSource struct {
	h      *smlio.Handle
	chunk  int
	logger log.Logger

	// position is the file offset of the next unread byte.
	position int64

	buf       []byte
	bufOffset int64
	bufSize   int
	bufAtEOF  bool

	// grown counts buffer replacements for oversized strings.
	grown int
}

func newStreamSource(h *smlio.Handle, chunk int, logger log.Logger) *streamSource {
	return &streamSource{
		h:        h,
		chunk:    chunk,
		logger:   logger,
		position: h.PreambleSize(),
		buf:      make([]byte, chunk),
	}
}

// ensure returns up to n bytes starting at position, fewer only at end of
// file.
func (s *streamSource) ensure(n int) ([]byte, error) {
	start := s.position - s.bufOffset
	inBuffer := s.position >= s.bufOffset && start <= int64(s.bufSize)

	if inBuffer && start+int64(n) <= int64(s.bufSize) {
		return s.buf[start : start+int64(n)], nil
	}

	if inBuffer && s.bufAtEOF {
		return s.buf[start:s.bufSize], nil
	}

	size := max(s.chunk, n)
	if len(s.buf) < size {
		s.buf = make([]byte, size)
		s.grown++

		level.Debug(s.logger).Log("msg", "read buffer grown", "path", s.h.Path(), "size", size)
	}

	read, err := s.h.ReadAt(s.buf[:size], s.position)
	if err != nil {
		return nil, err
	}

	s.bufOffset = s.position
	s.bufSize = read
	s.bufAtEOF = read < size

	return s.buf[:min(n, read)], nil
}

// rescan forgets a cached end of file so bytes appended since are seen.
func (s *streamSource) rescan() {
	s.bufAtEOF = false
}

func (s *streamSource) readVarInt() (uint64, bool, error) {
	window, err := s.ensure(MaxVarIntLen)
	if err != nil {
		return 0, false, err
	}

	if len(window) == 0 {
		return 0, true, nil
	}

	v, n, err := DecodeVarInt(window)
	if err != nil {
		return 0, false, &smlio.Error{Offset: s.position, Err: err}
	}

	if n == 0 {
		return 0, false, &smlio.Error{Offset: s.position, Err: fmt.Errorf("%w: varint cut off", ErrTruncated)}
	}

	s.position += int64(n)

	return v, false, nil
}

func (s *streamSource) readString(n uint64) (string, error) {
	if n > math.MaxInt32 {
		return "", &smlio.Error{Offset: s.position, Err: fmt.Errorf("%w: string length %d", ErrMalformed, n)}
	}

	// A string larger than the buffer must fit in the file before the
	// buffer grows to hold it.
	if int(n) > len(s.buf) {
		size, err := s.h.Size()
		if err != nil {
			return "", err
		}

		if have := size - s.position; int64(n) > have {
			return "", &smlio.Error{Offset: s.position, Err: fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, max(have, 0))}
		}
	}

	window, err := s.ensure(int(n))
	if err != nil {
		return "", err
	}

	if len(window) < int(n) {
		return "", &smlio.Error{Offset: s.position, Err: fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(window))}
	}

	s.position += int64(n)

	return string(window), nil
}

func (s *streamSource) offset() int64 { return s.position }

// Reader streams the children of a binary document's root element.
//
// Every [Reader.ReadNode] decodes exactly one child. A Reader is not safe for
// concurrent use.
type Reader struct {
	handle       *smlio.Handle
	src          *streamSource
	root         *sml.Element
	appendReader bool
	endReached   bool
}

// OpenReader opens a binary document and reads its root start tag.
func OpenReader(path string, opts smlio.Options) (*Reader, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	h, err := smlio.CreateReadHandle(path, Header{}, opts)
	if err != nil {
		return nil, err
	}

	r, err := newReader(h, opts, false)
	if err != nil {
		return nil, closeWith(h, err)
	}

	return r, nil
}

// AppendReader returns a reader over the file w is appending to. It shares
// w's handle. An append reader never stops at end of file for good: each
// [Reader.ReadNode] looks again for nodes written since.
func AppendReader(w *Writer, opts smlio.Options) (*Reader, error) {
	if !w.Existing() {
		return nil, smlio.ErrNotAppendMode
	}

	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	return newReader(w.handle, opts, true)
}

func newReader(h *smlio.Handle, opts smlio.Options, appendReader bool) (*Reader, error) {
	src := newStreamSource(h, opts.ChunkSize, opts.Logger)

	root, err := readRootStart(src)
	if err != nil {
		return nil, smlio.WithContext(err, h.Path(), 0, 0)
	}

	return &Reader{handle: h, src: src, root: root, appendReader: appendReader}, nil
}

// ReadNode returns the next child of the root element, or nil at end of
// file.
func (r *Reader) ReadNode() (sml.Node, error) {
	if r.handle.IsClosed() {
		return nil, smlio.ErrClosed
	}

	if r.endReached {
		return nil, nil
	}

	r.src.rescan()

	node, err := readTopLevel(r.src)
	if err != nil {
		return nil, smlio.WithContext(err, r.handle.Path(), 0, 0)
	}

	if node == nil && !r.appendReader {
		r.endReached = true
	}

	return node, nil
}

// ReadAll reads the remaining nodes.
func (r *Reader) ReadAll() ([]sml.Node, error) {
	var nodes []sml.Node

	for {
		node, err := r.ReadNode()
		if err != nil || node == nil {
			return nodes, err
		}

		nodes = append(nodes, node)
	}
}

// Root returns the root element. Its children are not populated.
func (r *Reader) Root() *sml.Element { return r.root }

// Offset returns the file offset of the next node.
func (r *Reader) Offset() int64 { return r.src.position }

// IsClosed reports whether the underlying handle is closed.
func (r *Reader) IsClosed() bool { return r.handle.IsClosed() }

// Close closes the underlying handle.
func (r *Reader) Close() error { return r.handle.Close() }

var _ smlio.NodeReader = (*Reader)(nil)

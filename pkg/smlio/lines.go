package smlio

import (
	"bytes"
	"strconv"

	"github.com/calvinalkan/smlio/pkg/wsv"
)

// lineReader reads '\n'-separated lines from a handle front to back in
// chunks.
//
// The file may grow between calls. A final line without a line feed is
// returned as soon as it is seen; if more bytes arrive later, the line feed
// that terminated it is skipped.
type lineReader struct {
	h     *Handle
	chunk int

	// pos is the offset of the next unread line.
	pos int64

	// skipNewline is set after a line that ended at end of file.
	skipNewline bool
}

func newLineReader(h *Handle, chunkSize int) *lineReader {
	return &lineReader{h: h, chunk: chunkSize, pos: h.PreambleSize()}
}

// readLine returns the next line without its line feed and the offset where
// it starts. ok is false when no bytes remain.
func (r *lineReader) readLine() (line []byte, start int64, ok bool, err error) {
	size, err := r.h.Size()
	if err != nil {
		return nil, 0, false, err
	}

	if r.skipNewline && r.pos < size {
		b := make([]byte, 1)
		if _, err := r.h.ReadAt(b, r.pos); err != nil {
			return nil, 0, false, err
		}

		if b[0] == '\n' {
			r.pos++
		}

		r.skipNewline = false
	}

	if r.pos >= size {
		return nil, 0, false, nil
	}

	start = r.pos

	var acc []byte

	for {
		off := start + int64(len(acc))
		if off >= size {
			// Unterminated final line.
			r.pos = size
			r.skipNewline = true

			return acc, start, true, nil
		}

		n := int64(r.chunk)
		if rem := size - off; rem < n {
			n = rem
		}

		buf := make([]byte, n)

		read, err := r.h.ReadAt(buf, off)
		if err != nil {
			return nil, 0, false, err
		}

		buf = buf[:read]
		if read == 0 {
			// Shrunk underneath us; treat what we have as the last line.
			size = off

			continue
		}

		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			acc = append(acc, buf[:i]...)
			r.pos = start + int64(len(acc)) + 1

			return acc, start, true, nil
		}

		acc = append(acc, buf...)
	}
}

// lineIterator is a one-line lookahead over a [lineReader]. It implements
// [sml.LineIterator].
//
// The next line is pulled lazily, on the first HasLine or IsEmptyLine after
// GetLine. With refresh set, an exhausted iterator retries the reader on
// every HasLine, which lets it observe lines appended later.
type lineIterator struct {
	reader     *lineReader
	endKeyword *string
	refresh    bool

	current   *wsv.Line
	needsPull bool
	index     int
}

func newLineIterator(reader *lineReader, endKeyword *string, refresh bool) *lineIterator {
	return &lineIterator{reader: reader, endKeyword: endKeyword, refresh: refresh, needsPull: true}
}

func (it *lineIterator) pull() error {
	it.needsPull = false

	raw, start, ok, err := it.reader.readLine()
	if err != nil {
		return err
	}

	if !ok {
		it.current = nil

		return nil
	}

	line, err := wsv.ParseLine(string(raw))
	if err != nil {
		return WithContext(err, it.reader.h.Path(), start, it.index+1)
	}

	it.current = &line

	return nil
}

func (it *lineIterator) HasLine() (bool, error) {
	if it.current == nil && (it.needsPull || it.refresh) {
		if err := it.pull(); err != nil {
			return false, err
		}
	}

	return it.current != nil, nil
}

func (it *lineIterator) IsEmptyLine() (bool, error) {
	ok, err := it.HasLine()
	if err != nil {
		return false, err
	}

	if !ok {
		return false, ErrInvalidState
	}

	return !it.current.HasValues(), nil
}

func (it *lineIterator) GetLine() (wsv.Line, error) {
	ok, err := it.HasLine()
	if err != nil {
		return wsv.Line{}, err
	}

	if !ok {
		return wsv.Line{}, ErrInvalidState
	}

	line := *it.current
	it.current = nil
	it.needsPull = true
	it.index++

	return line, nil
}

// GetLineAsArray consumes the current line and returns its values.
func (it *lineIterator) GetLineAsArray() ([]wsv.Value, error) {
	line, err := it.GetLine()
	if err != nil {
		return nil, err
	}

	return line.Values, nil
}

func (it *lineIterator) EndKeyword() *string { return it.endKeyword }

func (it *lineIterator) LineIndex() int { return it.index }

// String shows the one-based number and content of the current line.
func (it *lineIterator) String() string {
	s := "(" + strconv.Itoa(it.index+1) + "): "
	if it.current != nil {
		s += it.current.String()
	}

	return s
}

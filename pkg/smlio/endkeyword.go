package smlio

import (
	"bytes"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/pkg/wsv"
)

// reverseLineIterator yields the lines of a file from last to first.
//
// It holds at most the current line plus one chunk of unread bytes.
type reverseLineIterator struct {
	h     *Handle
	chunk int

	// start is the lowest offset that belongs to the text (after the preamble).
	start int64

	// buf holds the unread bytes from bufStart up to the lines already
	// returned.
	buf      []byte
	bufStart int64
	done     bool
}

func newReverseLineIterator(h *Handle, chunkSize int) (*reverseLineIterator, error) {
	size, err := h.Size()
	if err != nil {
		return nil, err
	}

	return &reverseLineIterator{
		h:        h,
		chunk:    chunkSize,
		start:    h.PreambleSize(),
		bufStart: size,
	}, nil
}

// prev returns the line before the previously returned one and the offset
// where it starts. ok is false once the first line has been returned.
func (it *reverseLineIterator) prev() (line []byte, lineStart int64, ok bool, err error) {
	if it.done {
		return nil, 0, false, nil
	}

	for {
		if i := bytes.LastIndexByte(it.buf, '\n'); i >= 0 {
			lineStart = it.bufStart + int64(i) + 1
			line = it.buf[i+1:]
			it.buf = it.buf[:i]

			return line, lineStart, true, nil
		}

		if it.bufStart <= it.start {
			it.done = true

			return it.buf, it.start, true, nil
		}

		n := int64(it.chunk)
		if avail := it.bufStart - it.start; avail < n {
			n = avail
		}

		chunk := make([]byte, n, n+int64(len(it.buf)))

		read, err := it.h.ReadAt(chunk, it.bufStart-n)
		if err != nil {
			return nil, 0, false, err
		}

		if int64(read) != n {
			return nil, 0, false, fmt.Errorf("file shrank while scanning: read %d of %d bytes at %d", read, n, it.bufStart-n)
		}

		it.buf = append(chunk, it.buf...)
		it.bufStart -= n
	}
}

// LocateEndKeyword scans h backward for the last line holding values and
// returns its single value as the end keyword (nil for the null marker)
// along with the offset where that line starts. Truncating the file to that
// offset removes the end line and everything after it.
//
// Lines without values are skipped. A line with more than one value fails
// with [ErrInvalidEndLine]; a file without values fails with [ErrNoEndLine].
func LocateEndKeyword(h *Handle, chunkSize int) (keyword *string, truncateAt int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("could not detect end keyword: %w", err)
		}
	}()

	it, err := newReverseLineIterator(h, chunkSize)
	if err != nil {
		return nil, 0, err
	}

	for {
		raw, lineStart, ok, err := it.prev()
		if err != nil {
			return nil, 0, err
		}

		if !ok {
			return nil, 0, WithContext(ErrNoEndLine, h.Path(), 0, 0)
		}

		line, err := wsv.ParseLine(string(raw))
		if err != nil {
			return nil, 0, WithContext(err, h.Path(), lineStart, 0)
		}

		if !line.HasValues() {
			continue
		}

		if len(line.Values) > 1 {
			return nil, 0, WithContext(ErrInvalidEndLine, h.Path(), lineStart, 0)
		}

		keyword = line.Values[0].Ptr()

		level.Debug(h.Logger()).Log("msg", "end keyword located", "path", h.Path(),
			"keyword", wsv.SerializeValue(line.Values[0]), "offset", lineStart)

		return keyword, lineStart, nil
	}
}

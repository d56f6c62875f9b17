package smlio

import (
	"errors"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/wsv"
)

// NodeWriter writes top-level child nodes of a document one at a time.
// It is implemented by [*Writer] and by the binary writer.
type NodeWriter interface {
	WriteNode(node sml.Node) error
	WriteNodes(nodes []sml.Node) error
	Close() error
}

// Writer streams children of a text document's root element to a file.
//
// Each [Writer.WriteNode] serializes one node and appends its lines; nothing
// is buffered between calls. [Writer.Close] writes the end line. A Writer is
// not safe for concurrent use.
type Writer struct {
	handle      *Handle
	endKeyword  *string
	indentation *string
	preserve    bool

	// atLineStart is true when the file ends at the start of a line, so the
	// next line needs no separating line feed.
	atLineStart bool
}

// CreateWriter opens path for writing the children of template's root.
//
// A new file gets the root's opening line immediately. With [CreateOrAppend]
// and an existing file, the end line is located and cut off instead, and
// the file's end keyword is used in place of the template's. The template's
// indentation is used in both cases.
func CreateWriter(template *sml.Document, path string, mode WriterMode, opts Options) (*Writer, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	h, err := OpenWriteHandle(path, TextHeader{}, mode, opts)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		handle:      h,
		endKeyword:  template.EndKeyword,
		indentation: template.DefaultIndentation,
		preserve:    opts.Preserve(),
		atLineStart: true,
	}

	if h.Existing() {
		keyword, truncateAt, err := LocateEndKeyword(h, opts.ChunkSize)
		if err != nil {
			return nil, h.closeWith(err)
		}

		if err := h.Truncate(truncateAt); err != nil {
			return nil, h.closeWith(err)
		}

		w.endKeyword = keyword

		level.Debug(opts.Logger).Log("msg", "end line removed", "path", path, "offset", truncateAt)

		return w, nil
	}

	name := wsv.String(template.Root.Name)
	if sml.IsEndKeyword(name, w.endKeyword) {
		return nil, h.closeWith(fmt.Errorf("smlio: root name %q collides with end keyword", template.Root.Name))
	}

	if err := w.writeLines([]string{wsv.SerializeValue(name)}); err != nil {
		return nil, h.closeWith(err)
	}

	return w, nil
}

// OpenWriteHandle opens path for a writer in the given mode.
func OpenWriteHandle(path string, header Header, mode WriterMode, opts Options) (*Handle, error) {
	switch mode {
	case CreateOrOverwrite:
		return CreateWriteHandle(path, header, true, opts)
	case CreateNew:
		return CreateWriteHandle(path, header, false, opts)
	case CreateOrAppend:
		return CreateAppendHandle(path, header, opts)
	default:
		return nil, fmt.Errorf("smlio: unknown writer mode %s", mode)
	}
}

// WriteNode appends node one level below the root.
func (w *Writer) WriteNode(node sml.Node) error {
	if w.handle.IsClosed() {
		return ErrClosed
	}

	lines, err := sml.SerializeNode(node, 1, w.indentation, w.endKeyword, w.preserve)
	if err != nil {
		return err
	}

	return w.writeLines(lines)
}

// WriteNodes appends nodes in order.
func (w *Writer) WriteNodes(nodes []sml.Node) error {
	for _, node := range nodes {
		if err := w.WriteNode(node); err != nil {
			return err
		}
	}

	return nil
}

// Close writes the end line and closes the file. Calling Close on a closed
// writer is a no-op.
func (w *Writer) Close() error {
	if w.handle.IsClosed() {
		return nil
	}

	if err := w.writeLines([]string{wsv.SerializeValue(wsv.FromPtr(w.endKeyword))}); err != nil {
		return errors.Join(err, w.handle.Close())
	}

	return w.handle.Close()
}

// Existing reports whether the writer is appending to a pre-existing file.
func (w *Writer) Existing() bool { return w.handle.Existing() }

// EndKeyword returns the end keyword written on close, nil for the null
// marker.
func (w *Writer) EndKeyword() *string { return w.endKeyword }

// Encoding returns the file encoding. Streams are always UTF-8.
func (w *Writer) Encoding() Encoding { return UTF8 }

// IsClosed reports whether the writer has been closed.
func (w *Writer) IsClosed() bool { return w.handle.IsClosed() }

// Handle returns the underlying handle.
func (w *Writer) Handle() *Handle { return w.handle }

func (w *Writer) writeLines(lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	var buf []byte

	for _, line := range lines {
		if !w.atLineStart {
			buf = append(buf, '\n')
		}

		buf = append(buf, line...)
		w.atLineStart = false
	}

	return w.handle.Append(buf)
}

var _ NodeWriter = (*Writer)(nil)

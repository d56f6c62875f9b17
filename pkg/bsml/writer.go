package bsml

import (
	"errors"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
)

// Writer streams children of a binary document's root element to a file.
//
// Each node is encoded and appended in one write. There is nothing to write
// on close, since the root has no end tag. A Writer is not safe for
// concurrent use.
type Writer struct {
	handle *smlio.Handle
}

// CreateWriter opens path for writing the children of template's root. A
// new file gets the preamble and the root start tag. With
// [smlio.CreateOrAppend] an existing file is only validated and nodes go
// after its last byte; its root name is kept.
func CreateWriter(template *sml.Document, path string, mode smlio.WriterMode, opts smlio.Options) (*Writer, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	h, err := smlio.OpenWriteHandle(path, Header{Root: template.Root.Name}, mode, opts)
	if err != nil {
		return nil, err
	}

	return &Writer{handle: h}, nil
}

// WriteNode appends node. Empty nodes write nothing.
func (w *Writer) WriteNode(node sml.Node) error {
	if w.handle.IsClosed() {
		return smlio.ErrClosed
	}

	return w.handle.Append(EncodeNode(node))
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

// Close closes the file. Calling Close more than once is a no-op.
func (w *Writer) Close() error { return w.handle.Close() }

// Existing reports whether the writer is appending to a pre-existing file.
func (w *Writer) Existing() bool { return w.handle.Existing() }

// IsClosed reports whether the writer has been closed.
func (w *Writer) IsClosed() bool { return w.handle.IsClosed() }

// Handle returns the underlying handle.
func (w *Writer) Handle() *smlio.Handle { return w.handle }

func closeWith(h *smlio.Handle, err error) error {
	if closeErr := h.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}

	return err
}

var _ smlio.NodeWriter = (*Writer)(nil)

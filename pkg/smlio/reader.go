package smlio

import (
	"fmt"

	"github.com/calvinalkan/smlio/pkg/sml"
)

// NodeReader reads the top-level child nodes of a document one at a time.
// It is implemented by [*Reader] and by the binary reader.
type NodeReader interface {
	// ReadNode returns the next node, or nil at the end of the document.
	ReadNode() (sml.Node, error)
	Close() error
}

// Reader streams the children of a text document's root element.
//
// The root element's opening line is read once when the reader is created;
// each [Reader.ReadNode] then materializes exactly one child. A Reader is not
// safe for concurrent use.
type Reader struct {
	handle           *Handle
	iterator         *lineIterator
	root             *sml.Element
	endKeyword       *string
	emptyNodesBefore []*sml.EmptyNode
	preserve         bool
	appendReader     bool
	endReached       bool
}

// OpenReader opens a UTF-8 text document. The end keyword is detected from
// the last non-blank line before the root element is read.
func OpenReader(path string, opts Options) (*Reader, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	h, err := CreateReadHandle(path, TextHeader{}, opts)
	if err != nil {
		return nil, err
	}

	keyword, _, err := LocateEndKeyword(h, opts.ChunkSize)
	if err != nil {
		return nil, h.closeWith(err)
	}

	r, err := newReader(h, keyword, opts, false)
	if err != nil {
		return nil, h.closeWith(err)
	}

	return r, nil
}

// AppendReader returns a reader over the file w is appending to. It shares
// w's handle, so closing either closes both.
//
// Unlike a reader from [OpenReader], an append reader does not remember that
// it ran out of lines: every [Reader.ReadNode] checks the file again and
// returns nodes w has written since.
func AppendReader(w *Writer, opts Options) (*Reader, error) {
	if !w.Existing() {
		return nil, ErrNotAppendMode
	}

	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	return newReader(w.handle, w.endKeyword, opts, true)
}

func newReader(h *Handle, endKeyword *string, opts Options, appendReader bool) (*Reader, error) {
	it := newLineIterator(newLineReader(h, opts.ChunkSize), endKeyword, appendReader)

	var emptyNodesBefore []*sml.EmptyNode

	root, err := sml.ReadRootElement(it, &emptyNodesBefore)
	if err != nil {
		return nil, WithContext(err, h.Path(), 0, it.LineIndex()+1)
	}

	if !opts.Preserve() {
		emptyNodesBefore = nil
	}

	return &Reader{
		handle:           h,
		iterator:         it,
		root:             root,
		endKeyword:       endKeyword,
		emptyNodesBefore: emptyNodesBefore,
		preserve:         opts.Preserve(),
		appendReader:     appendReader,
	}, nil
}

// ReadNode returns the next child of the root element, or nil once the
// root's end line is reached. Without whitespace preservation, empty nodes
// are skipped, including those nested in returned elements.
func (r *Reader) ReadNode() (sml.Node, error) {
	if r.handle.IsClosed() {
		return nil, ErrClosed
	}

	if r.endReached {
		return nil, nil
	}

	for {
		ok, err := r.iterator.HasLine()
		if err != nil {
			return nil, err
		}

		if !ok {
			if r.appendReader {
				return nil, nil
			}

			return nil, r.wrap(&sml.ParseError{Line: r.iterator.LineIndex(), Reason: fmt.Sprintf("element %q not closed", r.root.Name)})
		}

		node, err := sml.ReadNode(r.iterator)
		if err != nil {
			return nil, r.wrap(err)
		}

		switch n := node.(type) {
		case nil:
			r.endReached = true

			return nil, nil
		case *sml.EmptyNode:
			if !r.preserve {
				continue
			}
		case *sml.Element:
			if !r.preserve {
				n.Nodes = sml.StripEmptyNodes(n.Nodes)
			}
		case *sml.Attribute:
		}

		return node, nil
	}
}

// ReadAll reads the remaining nodes.
func (r *Reader) ReadAll() ([]sml.Node, error) {
	var nodes []sml.Node

	for {
		node, err := r.ReadNode()
		if err != nil {
			return nodes, err
		}

		if node == nil {
			return nodes, nil
		}

		nodes = append(nodes, node)
	}
}

// Root returns the root element. Its children are not populated.
func (r *Reader) Root() *sml.Element { return r.root }

// EndKeyword returns the detected end keyword, nil for the null marker.
func (r *Reader) EndKeyword() *string { return r.endKeyword }

// EmptyNodesBefore returns the blank and comment lines before the root.
func (r *Reader) EmptyNodesBefore() []*sml.EmptyNode { return r.emptyNodesBefore }

// Encoding returns the file encoding. Streams are always UTF-8.
func (r *Reader) Encoding() Encoding { return UTF8 }

// IsClosed reports whether the underlying handle is closed.
func (r *Reader) IsClosed() bool { return r.handle.IsClosed() }

// Handle returns the underlying handle.
func (r *Reader) Handle() *Handle { return r.handle }

// Close closes the underlying handle.
func (r *Reader) Close() error { return r.handle.Close() }

func (r *Reader) wrap(err error) error {
	return WithContext(err, r.handle.Path(), 0, r.iterator.LineIndex())
}

var _ NodeReader = (*Reader)(nil)

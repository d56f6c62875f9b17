package smlio

import (
	"context"
	"sync"

	"github.com/calvinalkan/smlio/pkg/sml"
)

// Future is the pending result of an operation started in the background.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine and returns its future result.
func Go[T any](fn func() (T, error)) *Future[T] {
	return goAfter(nil, fn)
}

// goAfter runs fn once prev (if any) has closed.
func goAfter[T any](prev <-chan struct{}, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		if prev != nil {
			<-prev
		}

		f.value, f.err = fn()
	}()

	return f
}

// Done is closed when the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation finishes or ctx is done. Abandoning the
// wait does not stop the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T

		return zero, ctx.Err()
	}
}

// queue runs submitted operations one at a time in submission order.
type queue struct {
	mu   sync.Mutex
	last <-chan struct{}
}

func submit[T any](q *queue, fn func() (T, error)) *Future[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	f := goAfter(q.last, fn)
	q.last = f.done

	return f
}

// AsyncReader is the non-blocking form of a [NodeReader].
//
// Every operation returns immediately with a [Future]. Operations run one
// at a time in the order they were called; a read that has started always
// finishes its node. Close is the only way to stop a stream: operations
// queued after it fail with [ErrClosed].
type AsyncReader struct {
	r NodeReader
	q queue
}

// NewAsyncReader wraps r. The caller must not use r directly afterwards.
func NewAsyncReader(r NodeReader) *AsyncReader {
	return &AsyncReader{r: r}
}

// ReadNode reads the next node. The result is nil at the end of the document.
func (a *AsyncReader) ReadNode() *Future[sml.Node] {
	return submit(&a.q, a.r.ReadNode)
}

// ReadAll reads the remaining nodes.
func (a *AsyncReader) ReadAll() *Future[[]sml.Node] {
	return submit(&a.q, func() ([]sml.Node, error) {
		var nodes []sml.Node

		for {
			node, err := a.r.ReadNode()
			if err != nil || node == nil {
				return nodes, err
			}

			nodes = append(nodes, node)
		}
	})
}

// Close closes the reader after all earlier operations have finished.
func (a *AsyncReader) Close() *Future[struct{}] {
	return submit(&a.q, func() (struct{}, error) {
		return struct{}{}, a.r.Close()
	})
}

// Unwrap returns the wrapped reader.
func (a *AsyncReader) Unwrap() NodeReader { return a.r }

// AsyncWriter is the non-blocking form of a [NodeWriter]. Ordering and
// close semantics match [AsyncReader].
type AsyncWriter struct {
	w NodeWriter
	q queue
}

// NewAsyncWriter wraps w. The caller must not use w directly afterwards.
func NewAsyncWriter(w NodeWriter) *AsyncWriter {
	return &AsyncWriter{w: w}
}

// WriteNode appends node.
func (a *AsyncWriter) WriteNode(node sml.Node) *Future[struct{}] {
	return submit(&a.q, func() (struct{}, error) {
		return struct{}{}, a.w.WriteNode(node)
	})
}

// WriteNodes appends nodes in order.
func (a *AsyncWriter) WriteNodes(nodes []sml.Node) *Future[struct{}] {
	return submit(&a.q, func() (struct{}, error) {
		return struct{}{}, a.w.WriteNodes(nodes)
	})
}

// Close finishes the document after all earlier operations have finished.
func (a *AsyncWriter) Close() *Future[struct{}] {
	return submit(&a.q, func() (struct{}, error) {
		return struct{}{}, a.w.Close()
	})
}

// Unwrap returns the wrapped writer.
func (a *AsyncWriter) Unwrap() NodeWriter { return a.w }

// OpenReaderAsync runs [OpenReader] in the background.
func OpenReaderAsync(path string, opts Options) *Future[*AsyncReader] {
	return Go(func() (*AsyncReader, error) {
		r, err := OpenReader(path, opts)
		if err != nil {
			return nil, err
		}

		return NewAsyncReader(r), nil
	})
}

// CreateWriterAsync runs [CreateWriter] in the background.
func CreateWriterAsync(template *sml.Document, path string, mode WriterMode, opts Options) *Future[*AsyncWriter] {
	return Go(func() (*AsyncWriter, error) {
		w, err := CreateWriter(template, path, mode, opts)
		if err != nil {
			return nil, err
		}

		return NewAsyncWriter(w), nil
	})
}

// Loaded is the result of [LoadAsync].
type Loaded struct {
	Document *sml.Document
	Encoding Encoding
}

// LoadAsync runs [Load] in the background.
func LoadAsync(path string, opts Options) *Future[Loaded] {
	return Go(func() (Loaded, error) {
		doc, enc, err := Load(path, opts)

		return Loaded{Document: doc, Encoding: enc}, err
	})
}

// SaveAsync runs [Save] in the background.
func SaveAsync(doc *sml.Document, path string, enc Encoding, opts Options) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, Save(doc, path, enc, opts)
	})
}

// AppendNodesAsync runs [AppendNodes] in the background.
func AppendNodesAsync(nodes []sml.Node, template *sml.Document, path string, opts Options) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, AppendNodes(nodes, template, path, opts)
	})
}

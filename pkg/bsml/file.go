package bsml

import (
	"bytes"
	"errors"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
)

// Load reads a whole binary document into memory.
func Load(path string, opts smlio.Options) (*sml.Document, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, err
	}

	data, err := opts.FS.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, smlio.WithContext(err, path, 0, 0)
	}

	return doc, nil
}

// Save writes doc to path. The file is replaced atomically. Empty nodes are
// not stored.
func Save(doc *sml.Document, path string, opts smlio.Options) error {
	opts, err := opts.WithDefaults()
	if err != nil {
		return err
	}

	return opts.FS.WriteFileAtomic(path, bytes.NewReader(EncodeDocument(doc)))
}

// AppendNodes appends nodes to the root of the binary document at path,
// creating it from template when missing. Nothing happens for an empty list.
func AppendNodes(nodes []sml.Node, template *sml.Document, path string, opts smlio.Options) error {
	if len(nodes) == 0 {
		return nil
	}

	w, err := CreateWriter(template, path, smlio.CreateOrAppend, opts)
	if err != nil {
		return err
	}

	if err := w.WriteNodes(nodes); err != nil {
		return errors.Join(err, w.Close())
	}

	return w.Close()
}

// OpenReaderAsync runs [OpenReader] in the background.
func OpenReaderAsync(path string, opts smlio.Options) *smlio.Future[*smlio.AsyncReader] {
	return smlio.Go(func() (*smlio.AsyncReader, error) {
		r, err := OpenReader(path, opts)
		if err != nil {
			return nil, err
		}

		return smlio.NewAsyncReader(r), nil
	})
}

// CreateWriterAsync runs [CreateWriter] in the background.
func CreateWriterAsync(template *sml.Document, path string, mode smlio.WriterMode, opts smlio.Options) *smlio.Future[*smlio.AsyncWriter] {
	return smlio.Go(func() (*smlio.AsyncWriter, error) {
		w, err := CreateWriter(template, path, mode, opts)
		if err != nil {
			return nil, err
		}

		return smlio.NewAsyncWriter(w), nil
	})
}

// LoadAsync runs [Load] in the background.
func LoadAsync(path string, opts smlio.Options) *smlio.Future[*sml.Document] {
	return smlio.Go(func() (*sml.Document, error) {
		return Load(path, opts)
	})
}

// SaveAsync runs [Save] in the background.
func SaveAsync(doc *sml.Document, path string, opts smlio.Options) *smlio.Future[struct{}] {
	return smlio.Go(func() (struct{}, error) {
		return struct{}{}, Save(doc, path, opts)
	})
}

// AppendNodesAsync runs [AppendNodes] in the background.
func AppendNodesAsync(nodes []sml.Node, template *sml.Document, path string, opts smlio.Options) *smlio.Future[struct{}] {
	return smlio.Go(func() (struct{}, error) {
		return struct{}{}, AppendNodes(nodes, template, path, opts)
	})
}

package smlio

import (
	"bytes"
	"errors"

	"github.com/calvinalkan/smlio/pkg/sml"
)

// Load reads a whole text document into memory. Any ReliableTXT encoding is
// accepted. Meant for small documents; use [OpenReader] for large ones.
func Load(path string, opts Options) (*sml.Document, Encoding, error) {
	opts, err := opts.WithDefaults()
	if err != nil {
		return nil, 0, err
	}

	data, err := opts.FS.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	text, enc, err := DecodeText(data)
	if err != nil {
		return nil, 0, WithContext(err, path, 0, 0)
	}

	doc, err := sml.Parse(text, opts.Preserve())
	if err != nil {
		return nil, 0, WithContext(err, path, 0, 0)
	}

	return doc, enc, nil
}

// Save writes doc to path in enc. The file is replaced atomically.
func Save(doc *sml.Document, path string, enc Encoding, opts Options) error {
	opts, err := opts.WithDefaults()
	if err != nil {
		return err
	}

	text, err := doc.Serialize(opts.Preserve())
	if err != nil {
		return err
	}

	data, err := EncodeText(text, enc)
	if err != nil {
		return err
	}

	return opts.FS.WriteFileAtomic(path, bytes.NewReader(data))
}

// AppendNodes appends nodes to the root of the document at path, creating
// it from template when missing. Nothing happens for an empty list.
func AppendNodes(nodes []sml.Node, template *sml.Document, path string, opts Options) error {
	if len(nodes) == 0 {
		return nil
	}

	w, err := CreateWriter(template, path, CreateOrAppend, opts)
	if err != nil {
		return err
	}

	if err := w.WriteNodes(nodes); err != nil {
		return errors.Join(err, w.Close())
	}

	return w.Close()
}

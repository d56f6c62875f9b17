// Package bsml reads and writes SML documents in a compact binary form.
//
// A binary file starts with the 3-byte preamble "BS1" followed by the root
// element's start tag. The root's children follow one after another until
// end of file; the root has no end tag, so appending children never touches
// bytes already written.
//
// Every tag and length is an unsigned LEB128 varint of at most 8 bytes:
//
//	element start   (len(name)+1)<<1, then the name bytes
//	attribute start len(name)<<1 | 1, then the name bytes
//	attribute value 0 ends the value list, 1 is null, len(s)+2 then the bytes
//	element end     0
//
// Blank and comment nodes have no binary form and are dropped on encode.
package bsml

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dennwc/varint"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"
)

const (
	// Version is the format version this package reads and writes.
	Version = '1'

	// PreambleSize is the length of the magic and version prefix.
	PreambleSize = 3

	// MaxVarIntLen is the longest varint accepted, carrying 56 bits.
	MaxVarIntLen = 8

	maxVarIntValue = 1<<56 - 1

	tagEnd = 0
)

var preamble = []byte{'B', 'S', Version}

// Sentinel errors returned by bsml operations.
var (
	// ErrUnsupportedVersion indicates a missing preamble or a version other
	// than [Version].
	ErrUnsupportedVersion = errors.New("bsml: unsupported version")

	// ErrMalformed indicates a tag that is not valid at its position.
	ErrMalformed = errors.New("bsml: malformed data")

	// ErrTruncated indicates the data ended inside a node.
	ErrTruncated = errors.New("bsml: truncated data")

	// ErrVarIntOverflow indicates a varint longer than [MaxVarIntLen] bytes
	// or a value above 56 bits.
	ErrVarIntOverflow = errors.New("bsml: varint overflow")
)

// Preamble returns the magic and version bytes.
func Preamble() []byte {
	return bytes.Clone(preamble)
}

// CheckPreamble validates the first bytes of a binary document.
func CheckPreamble(start []byte) error {
	if len(start) < PreambleSize || start[0] != 'B' || start[1] != 'S' {
		return fmt.Errorf("%w: missing preamble", ErrUnsupportedVersion)
	}

	if start[2] != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, start[2])
	}

	return nil
}

// AppendVarInt appends v as a varint.
func AppendVarInt(dst []byte, v uint64) ([]byte, error) {
	if v > maxVarIntValue {
		return dst, fmt.Errorf("%w: %d", ErrVarIntOverflow, v)
	}

	return binary.AppendUvarint(dst, v), nil
}

// DecodeVarInt decodes a varint at the start of buf and returns the value
// and the number of bytes used. n is 0 when buf ends before the varint does.
func DecodeVarInt(buf []byte) (v uint64, n int, err error) {
	window := buf
	if len(window) > MaxVarIntLen {
		window = window[:MaxVarIntLen]
	}

	v, n = varint.Uvarint(window)

	switch {
	case n < 0:
		return 0, 0, ErrVarIntOverflow
	case n == 0 && len(buf) >= MaxVarIntLen:
		return 0, 0, fmt.Errorf("%w: more than %d bytes", ErrVarIntOverflow, MaxVarIntLen)
	case n == 0:
		return 0, 0, nil
	}

	return v, n, nil
}

// AppendElementStart appends the start tag of an element named name.
func AppendElementStart(dst []byte, name string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(name)+1)<<1)

	return append(dst, name...)
}

func appendAttributeStart(dst []byte, name string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(name))<<1|1)

	return append(dst, name...)
}

func appendValue(dst []byte, v wsv.Value) []byte {
	if v.Null {
		return binary.AppendUvarint(dst, 1)
	}

	dst = binary.AppendUvarint(dst, uint64(len(v.Str))+2)

	return append(dst, v.Str...)
}

// AppendNode appends the encoding of node. Empty nodes append nothing.
func AppendNode(dst []byte, node sml.Node) []byte {
	switch n := node.(type) {
	case *sml.Element:
		dst = AppendElementStart(dst, n.Name)
		dst = AppendNodeList(dst, n.Nodes)

		return binary.AppendUvarint(dst, tagEnd)
	case *sml.Attribute:
		dst = appendAttributeStart(dst, n.Name)

		values := n.Values
		if len(values) == 0 {
			values = []wsv.Value{wsv.Null()}
		}

		for _, v := range values {
			dst = appendValue(dst, v)
		}

		return binary.AppendUvarint(dst, tagEnd)
	case *sml.EmptyNode:
		return dst
	default:
		return dst
	}
}

// AppendNodeList appends the encoding of each node in order.
func AppendNodeList(dst []byte, nodes []sml.Node) []byte {
	for _, n := range nodes {
		dst = AppendNode(dst, n)
	}

	return dst
}

// EncodeNode returns the encoding of node.
func EncodeNode(node sml.Node) []byte {
	return AppendNode(nil, node)
}

// EncodeDocument returns the full file content for doc: preamble, root
// start tag and the root's children.
func EncodeDocument(doc *sml.Document) []byte {
	out := Preamble()
	out = AppendElementStart(out, doc.Root.Name)

	return AppendNodeList(out, doc.Root.Nodes)
}

// source is what the decoder reads from: an in-memory slice or a chunked
// file stream.
type source interface {
	// readVarInt reads the next varint. eof reports that no bytes were left.
	readVarInt() (v uint64, eof bool, err error)

	// readString reads exactly n bytes.
	readString(n uint64) (string, error)

	// offset is the position of the next unread byte.
	offset() int64
}

// readTopLevel reads one child of the root, or nil at end of data.
func readTopLevel(src source) (sml.Node, error) {
	at := src.offset()

	tag, eof, err := src.readVarInt()
	if err != nil || eof {
		return nil, err
	}

	if tag == tagEnd {
		return nil, &smlio.Error{Offset: at, Err: fmt.Errorf("%w: end tag outside element", ErrMalformed)}
	}

	return readNode(src, tag)
}

// readRootStart reads the root element's start tag.
func readRootStart(src source) (*sml.Element, error) {
	at := src.offset()

	tag, eof, err := src.readVarInt()
	if err != nil {
		return nil, err
	}

	if eof {
		return nil, &smlio.Error{Offset: at, Err: fmt.Errorf("%w: missing root element", ErrTruncated)}
	}

	if tag == tagEnd || tag&1 == 1 {
		return nil, &smlio.Error{Offset: at, Err: fmt.Errorf("%w: root is not an element", ErrMalformed)}
	}

	name, err := src.readString(tag>>1 - 1)
	if err != nil {
		return nil, err
	}

	return &sml.Element{Name: name}, nil
}

// readNode reads the node whose non-zero start tag has been consumed.
func readNode(src source, tag uint64) (sml.Node, error) {
	if tag&1 == 0 {
		name, err := src.readString(tag>>1 - 1)
		if err != nil {
			return nil, err
		}

		el := &sml.Element{Name: name}

		for {
			child, err := nextTag(src)
			if err != nil {
				return nil, err
			}

			if child == tagEnd {
				return el, nil
			}

			node, err := readNode(src, child)
			if err != nil {
				return nil, err
			}

			el.Nodes = append(el.Nodes, node)
		}
	}

	name, err := src.readString(tag >> 1)
	if err != nil {
		return nil, err
	}

	attr := &sml.Attribute{Name: name}

	for {
		v, err := nextTag(src)
		if err != nil {
			return nil, err
		}

		switch v {
		case tagEnd:
			return attr, nil
		case 1:
			attr.Values = append(attr.Values, wsv.Null())
		default:
			s, err := src.readString(v - 2)
			if err != nil {
				return nil, err
			}

			attr.Values = append(attr.Values, wsv.String(s))
		}
	}
}

// nextTag reads a varint inside a node, where end of data is an error.
func nextTag(src source) (uint64, error) {
	at := src.offset()

	v, eof, err := src.readVarInt()
	if err != nil {
		return 0, err
	}

	if eof {
		return 0, &smlio.Error{Offset: at, Err: fmt.Errorf("%w: node not terminated", ErrTruncated)}
	}

	return v, nil
}

// sliceSource decodes from memory.
type sliceSource struct {
	data []byte
	pos  int
}

func (s *sliceSource) readVarInt() (uint64, bool, error) {
	if s.pos >= len(s.data) {
		return 0, true, nil
	}

	v, n, err := DecodeVarInt(s.data[s.pos:])
	if err != nil {
		return 0, false, &smlio.Error{Offset: int64(s.pos), Err: err}
	}

	if n == 0 {
		return 0, false, &smlio.Error{Offset: int64(s.pos), Err: fmt.Errorf("%w: varint cut off", ErrTruncated)}
	}

	s.pos += n

	return v, false, nil
}

func (s *sliceSource) readString(n uint64) (string, error) {
	if n > uint64(len(s.data)-s.pos) {
		return "", &smlio.Error{Offset: int64(s.pos), Err: fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(s.data)-s.pos)}
	}

	str := string(s.data[s.pos : s.pos+int(n)])
	s.pos += int(n)

	return str, nil
}

func (s *sliceSource) offset() int64 { return int64(s.pos) }

// DecodeNode decodes one node from the start of data and returns it with
// the number of bytes used.
func DecodeNode(data []byte) (sml.Node, int, error) {
	src := &sliceSource{data: data}

	tag, err := nextTag(src)
	if err != nil {
		return nil, 0, err
	}

	if tag == tagEnd {
		return nil, 0, fmt.Errorf("%w: end tag outside element", ErrMalformed)
	}

	node, err := readNode(src, tag)
	if err != nil {
		return nil, 0, err
	}

	return node, src.pos, nil
}

// DecodeDocument decodes full file content. The document gets the default
// end keyword, since binary files have none.
func DecodeDocument(data []byte) (*sml.Document, error) {
	if err := CheckPreamble(data); err != nil {
		return nil, err
	}

	src := &sliceSource{data: data, pos: PreambleSize}

	root, err := readRootStart(src)
	if err != nil {
		return nil, err
	}

	for {
		node, err := readTopLevel(src)
		if err != nil {
			return nil, err
		}

		if node == nil {
			return sml.NewDocument(root), nil
		}

		root.Nodes = append(root.Nodes, node)
	}
}

package smlio

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding is a ReliableTXT text encoding, identified by the byte-order mark
// at the start of the file.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16
	UTF16Reverse
	UTF32
)

var preambles = [...][]byte{
	UTF8:         {0xEF, 0xBB, 0xBF},
	UTF16:        {0xFE, 0xFF},
	UTF16Reverse: {0xFF, 0xFE},
	UTF32:        {0x00, 0x00, 0xFE, 0xFF},
}

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16:
		return "utf-16"
	case UTF16Reverse:
		return "utf-16le"
	case UTF32:
		return "utf-32"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// ParseEncoding parses the names printed by [Encoding.String].
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "utf-8", "utf8":
		return UTF8, nil
	case "utf-16", "utf16", "utf-16be":
		return UTF16, nil
	case "utf-16le", "utf16le":
		return UTF16Reverse, nil
	case "utf-32", "utf32", "utf-32be":
		return UTF32, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
	}
}

// Preamble returns the byte-order mark written before the text.
func (e Encoding) Preamble() []byte {
	if int(e) >= len(preambles) {
		return nil
	}

	return preambles[e]
}

// DetectEncoding identifies the byte-order mark at the start of data and
// returns the encoding and the mark's length.
func DetectEncoding(data []byte) (Encoding, int, error) {
	// UTF-32 first: its mark starts with bytes no other mark has.
	for _, e := range []Encoding{UTF32, UTF8, UTF16, UTF16Reverse} {
		if p := e.Preamble(); bytes.HasPrefix(data, p) {
			return e, len(p), nil
		}
	}

	return 0, 0, ErrNoPreamble
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF16:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF16Reverse:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF32:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	default:
		return unicode.UTF8
	}
}

// DecodeText strips the byte-order mark from data and decodes the rest.
func DecodeText(data []byte) (string, Encoding, error) {
	enc, n, err := DetectEncoding(data)
	if err != nil {
		return "", 0, err
	}

	if enc == UTF8 {
		return string(data[n:]), enc, nil
	}

	text, err := enc.codec().NewDecoder().Bytes(data[n:])
	if err != nil {
		return "", 0, fmt.Errorf("decode %s: %w", enc, err)
	}

	return string(text), enc, nil
}

// EncodeText returns the byte-order mark of enc followed by text in enc.
func EncodeText(text string, enc Encoding) ([]byte, error) {
	preamble := enc.Preamble()
	if preamble == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	body := []byte(text)

	if enc != UTF8 {
		var err error

		body, err = enc.codec().NewEncoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", enc, err)
		}
	}

	out := make([]byte, 0, len(preamble)+len(body))
	out = append(out, preamble...)

	return append(out, body...), nil
}

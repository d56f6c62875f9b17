// Package wsv implements the Whitespace Separated Values line format.
//
// A WSV line is a sequence of values separated by whitespace, optionally
// followed by a comment that starts with '#' and runs to the end of the line:
//
//	Name  "John Doe"  -  ""  # comment
//
// The value `-` is null, `""` is the empty string, and a quoted value escapes
// '"' as `""` and a line feed as `"/"`. Values containing whitespace, '"', '#'
// or a line feed, and the literal string "-", must be quoted.
//
// The package works on single lines only. Splitting a document into lines
// and decoding the file's byte-order mark are the caller's job.
package wsv

import (
	"errors"
	"fmt"
)

// ErrParse is the sentinel wrapped by every [*ParseError].
var ErrParse = errors.New("wsv: parse error")

// ParseError describes a malformed line.
type ParseError struct {
	// Column is the zero-based rune index where parsing failed.
	Column int

	// Reason is a short human-readable description.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wsv: %s (column %d)", e.Reason, e.Column)
}

// Unwrap returns [ErrParse].
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Value is a single WSV value: a string or null.
type Value struct {
	Str  string
	Null bool
}

// String returns a non-null value holding s.
func String(s string) Value {
	return Value{Str: s}
}

// Null returns the null value.
func Null() Value {
	return Value{Null: true}
}

// Ptr returns the value as a *string, nil for null.
func (v Value) Ptr() *string {
	if v.Null {
		return nil
	}

	s := v.Str

	return &s
}

// FromPtr converts a *string into a [Value]; nil becomes null.
func FromPtr(s *string) Value {
	if s == nil {
		return Null()
	}

	return String(*s)
}

// Strings builds non-null values from ss.
func Strings(ss ...string) []Value {
	values := make([]Value, len(ss))
	for i, s := range ss {
		values[i] = String(s)
	}

	return values
}

// Line is one parsed WSV line.
//
// Whitespace between values is not retained; serialization separates values
// with a single space.
type Line struct {
	Values []Value

	// Indent is the whitespace before the first value or comment.
	Indent string

	// Comment is the text after '#', nil when the line has no comment.
	Comment *string
}

// HasValues reports whether the line carries at least one value.
func (l Line) HasValues() bool {
	return len(l.Values) > 0
}

// String serializes the line. See [SerializeLine].
func (l Line) String() string {
	return SerializeLine(l)
}

// IsWhitespace reports whether r is a WSV whitespace character.
func IsWhitespace(r rune) bool {
	switch r {
	case 0x09, 0x0B, 0x0C, 0x0D, 0x20, 0x85, 0xA0, 0x1680,
		0x2028, 0x2029, 0x202F, 0x205F, 0x3000:
		return true
	}

	return r >= 0x2000 && r <= 0x200A
}

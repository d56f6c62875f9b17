package sml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/smlio/pkg/wsv"
)

// ErrParse is the sentinel wrapped by every [*ParseError].
var ErrParse = errors.New("sml: parse error")

// ParseError describes a document that does not follow the SML grammar.
type ParseError struct {
	// Line is the zero-based index of the offending line, -1 when unknown.
	Line int

	Reason string
}

func (e *ParseError) Error() string {
	if e.Line < 0 {
		return "sml: " + e.Reason
	}

	return fmt.Sprintf("sml: %s (line %d)", e.Reason, e.Line+1)
}

// Unwrap returns [ErrParse].
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// LineIterator is a one-line-lookahead source of WSV lines.
//
// Stream readers implement it over a file; [Parse] over an in-memory slice.
type LineIterator interface {
	// HasLine reports whether a current line is available.
	HasLine() (bool, error)

	// IsEmptyLine reports whether the current line has no values.
	IsEmptyLine() (bool, error)

	// GetLine consumes and returns the current line.
	GetLine() (wsv.Line, error)

	// EndKeyword is the keyword closing elements, nil for the null marker.
	EndKeyword() *string

	// LineIndex is the number of lines consumed so far.
	LineIndex() int
}

// IsEndKeyword reports whether v closes an element under endKeyword. The
// comparison ignores case.
func IsEndKeyword(v wsv.Value, endKeyword *string) bool {
	if endKeyword == nil {
		return v.Null
	}

	return !v.Null && strings.EqualFold(v.Str, *endKeyword)
}

// ReadRootElement consumes leading empty lines into emptyNodesBefore and the
// root element's opening line. The root's children are not read.
func ReadRootElement(it LineIterator, emptyNodesBefore *[]*EmptyNode) (*Element, error) {
	for {
		empty, err := isEmptyLine(it)
		if err != nil {
			return nil, err
		}

		if !empty {
			break
		}

		line, err := it.GetLine()
		if err != nil {
			return nil, err
		}

		if emptyNodesBefore != nil {
			*emptyNodesBefore = append(*emptyNodesBefore, emptyNodeFromLine(line))
		}
	}

	ok, err := it.HasLine()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, &ParseError{Line: it.LineIndex(), Reason: "root element expected"}
	}

	index := it.LineIndex()

	line, err := it.GetLine()
	if err != nil {
		return nil, err
	}

	if len(line.Values) != 1 || IsEndKeyword(line.Values[0], it.EndKeyword()) {
		return nil, &ParseError{Line: index, Reason: "invalid root element start"}
	}

	if line.Values[0].Null {
		return nil, &ParseError{Line: index, Reason: "null value as element name is not allowed"}
	}

	return &Element{Name: line.Values[0].Str}, nil
}

// ReadNode consumes one child node of the element being read. It returns
// nil when the consumed line is the end keyword closing that element.
//
// The caller must ensure a line is available.
func ReadNode(it LineIterator) (Node, error) {
	index := it.LineIndex()

	line, err := it.GetLine()
	if err != nil {
		return nil, err
	}

	if !line.HasValues() {
		return emptyNodeFromLine(line), nil
	}

	name := line.Values[0]

	if len(line.Values) > 1 {
		if name.Null {
			return nil, &ParseError{Line: index, Reason: "null value as attribute name is not allowed"}
		}

		values := make([]wsv.Value, len(line.Values)-1)
		copy(values, line.Values[1:])

		return &Attribute{Name: name.Str, Values: values}, nil
	}

	if IsEndKeyword(name, it.EndKeyword()) {
		return nil, nil
	}

	if name.Null {
		return nil, &ParseError{Line: index, Reason: "null value as element name is not allowed"}
	}

	element := &Element{Name: name.Str}

	for {
		ok, err := it.HasLine()
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, &ParseError{Line: it.LineIndex(), Reason: fmt.Sprintf("element %q not closed", element.Name)}
		}

		child, err := ReadNode(it)
		if err != nil {
			return nil, err
		}

		if child == nil {
			return element, nil
		}

		element.Nodes = append(element.Nodes, child)
	}
}

func isEmptyLine(it LineIterator) (bool, error) {
	ok, err := it.HasLine()
	if err != nil || !ok {
		return false, err
	}

	return it.IsEmptyLine()
}

func emptyNodeFromLine(line wsv.Line) *EmptyNode {
	return &EmptyNode{Whitespace: line.Indent, Comment: line.Comment}
}

// sliceIterator is a [LineIterator] over parsed in-memory lines.
type sliceIterator struct {
	lines      []wsv.Line
	index      int
	endKeyword *string
}

func (it *sliceIterator) HasLine() (bool, error) {
	return it.index < len(it.lines), nil
}

func (it *sliceIterator) IsEmptyLine() (bool, error) {
	if it.index >= len(it.lines) {
		return false, errInvalidState
	}

	return !it.lines[it.index].HasValues(), nil
}

func (it *sliceIterator) GetLine() (wsv.Line, error) {
	if it.index >= len(it.lines) {
		return wsv.Line{}, errInvalidState
	}

	line := it.lines[it.index]
	it.index++

	return line, nil
}

func (it *sliceIterator) EndKeyword() *string { return it.endKeyword }
func (it *sliceIterator) LineIndex() int      { return it.index }

var errInvalidState = errors.New("sml: no current line")

// Parse parses a whole document held in memory. Lines are separated by '\n'.
//
// With preserve false, blank and comment lines are dropped everywhere in
// the tree.
func Parse(text string, preserve bool) (*Document, error) {
	raw := strings.Split(text, "\n")
	lines := make([]wsv.Line, len(raw))

	for i, s := range raw {
		line, err := wsv.ParseLine(s)
		if err != nil {
			return nil, &ParseError{Line: i, Reason: err.Error()}
		}

		lines[i] = line
	}

	endKeyword, err := DetectEndKeyword(lines)
	if err != nil {
		return nil, err
	}

	doc := &Document{EndKeyword: endKeyword}
	it := &sliceIterator{lines: lines, endKeyword: endKeyword}

	root, err := ReadRootElement(it, &doc.EmptyNodesBefore)
	if err != nil {
		return nil, err
	}

	for {
		if it.index >= len(it.lines) {
			return nil, &ParseError{Line: it.index, Reason: fmt.Sprintf("element %q not closed", root.Name)}
		}

		node, err := ReadNode(it)
		if err != nil {
			return nil, err
		}

		if node == nil {
			break
		}

		root.Nodes = append(root.Nodes, node)
	}

	for it.index < len(it.lines) {
		line := it.lines[it.index]
		if line.HasValues() {
			return nil, &ParseError{Line: it.index, Reason: "only one root element allowed"}
		}

		doc.EmptyNodesAfter = append(doc.EmptyNodesAfter, emptyNodeFromLine(line))
		it.index++
	}

	doc.Root = root

	if !preserve {
		root.Nodes = StripEmptyNodes(root.Nodes)
		doc.EmptyNodesBefore = nil
		doc.EmptyNodesAfter = nil
	}

	return doc, nil
}

// DetectEndKeyword returns the single value of the last line that has
// values.
func DetectEndKeyword(lines []wsv.Line) (*string, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		if !lines[i].HasValues() {
			continue
		}

		if len(lines[i].Values) > 1 {
			return nil, &ParseError{Line: i, Reason: "invalid end line"}
		}

		return lines[i].Values[0].Ptr(), nil
	}

	return nil, &ParseError{Line: -1, Reason: "end keyword could not be detected"}
}

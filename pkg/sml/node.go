// Package sml implements the Simple Markup Language document model.
//
// An SML document is a tree of elements and attributes written as WSV lines.
// Elements open with a line holding just their name and close with a line
// holding the document's end keyword; attributes are lines with a name and
// at least one value:
//
//	Configuration
//		Video
//			Resolution 1280 720
//		End
//	End
//
// Blank and comment-only lines are kept as [EmptyNode] values when whitespace
// and comments are preserved.
package sml

import "github.com/calvinalkan/smlio/pkg/wsv"

// Node is one of [*Element], [*Attribute] or [*EmptyNode].
//
// The set is closed; consumers switch over the three concrete types.
type Node interface {
	node()
}

// Element is a named node with ordered children.
type Element struct {
	Name  string
	Nodes []Node
}

// Attribute is a named node holding one or more values.
type Attribute struct {
	Name   string
	Values []wsv.Value
}

// EmptyNode is a blank or comment-only line.
type EmptyNode struct {
	// Whitespace is the whitespace before the comment, or the whole line
	// when there is no comment.
	Whitespace string

	// Comment is the text after '#', nil when absent.
	Comment *string
}

func (*Element) node()   {}
func (*Attribute) node() {}
func (*EmptyNode) node() {}

// NewElement returns an element with the given children.
func NewElement(name string, nodes ...Node) *Element {
	return &Element{Name: name, Nodes: nodes}
}

// NewAttribute returns an attribute. Without values the attribute holds a
// single null value, since an attribute line needs at least one.
func NewAttribute(name string, values ...wsv.Value) *Attribute {
	if len(values) == 0 {
		values = []wsv.Value{wsv.Null()}
	}

	return &Attribute{Name: name, Values: values}
}

// NewStringAttribute returns an attribute with non-null string values.
func NewStringAttribute(name string, values ...string) *Attribute {
	return NewAttribute(name, wsv.Strings(values...)...)
}

// NewComment returns an empty node holding a comment.
func NewComment(comment string) *EmptyNode {
	return &EmptyNode{Comment: &comment}
}

// Add appends children and returns the element.
func (e *Element) Add(nodes ...Node) *Element {
	e.Nodes = append(e.Nodes, nodes...)

	return e
}

// Elements returns the direct child elements.
func (e *Element) Elements() []*Element {
	var out []*Element

	for _, n := range e.Nodes {
		if el, ok := n.(*Element); ok {
			out = append(out, el)
		}
	}

	return out
}

// Attributes returns the direct child attributes.
func (e *Element) Attributes() []*Attribute {
	var out []*Attribute

	for _, n := range e.Nodes {
		if a, ok := n.(*Attribute); ok {
			out = append(out, a)
		}
	}

	return out
}

// StripEmptyNodes removes empty nodes from nodes and from the children of
// every element below them. Returns nil when nothing remains.
func StripEmptyNodes(nodes []Node) []Node {
	var out []Node

	for _, n := range nodes {
		switch n := n.(type) {
		case *EmptyNode:
			continue
		case *Element:
			n.Nodes = StripEmptyNodes(n.Nodes)
			out = append(out, n)
		case *Attribute:
			out = append(out, n)
		}
	}

	return out
}

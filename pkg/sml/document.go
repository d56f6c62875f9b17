package sml

import (
	"fmt"
	"strings"

	"github.com/calvinalkan/smlio/pkg/wsv"
)

// DefaultEndKeyword is the end keyword of documents built by [NewDocument].
const DefaultEndKeyword = "End"

// Document is a root element plus the settings used to write it.
type Document struct {
	Root *Element

	// EndKeyword closes every element. Nil writes the null marker "-".
	EndKeyword *string

	// DefaultIndentation is repeated once per nesting level. Nil means a tab.
	DefaultIndentation *string

	EmptyNodesBefore []*EmptyNode
	EmptyNodesAfter  []*EmptyNode
}

// NewDocument returns a document for root with end keyword "End".
func NewDocument(root *Element) *Document {
	end := DefaultEndKeyword

	return &Document{Root: root, EndKeyword: &end}
}

// Serialize returns the document text. Lines are joined with '\n' and the
// result has no trailing line feed.
func (d *Document) Serialize(preserve bool) (string, error) {
	var lines []string

	if preserve {
		for _, n := range d.EmptyNodesBefore {
			lines = append(lines, serializeEmptyNode(n))
		}
	}

	lines, err := AppendNodeLines(lines, d.Root, 0, d.DefaultIndentation, d.EndKeyword, preserve)
	if err != nil {
		return "", err
	}

	if preserve {
		for _, n := range d.EmptyNodesAfter {
			lines = append(lines, serializeEmptyNode(n))
		}
	}

	return strings.Join(lines, "\n"), nil
}

// SerializeNode returns the lines of node written at the given nesting level.
func SerializeNode(node Node, level int, indentation, endKeyword *string, preserve bool) ([]string, error) {
	return AppendNodeLines(nil, node, level, indentation, endKeyword, preserve)
}

// AppendNodeLines appends the lines of node written at level to lines.
//
// An element whose name matches the end keyword cannot be written, since
// it would read back as a closing line.
func AppendNodeLines(lines []string, node Node, level int, indentation, endKeyword *string, preserve bool) ([]string, error) {
	indent := "\t"
	if indentation != nil {
		indent = *indentation
	}

	prefix := strings.Repeat(indent, level)

	switch n := node.(type) {
	case *Element:
		name := wsv.String(n.Name)
		if IsEndKeyword(name, endKeyword) {
			return lines, fmt.Errorf("sml: element name %q collides with end keyword", n.Name)
		}

		lines = append(lines, prefix+wsv.SerializeValue(name))

		for _, child := range n.Nodes {
			var err error

			lines, err = AppendNodeLines(lines, child, level+1, indentation, endKeyword, preserve)
			if err != nil {
				return lines, err
			}
		}

		lines = append(lines, prefix+wsv.SerializeValue(wsv.FromPtr(endKeyword)))
	case *Attribute:
		values := n.Values
		if len(values) == 0 {
			values = []wsv.Value{wsv.Null()}
		}

		lines = append(lines, prefix+wsv.SerializeValue(wsv.String(n.Name))+" "+wsv.SerializeValues(values))
	case *EmptyNode:
		if preserve {
			lines = append(lines, serializeEmptyNode(n))
		}
	default:
		return lines, fmt.Errorf("sml: unknown node type %T", node)
	}

	return lines, nil
}

func serializeEmptyNode(n *EmptyNode) string {
	return wsv.SerializeLine(wsv.Line{Indent: n.Whitespace, Comment: n.Comment})
}

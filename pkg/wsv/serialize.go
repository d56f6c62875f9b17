package wsv

import "strings"

// SerializeValue returns v in its line form, quoting when needed.
func SerializeValue(v Value) string {
	if v.Null {
		return "-"
	}

	if v.Str == "" {
		return `""`
	}

	if v.Str == "-" || needsQuotes(v.Str) {
		var sb strings.Builder

		sb.Grow(len(v.Str) + 2)
		sb.WriteByte('"')

		for _, r := range v.Str {
			switch r {
			case '"':
				sb.WriteString(`""`)
			case '\n':
				sb.WriteString(`"/"`)
			default:
				sb.WriteRune(r)
			}
		}

		sb.WriteByte('"')

		return sb.String()
	}

	return v.Str
}

// SerializeValues joins values with single spaces.
func SerializeValues(values []Value) string {
	var sb strings.Builder

	for i, v := range values {
		if i > 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(SerializeValue(v))
	}

	return sb.String()
}

// SerializeLine returns the line form of l: indent, values, then the comment.
func SerializeLine(l Line) string {
	var sb strings.Builder

	sb.WriteString(l.Indent)
	sb.WriteString(SerializeValues(l.Values))

	if l.Comment != nil {
		if len(l.Values) > 0 {
			sb.WriteByte(' ')
		}

		sb.WriteByte('#')
		sb.WriteString(*l.Comment)
	}

	return sb.String()
}

func needsQuotes(s string) bool {
	for _, r := range s {
		if r == '"' || r == '#' || r == '\n' || IsWhitespace(r) {
			return true
		}
	}

	return false
}

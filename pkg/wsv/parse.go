package wsv

import "strings"

// ParseLine parses a single line. The input must not contain a line feed.
func ParseLine(s string) (Line, error) {
	var (
		line  Line
		runes = []rune(s)
		i     = 0
	)

	start := i
	for i < len(runes) && IsWhitespace(runes[i]) {
		i++
	}

	line.Indent = string(runes[start:i])

	for i < len(runes) {
		r := runes[i]

		switch {
		case r == '\n':
			return Line{}, &ParseError{Column: i, Reason: "line feed in line"}
		case r == '#':
			comment := string(runes[i+1:])
			line.Comment = &comment

			return line, nil
		case r == '"':
			v, next, err := parseQuoted(runes, i)
			if err != nil {
				return Line{}, err
			}

			line.Values = append(line.Values, String(v))
			i = next
		default:
			start := i
			for i < len(runes) && !IsWhitespace(runes[i]) && runes[i] != '#' {
				switch runes[i] {
				case '"':
					return Line{}, &ParseError{Column: i, Reason: "invalid double quote in value"}
				case '\n':
					return Line{}, &ParseError{Column: i, Reason: "line feed in line"}
				}

				i++
			}

			v := string(runes[start:i])
			if v == "-" {
				line.Values = append(line.Values, Null())
			} else {
				line.Values = append(line.Values, String(v))
			}
		}

		for i < len(runes) && IsWhitespace(runes[i]) {
			i++
		}
	}

	return line, nil
}

// parseQuoted parses a quoted value starting at the opening quote at i and
// returns the value and the index after the closing quote.
func parseQuoted(runes []rune, i int) (string, int, error) {
	var sb strings.Builder

	i++

	for {
		if i >= len(runes) || runes[i] == '\n' {
			return "", 0, &ParseError{Column: i, Reason: "string not closed"}
		}

		r := runes[i]
		if r != '"' {
			sb.WriteRune(r)
			i++

			continue
		}

		// Closing quote or escape sequence.
		i++

		if i < len(runes) && runes[i] == '"' {
			sb.WriteByte('"')
			i++

			continue
		}

		if i+1 < len(runes) && runes[i] == '/' && runes[i+1] == '"' {
			sb.WriteByte('\n')
			i += 2

			continue
		}

		break
	}

	if i < len(runes) && !IsWhitespace(runes[i]) && runes[i] != '#' {
		return "", 0, &ParseError{Column: i, Reason: "invalid character after string"}
	}

	return sb.String(), i, nil
}

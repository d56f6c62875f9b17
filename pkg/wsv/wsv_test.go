package wsv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strPtr(s string) *string { return &s }

func Test_ParseLine_Returns_Values_When_Line_Is_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Line
	}{
		{
			name:  "empty",
			input: "",
			want:  Line{},
		},
		{
			name:  "whitespace only",
			input: " \t ",
			want:  Line{Indent: " \t "},
		},
		{
			name:  "plain values",
			input: "a b\tc",
			want:  Line{Values: Strings("a", "b", "c")},
		},
		{
			name:  "indented attribute",
			input: "\tName Value",
			want:  Line{Indent: "\t", Values: Strings("Name", "Value")},
		},
		{
			name:  "null and empty",
			input: `- ""`,
			want:  Line{Values: []Value{Null(), String("")}},
		},
		{
			name:  "quoted with escapes",
			input: `"a b" "say ""hi""" "x"/"y"`,
			want:  Line{Values: Strings("a b", `say "hi"`, "x\ny")},
		},
		{
			name:  "quoted dash is a string",
			input: `"-"`,
			want:  Line{Values: Strings("-")},
		},
		{
			name:  "comment after values",
			input: "a b #note",
			want:  Line{Values: Strings("a", "b"), Comment: strPtr("note")},
		},
		{
			name:  "comment terminates unquoted value",
			input: "a#b",
			want:  Line{Values: Strings("a"), Comment: strPtr("b")},
		},
		{
			name:  "comment only",
			input: "  # hello",
			want:  Line{Indent: "  ", Comment: strPtr(" hello")},
		},
		{
			name:  "unicode whitespace separates",
			input: "a　b c",
			want:  Line{Values: Strings("a", "b", "c")},
		},
		{
			name:  "multibyte values",
			input: "契約 エンド",
			want:  Line{Values: Strings("契約", "エンド")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLine(tt.input)
			if err != nil {
				t.Fatalf("ParseLine(%q): %v", tt.input, err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ParseLine(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func Test_ParseLine_Returns_ParseError_When_Line_Is_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		column int
	}{
		{name: "unclosed string", input: `a "bc`, column: 5},
		{name: "quote inside value", input: `ab"c`, column: 2},
		{name: "character after string", input: `"a"b`, column: 3},
		{name: "line feed", input: "a\nb", column: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseLine(tt.input)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("err=%v, want=%v", err, ErrParse)
			}

			var pErr *ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("err should be *ParseError, got %T", err)
			}

			if got, want := pErr.Column, tt.column; got != want {
				t.Fatalf("column=%d, want=%d", got, want)
			}
		})
	}
}

func Test_SerializeValue_Quotes_When_Value_Needs_It(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Value
		want  string
	}{
		{Null(), "-"},
		{String(""), `""`},
		{String("-"), `"-"`},
		{String("plain"), "plain"},
		{String("two words"), `"two words"`},
		{String(`q"q`), `"q""q"`},
		{String("a#b"), `"a#b"`},
		{String("line\nbreak"), `"line"/"break"`},
		{String("--"), "--"},
	}

	for _, tt := range tests {
		if got := SerializeValue(tt.value); got != tt.want {
			t.Errorf("SerializeValue(%+v)=%q, want=%q", tt.value, got, tt.want)
		}
	}
}

func Test_SerializeLine_Parses_Back_To_Same_Line(t *testing.T) {
	t.Parallel()

	line := Line{
		Indent:  "\t\t",
		Values:  []Value{String("Name"), Null(), String(""), String("a b"), String("x\"y\nz")},
		Comment: strPtr(" trailing"),
	}

	got, err := ParseLine(SerializeLine(line))
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}

	if diff := cmp.Diff(line, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func Test_Value_Ptr_Returns_Nil_When_Value_Is_Null(t *testing.T) {
	t.Parallel()

	if got := Null().Ptr(); got != nil {
		t.Fatalf("Ptr()=%q, want nil", *got)
	}

	if got, want := *String("End").Ptr(), "End"; got != want {
		t.Fatalf("Ptr()=%q, want=%q", got, want)
	}

	if got, want := FromPtr(nil), Null(); got != want {
		t.Fatalf("FromPtr(nil)=%+v, want=%+v", got, want)
	}
}

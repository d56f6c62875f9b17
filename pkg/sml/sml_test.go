package sml

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/smlio/pkg/wsv"
)

func strPtr(s string) *string { return &s }

const configText = `# settings
Configuration
	Video
		Resolution 1280 720
		RefreshRate 60
		Fullscreen true
	End
	# audio follows
	Audio
		Volume 100
		Music 80
	End
	Player
		Name "Hero 123"
		Nick -
	End
End`

func Test_Parse_Builds_Tree_When_Document_Is_Valid(t *testing.T) {
	t.Parallel()

	doc, err := Parse(configText, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := &Document{
		Root: NewElement("Configuration",
			NewElement("Video",
				NewStringAttribute("Resolution", "1280", "720"),
				NewStringAttribute("RefreshRate", "60"),
				NewStringAttribute("Fullscreen", "true"),
			),
			&EmptyNode{Whitespace: "\t", Comment: strPtr(" audio follows")},
			NewElement("Audio",
				NewStringAttribute("Volume", "100"),
				NewStringAttribute("Music", "80"),
			),
			NewElement("Player",
				NewStringAttribute("Name", "Hero 123"),
				NewAttribute("Nick", wsv.Null()),
			),
		),
		EndKeyword:       strPtr("End"),
		EmptyNodesBefore: []*EmptyNode{{Comment: strPtr(" settings")}},
	}

	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func Test_Parse_Drops_Comments_When_Preserve_Is_False(t *testing.T) {
	t.Parallel()

	doc, err := Parse(configText, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := len(doc.EmptyNodesBefore), 0; got != want {
		t.Fatalf("len(EmptyNodesBefore)=%d, want=%d", got, want)
	}

	if got, want := len(doc.Root.Nodes), 3; got != want {
		t.Fatalf("len(Root.Nodes)=%d, want=%d", got, want)
	}
}

func Test_Parse_Matches_End_Keyword_Case_Insensitively(t *testing.T) {
	t.Parallel()

	doc, err := Parse("Root\n\tChild\n\tEND\nend", true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got, want := *doc.EndKeyword, "end"; got != want {
		t.Fatalf("EndKeyword=%q, want=%q", got, want)
	}

	if diff := cmp.Diff(NewElement("Root", NewElement("Child")), doc.Root); diff != "" {
		t.Fatalf("root mismatch (-want +got):\n%s", diff)
	}
}

func Test_Parse_Uses_Null_End_Keyword_When_Last_Line_Is_Dash(t *testing.T) {
	t.Parallel()

	doc, err := Parse("Root\n\tA 1\n\tInner\n\t-\n-", true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.EndKeyword != nil {
		t.Fatalf("EndKeyword=%q, want nil", *doc.EndKeyword)
	}

	text, err := doc.Serialize(true)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if got, want := text, "Root\n\tA 1\n\tInner\n\t-\n-"; got != want {
		t.Fatalf("Serialize=%q, want=%q", got, want)
	}
}

func Test_Parse_Returns_ParseError_When_Document_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "two values on end line", text: "Root\nEnd End"},
		{name: "element not closed", text: "Root\n\tChild\nEnd"},
		{name: "root with values", text: "Root 1\nEnd"},
		{name: "second root", text: "Root\nEnd\nOther\nEnd"},
		{name: "null element name", text: "Root\n\t-\n\tEnd\nEnd"},
		{name: "bad wsv", text: "Root\n\tA \"x\nEnd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.text, true)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("err=%v, want=%v", err, ErrParse)
			}
		})
	}
}

func Test_Document_Serialize_Round_Trips_Through_Parse(t *testing.T) {
	t.Parallel()

	doc, err := Parse(configText, true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	text, err := doc.Serialize(true)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if got, want := text, configText; got != want {
		t.Fatalf("Serialize mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func Test_SerializeNode_Uses_Indentation_And_End_Keyword(t *testing.T) {
	t.Parallel()

	node := NewElement("Outer",
		NewAttribute("Empty"),
		&Attribute{Name: "NoValues"},
		NewElement("Inner", NewStringAttribute("Key", "a b")),
		NewComment("dropped"),
	)

	lines, err := SerializeNode(node, 1, strPtr("  "), strPtr("Ende"), false)
	if err != nil {
		t.Fatalf("SerializeNode: %v", err)
	}

	want := []string{
		"  Outer",
		"    Empty -",
		"    NoValues -",
		"    Inner",
		`      Key "a b"`,
		"    Ende",
		"  Ende",
	}

	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func Test_SerializeNode_Returns_Error_When_Element_Name_Is_End_Keyword(t *testing.T) {
	t.Parallel()

	_, err := SerializeNode(NewElement("end"), 1, nil, strPtr("End"), true)
	if err == nil {
		t.Fatal("SerializeNode unexpectedly succeeded")
	}
}

func Test_StripEmptyNodes_Removes_Nested_Empty_Nodes(t *testing.T) {
	t.Parallel()

	nodes := []Node{
		NewComment("top"),
		NewElement("A", NewComment("nested"), NewAttribute("B")),
		NewElement("C", &EmptyNode{Whitespace: "  "}),
	}

	got := StripEmptyNodes(nodes)
	want := []Node{
		NewElement("A", NewAttribute("B")),
		&Element{Name: "C"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("StripEmptyNodes mismatch (-want +got):\n%s", diff)
	}
}

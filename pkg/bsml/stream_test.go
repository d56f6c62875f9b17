package bsml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"
)

func sampleNodes() []sml.Node {
	return []sml.Node{
		sml.NewStringAttribute("Greeting", "Hello", "World"),
		sml.NewAttribute("Nothing"),
		sml.NewElement("Group",
			sml.NewStringAttribute("Key", "契約"),
			sml.NewElement("Empty"),
			sml.NewAttribute("Mixed", wsv.String(""), wsv.Null(), wsv.String(strings.Repeat("v", 90))),
		),
		sml.NewStringAttribute("Last", "x"),
	}
}

func writeBinary(t *testing.T, nodes []sml.Node) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.bsml")

	w, err := CreateWriter(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateOrOverwrite, smlio.Options{})
	require.NoError(t, err)
	require.NoError(t, w.WriteNodes(nodes))
	require.NoError(t, w.Close())

	return path
}

func Test_Reader_Returns_Same_Nodes_For_Every_Chunk_Size(t *testing.T) {
	t.Parallel()

	want := sampleNodes()
	path := writeBinary(t, want)

	info, err := os.Stat(path)
	require.NoError(t, err)

	for _, chunk := range []int{smlio.MinChunkSize, 64, smlio.DefaultChunkSize, int(info.Size()) + 1} {
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			t.Parallel()

			r, err := OpenReader(path, smlio.Options{ChunkSize: chunk})
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, "Root", r.Root().Name)

			got, err := r.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// End of stream is sticky.
			node, err := r.ReadNode()
			require.NoError(t, err)
			assert.Nil(t, node)
		})
	}
}

func Test_Reader_Grows_Buffer_Only_For_Oversized_Strings(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, []sml.Node{
		sml.NewStringAttribute("Short", "a"),
		sml.NewStringAttribute("Long", strings.Repeat("z", 1000)),
	})

	r, err := OpenReader(path, smlio.Options{ChunkSize: smlio.MinChunkSize})
	require.NoError(t, err)
	defer r.Close()

	node, err := r.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, sml.NewStringAttribute("Short", "a"), node)
	assert.Zero(t, r.src.grown)

	node, err = r.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, sml.NewStringAttribute("Long", strings.Repeat("z", 1000)), node)
	assert.Equal(t, 1, r.src.grown)
}

func Test_Reader_Matches_Load(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, sampleNodes())

	doc, err := Load(path, smlio.Options{})
	require.NoError(t, err)

	r, err := OpenReader(path, smlio.Options{ChunkSize: 48})
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, doc.Root.Nodes, got)
}

func Test_Reader_Returns_ErrTruncated_When_File_Ends_Inside_Node(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, sampleNodes())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))

	r, err := OpenReader(path, smlio.Options{ChunkSize: 32})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadAll()
	require.ErrorIs(t, err, ErrTruncated)

	var sErr *smlio.Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, path, sErr.Path)
	assert.Positive(t, sErr.Offset)
}

func Test_Reader_Returns_ErrTruncated_Without_Growing_When_String_Length_Exceeds_File(t *testing.T) {
	t.Parallel()

	data := AppendElementStart(Preamble(), "Root")

	data, err := AppendVarInt(data, uint64(1<<30)<<1|1)
	require.NoError(t, err)

	data = append(data, "junk"...)

	path := filepath.Join(t.TempDir(), "huge.bsml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := OpenReader(path, smlio.Options{ChunkSize: smlio.MinChunkSize})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadNode()
	require.ErrorIs(t, err, ErrTruncated)
	assert.Zero(t, r.src.grown)
	assert.Len(t, r.src.buf, smlio.MinChunkSize)
}

func Test_OpenReader_Returns_Errors_For_Bad_Files(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "text file", data: []byte("\xEF\xBB\xBFRoot\nEnd"), want: ErrUnsupportedVersion},
		{name: "zero length", data: nil, want: ErrUnsupportedVersion},
		{name: "preamble only", data: []byte("BS1"), want: ErrTruncated},
		{name: "root is attribute", data: []byte{'B', 'S', '1', 1, 0}, want: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "bad.bsml")
			require.NoError(t, os.WriteFile(path, tt.data, 0o644))

			_, err := OpenReader(path, smlio.Options{})
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := OpenReader(filepath.Join(t.TempDir(), "x.bsml"), smlio.Options{ChunkSize: 16})
	require.ErrorIs(t, err, smlio.ErrChunkSizeTooSmall)
}

func Test_Writer_Append_With_No_Nodes_Leaves_File_Unchanged(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, sampleNodes())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	w, err := CreateWriter(sml.NewDocument(sml.NewElement("Other")), path, smlio.CreateOrAppend, smlio.Options{})
	require.NoError(t, err)
	assert.True(t, w.Existing())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.ErrorIs(t, w.WriteNode(sml.NewAttribute("Late")), smlio.ErrClosed)
}

func Test_AppendNodes_Builds_Same_Tree_As_Text_Format(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	binPath := filepath.Join(dir, "doc.bsml")
	textPath := filepath.Join(dir, "doc.sml")
	template := sml.NewDocument(sml.NewElement("Root"))

	require.NoError(t, AppendNodes(nil, template, binPath, smlio.Options{}))
	_, err := os.Stat(binPath)
	require.ErrorIs(t, err, os.ErrNotExist)

	for _, name := range []string{"Attribute1", "Attribute2"} {
		nodes := []sml.Node{sml.NewAttribute(name)}

		require.NoError(t, AppendNodes(nodes, template, binPath, smlio.Options{}))
		require.NoError(t, smlio.AppendNodes(nodes, template, textPath, smlio.Options{}))
	}

	text, err := os.ReadFile(textPath)
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBFRoot\n\tAttribute1 -\n\tAttribute2 -\nEnd", string(text))

	binDoc, err := Load(binPath, smlio.Options{})
	require.NoError(t, err)

	textDoc, _, err := smlio.Load(textPath, smlio.Options{IgnoreWhitespaceAndComments: true})
	require.NoError(t, err)

	assert.Equal(t, textDoc.Root, binDoc.Root)
}

func Test_AppendReader_Sees_Nodes_Written_After_It_Ran_Dry(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, []sml.Node{sml.NewStringAttribute("First", "1")})

	w, err := CreateWriter(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateOrAppend, smlio.Options{})
	require.NoError(t, err)
	defer w.Close()

	r, err := AppendReader(w, smlio.Options{ChunkSize: 32})
	require.NoError(t, err)
	assert.Equal(t, "Root", r.Root().Name)

	node, err := r.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, sml.NewStringAttribute("First", "1"), node)

	node, err = r.ReadNode()
	require.NoError(t, err)
	assert.Nil(t, node)

	second := sml.NewElement("Second", sml.NewStringAttribute("Value", strings.Repeat("s", 64)))
	require.NoError(t, w.WriteNode(second))

	node, err = r.ReadNode()
	require.NoError(t, err)
	assert.Equal(t, second, node)

	node, err = r.ReadNode()
	require.NoError(t, err)
	assert.Nil(t, node)
}

func Test_AppendReader_Returns_ErrNotAppendMode_For_New_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "new.bsml")

	w, err := CreateWriter(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateOrAppend, smlio.Options{})
	require.NoError(t, err)
	defer w.Close()

	_, err = AppendReader(w, smlio.Options{})
	require.ErrorIs(t, err, smlio.ErrNotAppendMode)
}

func Test_CreateWriter_Returns_ErrUnsupportedVersion_When_Appending_To_Empty_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.bsml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := CreateWriter(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateOrAppend, smlio.Options{})
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func Test_AppendNodes_Writes_Same_Bytes_As_EncodeDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "appended.bsml")
	template := sml.NewDocument(sml.NewElement("Root"))

	require.NoError(t, AppendNodes(sampleNodes()[:2], template, path, smlio.Options{}))
	require.NoError(t, AppendNodes(sampleNodes()[2:], template, path, smlio.Options{}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)

	want := EncodeDocument(sml.NewDocument(sml.NewElement("Root", sampleNodes()...)))
	assert.Equal(t, want, got)
}

func Test_CreateWriter_CreateNew_Returns_ErrFileExists(t *testing.T) {
	t.Parallel()

	path := writeBinary(t, nil)

	_, err := CreateWriter(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateNew, smlio.Options{})
	require.ErrorIs(t, err, smlio.ErrFileExists)
}

func Test_Save_Drops_Empty_Nodes(t *testing.T) {
	t.Parallel()

	doc, err := sml.Parse("Root\n  # note\n  A 1\n\n  B\n  End\nEnd", true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.bsml")
	require.NoError(t, Save(doc, path, smlio.Options{}))

	loaded, err := Load(path, smlio.Options{})
	require.NoError(t, err)
	assert.Equal(t, sml.StripEmptyNodes(doc.Root.Nodes), loaded.Root.Nodes)
}

func Test_Async_Binary_Writer_And_Reader(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "async.bsml")
	want := sampleNodes()

	aw, err := CreateWriterAsync(sml.NewDocument(sml.NewElement("Root")), path, smlio.CreateNew, smlio.Options{}).Wait(ctx)
	require.NoError(t, err)

	for _, node := range want {
		aw.WriteNode(node)
	}

	_, err = aw.Close().Wait(ctx)
	require.NoError(t, err)

	ar, err := OpenReaderAsync(path, smlio.Options{}).Wait(ctx)
	require.NoError(t, err)

	got, err := ar.ReadAll().Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ar.Close().Wait(ctx)
	require.NoError(t, err)

	_, err = AppendNodesAsync([]sml.Node{sml.NewAttribute("More")}, sml.NewDocument(sml.NewElement("Root")), path, smlio.Options{}).Wait(ctx)
	require.NoError(t, err)

	doc, err := LoadAsync(path, smlio.Options{}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, append(want, sml.NewAttribute("More")), doc.Root.Nodes)

	copyPath := filepath.Join(t.TempDir(), "copy.bsml")
	_, err = SaveAsync(doc, copyPath, smlio.Options{}).Wait(ctx)
	require.NoError(t, err)

	copied, err := Load(copyPath, smlio.Options{})
	require.NoError(t, err)
	assert.Equal(t, doc, copied)
}

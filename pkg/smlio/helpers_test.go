package smlio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func strPtr(s string) *string { return &s }

// writeSML writes text with a UTF-8 byte-order mark to a new file in a
// temp dir and returns its path.
func writeSML(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.sml")
	if err := os.WriteFile(path, append(bytes.Clone(bom), text...), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	return path
}

// readSML returns the content of path without its byte-order mark.
func readSML(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	if !bytes.HasPrefix(data, bom) {
		t.Fatalf("file %s has no UTF-8 byte-order mark: %q", path, data)
	}

	return string(data[len(bom):])
}

// Package fs provides the filesystem abstraction used by the smlio packages.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the stream readers and
//     writers need
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//
// Stream readers and writers address files by absolute position
// ([io.ReaderAt], [io.WriterAt]) instead of a shared seek offset, so a reader
// and a writer can share one descriptor.
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.OpenFile("doc.sml", os.O_RDONLY, 0)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	buf := make([]byte, 4096)
//	n, err := f.ReadAt(buf, 0)
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File].
//
// Note: [File] includes [io.WriterAt] even for read-only handles. Like
// [os.File], implementations should return an error from WriteAt when the
// file wasn't opened for writing.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	// Used to query the current size.
	Stat() (os.FileInfo, error)

	// Truncate changes the size of the file. See [os.File.Truncate].
	Truncate(size int64) error

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines filesystem operations for reading, writing, and managing files.
//
// Implementations in this package include:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects random failures
//
// Paths use OS semantics (like the os package and path/filepath).
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	//
	// Common flags: [os.O_RDONLY], [os.O_RDWR], [os.O_CREATE], [os.O_EXCL],
	// [os.O_TRUNC].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	// For large files, prefer [FS.OpenFile] with positioned reads.
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data using a temp file + rename, so
	// readers never observe a partially written file.
	WriteFileAtomic(path string, data io.Reader) error

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)

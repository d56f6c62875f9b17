package smlio

import (
	"fmt"

	"github.com/go-kit/log"

	"github.com/calvinalkan/smlio/pkg/fs"
)

const (
	// DefaultChunkSize is the read size used when [Options.ChunkSize] is 0.
	DefaultChunkSize = 4096

	// MinChunkSize is the smallest accepted [Options.ChunkSize]. It leaves
	// room for a length-prefixed tag plus a short string in one read.
	MinChunkSize = 32
)

// Options configures readers, writers and the whole-file helpers.
//
// The zero value is ready to use.
type Options struct {
	// FS is the filesystem to use. Nil means [fs.NewReal].
	FS fs.FS

	// ChunkSize is the number of bytes read from disk at a time.
	// 0 means [DefaultChunkSize]; values below [MinChunkSize] are rejected.
	ChunkSize int

	// IgnoreWhitespaceAndComments drops blank and comment-only lines.
	// By default they are kept as empty nodes.
	IgnoreWhitespaceAndComments bool

	// Logger receives debug events. Nil means no logging.
	Logger log.Logger
}

// WithDefaults returns o with zero fields replaced by their defaults.
// Returns [ErrChunkSizeTooSmall] for a chunk size below [MinChunkSize].
func (o Options) WithDefaults() (Options, error) {
	if o.FS == nil {
		o.FS = fs.NewReal()
	}

	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}

	if o.ChunkSize < MinChunkSize {
		return o, fmt.Errorf("%w: %d < %d", ErrChunkSizeTooSmall, o.ChunkSize, MinChunkSize)
	}

	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}

	return o, nil
}

// Preserve reports whether blank and comment lines are kept.
func (o Options) Preserve() bool {
	return !o.IgnoreWhitespaceAndComments
}

// WriterMode selects how a writer treats an existing file.
type WriterMode uint8

const (
	// CreateOrOverwrite truncates an existing file. This is the default.
	CreateOrOverwrite WriterMode = iota

	// CreateNew fails with [ErrFileExists] when the file exists.
	CreateNew

	// CreateOrAppend keeps an existing file and appends nodes to its root
	// element.
	CreateOrAppend
)

func (m WriterMode) String() string {
	switch m {
	case CreateOrOverwrite:
		return "create-or-overwrite"
	case CreateNew:
		return "create-new"
	case CreateOrAppend:
		return "create-or-append"
	default:
		return fmt.Sprintf("WriterMode(%d)", uint8(m))
	}
}

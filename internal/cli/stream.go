package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/bsml"
	"github.com/calvinalkan/smlio/pkg/fs"
	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"
)

const (
	binaryExt = ".bsml"
	textExt   = ".sml"
)

var errUnknownFormat = errors.New("unknown format")

// env is what every command needs. It is filled in after global flags and
// config are resolved, so commands can be built before that.
type env struct {
	cfg    config.Config
	logger log.Logger
	fs     fs.FS
}

func (e *env) options(cfg config.Config) smlio.Options {
	opts := cfg.Options(e.logger)
	opts.FS = e.fs

	return opts
}

// parseFormat parses a --format or --to value.
func parseFormat(s string) (config.Format, error) {
	switch f := config.Format(strings.ToLower(s)); f {
	case config.FormatAuto, config.FormatText, config.FormatBinary:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want auto, text or binary)", errUnknownFormat, s)
	}
}

// detectFormat resolves [config.FormatAuto] for path: a .bsml extension or
// a binary preamble means binary, anything else (including a missing file)
// is text.
func detectFormat(fsys fs.FS, path string, want config.Format) (config.Format, error) {
	if want != config.FormatAuto {
		return want, nil
	}

	if strings.EqualFold(filepath.Ext(path), binaryExt) {
		return config.FormatBinary, nil
	}

	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if errors.Is(err, os.ErrNotExist) {
		return config.FormatText, nil
	}

	if err != nil {
		return "", err
	}

	defer func() { _ = f.Close() }()

	start := make([]byte, bsml.PreambleSize)

	n, err := f.ReadAt(start, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	if bsml.CheckPreamble(start[:n]) == nil {
		return config.FormatBinary, nil
	}

	return config.FormatText, nil
}

// docReader streams a document of either format.
type docReader struct {
	smlio.NodeReader

	format     config.Format
	encoding   smlio.Encoding
	root       string
	endKeyword *string
}

// openDocReader opens path for streaming. A text file in an encoding the
// stream reader does not handle is loaded whole instead.
func openDocReader(e *env, cfg config.Config, path string) (*docReader, error) {
	format, err := detectFormat(e.fs, path, cfg.Format)
	if err != nil {
		return nil, err
	}

	opts := e.options(cfg)

	if format == config.FormatBinary {
		r, err := bsml.OpenReader(path, opts)
		if err != nil {
			return nil, err
		}

		return &docReader{
			NodeReader: r,
			format:     format,
			encoding:   smlio.UTF8,
			root:       r.Root().Name,
			endKeyword: cfg.EndKeywordPtr(),
		}, nil
	}

	r, err := smlio.OpenReader(path, opts)
	if err == nil {
		return &docReader{
			NodeReader: r,
			format:     format,
			encoding:   r.Encoding(),
			root:       r.Root().Name,
			endKeyword: r.EndKeyword(),
		}, nil
	}

	if !errors.Is(err, smlio.ErrUnsupportedEncoding) {
		return nil, err
	}

	level.Debug(e.logger).Log("msg", "loading whole document", "path", path, "reason", err)

	doc, enc, err := smlio.Load(path, opts)
	if err != nil {
		return nil, err
	}

	return &docReader{
		NodeReader: &sliceReader{nodes: doc.Root.Nodes},
		format:     format,
		encoding:   enc,
		root:       doc.Root.Name,
		endKeyword: doc.EndKeyword,
	}, nil
}

// sliceReader serves nodes already in memory.
type sliceReader struct {
	nodes []sml.Node
}

func (s *sliceReader) ReadNode() (sml.Node, error) {
	if len(s.nodes) == 0 {
		return nil, nil
	}

	node := s.nodes[0]
	s.nodes = s.nodes[1:]

	return node, nil
}

func (s *sliceReader) Close() error { return nil }

// nodeLines serializes node at level for display.
func nodeLines(cfg config.Config, node sml.Node, lvl int, endKeyword *string) ([]string, error) {
	indentation := cfg.Indentation

	return sml.SerializeNode(node, lvl, &indentation, endKeyword, cfg.PreserveWhitespace)
}

func valueLine(s *string) string {
	return wsv.SerializeValue(wsv.FromPtr(s))
}

// convertedPath returns path with its extension replaced for format.
func convertedPath(path string, format config.Format) string {
	ext := textExt
	if format == config.FormatBinary {
		ext = binaryExt
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

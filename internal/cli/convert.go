package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/bsml"
	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"

	flag "github.com/spf13/pflag"
)

const defaultJobs = 4

var (
	errInvalidJobs = errors.New("--jobs must be at least 1")
	errSameFormat  = errors.New("file is already in the target format")
)

// ConvertCmd returns the convert command.
func ConvertCmd(e *env) *Command {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.String("to", "", "Target format: text|binary [default: the other one]")
	fs.IntP("jobs", "j", defaultJobs, "Files converted at the same time")
	fs.BoolP("force", "f", false, "Overwrite existing output files")

	return &Command{
		Flags: fs,
		Usage: "convert <file>... [flags]",
		Short: "Convert files between text and binary",
		Long: `Convert each file to the other format, streaming one node at a time.

The output is written next to the input with the extension replaced by
.sml or .bsml. Existing outputs are not replaced unless --force is given.
Blank lines and comments are dropped when writing binary; this is reported
as a warning and the exit code is 1. Text output uses
the configured encoding; encodings other than utf-8 are written whole.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execConvert(ctx, io, e, fs, args)
		},
	}
}

type convertResult struct {
	src   string
	dst   string
	nodes int
	// dropped counts blank and comment lines the target cannot hold.
	dropped int
}

func execConvert(ctx context.Context, io *IO, e *env, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	var to config.Format

	if fs.Changed("to") {
		value, _ := fs.GetString("to")

		format, err := parseFormat(value)
		if err != nil {
			return err
		}

		if format != config.FormatAuto {
			to = format
		}
	}

	jobs, _ := fs.GetInt("jobs")
	if jobs < 1 {
		return errInvalidJobs
	}

	force, _ := fs.GetBool("force")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	results := make([]convertResult, len(args))

	for i, arg := range args {
		g.Go(func() error {
			res, err := convertFile(gctx, e, e.cfg, e.cfg.Resolve(arg), to, force)
			if err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}

			results[i] = res

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		io.Printf("%s -> %s (%d nodes)\n", res.src, res.dst, res.nodes)

		if res.dropped > 0 {
			io.Warn(fmt.Sprintf("%s: %d blank or comment lines dropped", res.src, res.dropped),
				"binary files only hold elements and attributes")
		}
	}

	return nil
}

func convertFile(ctx context.Context, e *env, cfg config.Config, src string, to config.Format, force bool) (convertResult, error) {
	r, err := openDocReader(e, cfg, src)
	if err != nil {
		return convertResult{}, err
	}

	defer func() { _ = r.Close() }()

	if to == "" {
		to = config.FormatBinary
		if r.format == config.FormatBinary {
			to = config.FormatText
		}
	}

	if to == r.format {
		return convertResult{}, errSameFormat
	}

	dst := convertedPath(src, to)

	mode := smlio.CreateNew
	if force {
		mode = smlio.CreateOrOverwrite
	}

	indentation := cfg.Indentation
	template := &sml.Document{
		Root:               sml.NewElement(r.root),
		EndKeyword:         r.endKeyword,
		DefaultIndentation: &indentation,
	}

	w, err := createDocWriter(e, cfg, template, dst, to, mode)
	if err != nil {
		return convertResult{}, err
	}

	n, empty, err := copyNodes(ctx, r, w)
	if err != nil {
		err = errors.Join(err, w.Close())

		if rmErr := e.fs.Remove(dst); rmErr != nil {
			err = errors.Join(err, rmErr)
		}

		return convertResult{}, err
	}

	if err := w.Close(); err != nil {
		return convertResult{}, err
	}

	level.Info(e.logger).Log("msg", "converted", "src", src, "dst", dst, "to", to, "nodes", n)

	res := convertResult{src: src, dst: dst, nodes: n}
	if to == config.FormatBinary {
		res.dropped = empty
	}

	return res, nil
}

// copyNodes streams every node of r into w and reports how many were copied
// and how many of those were blank or comment lines.
func copyNodes(ctx context.Context, r smlio.NodeReader, w smlio.NodeWriter) (n, empty int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return n, empty, err
		}

		node, err := r.ReadNode()
		if err != nil {
			return n, empty, err
		}

		if node == nil {
			return n, empty, nil
		}

		if err := w.WriteNode(node); err != nil {
			return n, empty, err
		}

		if _, ok := node.(*sml.EmptyNode); ok {
			empty++
		}

		n++
	}
}

// createDocWriter opens a writer for format. Text in an encoding other than
// UTF-8 is collected and saved whole on close.
func createDocWriter(e *env, cfg config.Config, template *sml.Document, path string, format config.Format, mode smlio.WriterMode) (smlio.NodeWriter, error) {
	opts := e.options(cfg)

	if format == config.FormatBinary {
		return bsml.CreateWriter(template, path, mode, opts)
	}

	enc := cfg.TextEncoding()
	if enc == smlio.UTF8 {
		return smlio.CreateWriter(template, path, mode, opts)
	}

	if mode == smlio.CreateNew {
		exists, err := e.fs.Exists(path)
		if err != nil {
			return nil, err
		}

		if exists {
			return nil, smlio.WithContext(smlio.ErrFileExists, path, 0, 0)
		}
	}

	doc := &sml.Document{
		Root:               sml.NewElement(template.Root.Name),
		EndKeyword:         template.EndKeyword,
		DefaultIndentation: template.DefaultIndentation,
	}

	return &saveWriter{doc: doc, path: path, enc: enc, opts: opts}, nil
}

// saveWriter collects nodes and saves the document on close.
type saveWriter struct {
	doc    *sml.Document
	path   string
	enc    smlio.Encoding
	opts   smlio.Options
	closed bool
}

func (s *saveWriter) WriteNode(node sml.Node) error {
	if s.closed {
		return smlio.ErrClosed
	}

	s.doc.Root.Add(node)

	return nil
}

func (s *saveWriter) WriteNodes(nodes []sml.Node) error {
	for _, node := range nodes {
		if err := s.WriteNode(node); err != nil {
			return err
		}
	}

	return nil
}

func (s *saveWriter) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return smlio.Save(s.doc, s.path, s.enc, s.opts)
}

package cli

import (
	"context"
	"errors"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/wsv"

	flag "github.com/spf13/pflag"
)

var errFileRequired = errors.New("file is required")

// CatCmd returns the cat command.
func CatCmd(e *env) *Command {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	fs.String("format", "", "Input format: auto|text|binary [default: from config]")

	return &Command{
		Flags: fs,
		Usage: "cat <file>",
		Short: "Print a text or binary file as SML text",
		Long: `Stream the nodes of a text or binary document to stdout as SML text.

The file is read one node at a time. Binary files have no end keyword; the
configured end_keyword is printed instead.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			cfg, err := withFormatFlag(e.cfg, fs, "format")
			if err != nil {
				return err
			}

			return execCat(ctx, io, e, cfg, args)
		},
	}
}

func execCat(ctx context.Context, io *IO, e *env, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	r, err := openDocReader(e, cfg, cfg.Resolve(args[0]))
	if err != nil {
		return err
	}

	defer func() { _ = r.Close() }()

	io.Println(wsv.SerializeValue(wsv.String(r.root)))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		node, err := r.ReadNode()
		if err != nil {
			return err
		}

		if node == nil {
			break
		}

		lines, err := nodeLines(cfg, node, 1, r.endKeyword)
		if err != nil {
			return err
		}

		for _, line := range lines {
			io.Println(line)
		}
	}

	io.Println(valueLine(r.endKeyword))

	return nil
}

// withFormatFlag applies a format flag to cfg when it was set.
func withFormatFlag(cfg config.Config, fs *flag.FlagSet, name string) (config.Config, error) {
	if !fs.Changed(name) {
		return cfg, nil
	}

	value, _ := fs.GetString(name)

	format, err := parseFormat(value)
	if err != nil {
		return config.Config{}, err
	}

	return cfg.Apply(config.Overrides{Format: &format})
}

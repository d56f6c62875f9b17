package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/bsml"
	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"

	flag "github.com/spf13/pflag"
)

var (
	errNameRequired    = errors.New("node name is required")
	errElementValues   = errors.New("an element takes no values")
	errEmptyFlagValue  = errors.New("empty value not allowed")
	errAppendNeedsUTF8 = errors.New("appending needs a UTF-8 text file")
)

// AppendCmd returns the append command.
func AppendCmd(e *env) *Command {
	fs := flag.NewFlagSet("append", flag.ContinueOnError)
	fs.Bool("element", false, "Append an empty element instead of an attribute")
	fs.String("root", "Root", "Root element name when the file is created")
	fs.String("end", "", "End keyword when the file is created [default: from config]")
	fs.String("format", "", "File format: auto|text|binary [default: from config]")

	return &Command{
		Flags: fs,
		Usage: "append <file> <name> [value...]",
		Short: "Append an attribute or element to a file",
		Long: `Append one node to the root element of a text or binary document.

Values are WSV values: "-" is null. A missing file is created with --root
as the root element name and, for text files, --end as the end keyword.
An existing text file keeps its own end keyword.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			return execAppend(e, fs, args)
		},
	}
}

func execAppend(e *env, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	if len(args) < 2 {
		return errNameRequired
	}

	cfg, err := withFormatFlag(e.cfg, fs, "format")
	if err != nil {
		return err
	}

	for _, name := range []string{"root", "end"} {
		v, _ := fs.GetString(name)
		if fs.Changed(name) && v == "" {
			return fmt.Errorf("%w: --%s", errEmptyFlagValue, name)
		}
	}

	if fs.Changed("end") {
		end, _ := fs.GetString("end")

		cfg, err = cfg.Apply(config.Overrides{EndKeyword: &end})
		if err != nil {
			return err
		}
	}

	node, err := nodeFromArgs(fs, args[1], args[2:])
	if err != nil {
		return err
	}

	path := cfg.Resolve(args[0])

	format, err := detectFormat(e.fs, path, cfg.Format)
	if err != nil {
		return err
	}

	root, _ := fs.GetString("root")
	template := cfg.Template(root)
	opts := e.options(cfg)

	if format == config.FormatBinary {
		return bsml.AppendNodes([]sml.Node{node}, template, path, opts)
	}

	err = smlio.AppendNodes([]sml.Node{node}, template, path, opts)
	if errors.Is(err, smlio.ErrUnsupportedEncoding) {
		return fmt.Errorf("%w: %w", errAppendNeedsUTF8, err)
	}

	return err
}

func nodeFromArgs(fs *flag.FlagSet, name string, values []string) (sml.Node, error) {
	if name == "" {
		return nil, errNameRequired
	}

	if element, _ := fs.GetBool("element"); element {
		if len(values) > 0 {
			return nil, errElementValues
		}

		return sml.NewElement(name), nil
	}

	parsed := make([]wsv.Value, 0, len(values))

	for _, v := range values {
		if v == "-" {
			parsed = append(parsed, wsv.Null())

			continue
		}

		parsed = append(parsed, wsv.String(v))
	}

	return sml.NewAttribute(name, parsed...), nil
}

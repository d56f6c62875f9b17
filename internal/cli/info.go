package cli

import (
	"context"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/sml"

	flag "github.com/spf13/pflag"
)

// InfoCmd returns the info command.
func InfoCmd(e *env) *Command {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.String("format", "", "Input format: auto|text|binary [default: from config]")

	return &Command{
		Flags: fs,
		Usage: "info <file>",
		Short: "Show format, root and node counts of a file",
		Long: `Stream a document and print what it holds as key=value lines:
format, encoding, root name, end keyword, top-level node counts by kind
and file size.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			cfg, err := withFormatFlag(e.cfg, fs, "format")
			if err != nil {
				return err
			}

			return execInfo(ctx, io, e, cfg, args)
		},
	}
}

type nodeCounts struct {
	elements   int
	attributes int
	empty      int
	nested     int
}

func (c *nodeCounts) add(node sml.Node, depth int) {
	if depth > 0 {
		c.nested++
	}

	switch n := node.(type) {
	case *sml.Element:
		if depth == 0 {
			c.elements++
		}

		for _, child := range n.Nodes {
			c.add(child, depth+1)
		}
	case *sml.Attribute:
		if depth == 0 {
			c.attributes++
		}
	case *sml.EmptyNode:
		if depth == 0 {
			c.empty++
		}
	}
}

func execInfo(ctx context.Context, io *IO, e *env, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	path := cfg.Resolve(args[0])

	r, err := openDocReader(e, cfg, path)
	if err != nil {
		return err
	}

	defer func() { _ = r.Close() }()

	var counts nodeCounts

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

		counts.add(node, 0)
	}

	info, err := e.fs.Stat(path)
	if err != nil {
		return err
	}

	io.Println("path=" + path)
	io.Println("format=" + string(r.format))

	if r.format == config.FormatText {
		io.Println("encoding=" + r.encoding.String())
		io.Println("end_keyword=" + valueLine(r.endKeyword))
	}

	io.Println("root=" + r.root)
	io.Println("elements=" + strconv.Itoa(counts.elements))
	io.Println("attributes=" + strconv.Itoa(counts.attributes))

	if counts.empty > 0 {
		io.Println("empty_lines=" + strconv.Itoa(counts.empty))
	}

	io.Println("nested_nodes=" + strconv.Itoa(counts.nested))
	io.Println("size=" + humanize.Bytes(uint64(info.Size())))

	return nil
}

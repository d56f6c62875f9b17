package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/bsml"
	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"

	flag "github.com/spf13/pflag"
)

const shellPrompt = "smlio> "

var errFileNotFound = errors.New("file not found")

const shellHelp = `Commands:
  next [n]                read the next n nodes (default 1)
  all                     read all remaining nodes
  append <name> [value…]  append an attribute (WSV syntax, - is null)
  element <name>          append an empty element
  info                    show root, end keyword and counters
  help                    show this help
  quit                    write the end line and exit`

// ShellCmd returns the shell command.
func ShellCmd(e *env) *Command {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	fs.String("format", "", "File format: auto|text|binary [default: from config]")

	return &Command{
		Flags: fs,
		Usage: "shell <file>",
		Short: "Read and append nodes interactively",
		Long: `Open an existing document for appending and read it node by node.

Nodes appended in the shell become readable right away. The end line of a
text file is removed while the shell runs and written back on exit.

` + shellHelp,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			cfg, err := withFormatFlag(e.cfg, fs, "format")
			if err != nil {
				return err
			}

			return execShell(ctx, io, e, cfg, args)
		},
	}
}

// prompter reads command lines. It is implemented by [*liner.State].
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// scanPrompter reads lines from a non-terminal input without echoing a
// prompt.
type scanPrompter struct {
	scanner *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.scanner.Scan() {
		return p.scanner.Text(), nil
	}

	if err := p.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (p *scanPrompter) AppendHistory(string) {}

func (p *scanPrompter) Close() error { return nil }

func newPrompter(in io.Reader) prompter {
	if f, ok := in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)

		return state
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &scanPrompter{scanner: bufio.NewScanner(in)}
}

type shellSession struct {
	io         *IO
	cfg        config.Config
	format     config.Format
	reader     smlio.NodeReader
	writer     smlio.NodeWriter
	root       string
	endKeyword *string
	read       int
	appended   int
}

func execShell(ctx context.Context, io *IO, e *env, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	s, err := openShellSession(io, e, cfg, cfg.Resolve(args[0]))
	if err != nil {
		return err
	}

	p := newPrompter(io.In())

	err = s.loop(ctx, p)

	return errors.Join(err, p.Close(), s.writer.Close())
}

func openShellSession(io *IO, e *env, cfg config.Config, path string) (*shellSession, error) {
	exists, err := e.fs.Exists(path)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", errFileNotFound, path)
	}

	format, err := detectFormat(e.fs, path, cfg.Format)
	if err != nil {
		return nil, err
	}

	opts := e.options(cfg)
	s := &shellSession{io: io, cfg: cfg, format: format}

	if format == config.FormatBinary {
		w, err := bsml.CreateWriter(cfg.Template("Root"), path, smlio.CreateOrAppend, opts)
		if err != nil {
			return nil, err
		}

		r, err := bsml.AppendReader(w, opts)
		if err != nil {
			return nil, errors.Join(err, w.Close())
		}

		s.reader, s.writer, s.root, s.endKeyword = r, w, r.Root().Name, cfg.EndKeywordPtr()

		return s, nil
	}

	w, err := smlio.CreateWriter(cfg.Template("Root"), path, smlio.CreateOrAppend, opts)
	if err != nil {
		return nil, err
	}

	r, err := smlio.AppendReader(w, opts)
	if err != nil {
		return nil, errors.Join(err, w.Close())
	}

	s.reader, s.writer, s.root, s.endKeyword = r, w, r.Root().Name, w.EndKeyword()

	return s, nil
}

func (s *shellSession) loop(ctx context.Context, p prompter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := p.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}

		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		quit, err := s.run(line)
		if err != nil {
			// Parse and usage errors are reported and the shell goes on.
			// Anything from the file ends the session.
			if !isShellUsageError(err) {
				return err
			}

			s.io.Println("error:", err)
		}

		if quit {
			return nil
		}
	}
}

var (
	errShellUsage   = errors.New("usage")
	errShellUnknown = errors.New("unknown command")
)

func isShellUsageError(err error) bool {
	return errors.Is(err, errShellUsage) || errors.Is(err, errShellUnknown) || errors.Is(err, wsv.ErrParse)
}

func (s *shellSession) run(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		s.io.Println(shellHelp)
	case "next":
		n := 1

		if rest != "" {
			parsed, err := strconv.Atoi(rest)
			if err != nil || parsed < 1 {
				return false, fmt.Errorf("%w: next [n], n >= 1", errShellUsage)
			}

			n = parsed
		}

		return false, s.next(n)
	case "all":
		return false, s.next(-1)
	case "append":
		return false, s.appendAttribute(rest)
	case "element":
		if rest == "" {
			return false, fmt.Errorf("%w: element <name>", errShellUsage)
		}

		return false, s.write(sml.NewElement(rest))
	case "info":
		s.io.Println("format=" + string(s.format))
		s.io.Println("root=" + s.root)
		s.io.Println("end_keyword=" + valueLine(s.endKeyword))
		s.io.Println("read=" + strconv.Itoa(s.read))
		s.io.Println("appended=" + strconv.Itoa(s.appended))
	default:
		return false, fmt.Errorf("%w: %s (try help)", errShellUnknown, cmd)
	}

	return false, nil
}

// next prints up to n nodes, all remaining when n is negative.
func (s *shellSession) next(n int) error {
	printed := 0

	for n < 0 || printed < n {
		node, err := s.reader.ReadNode()
		if err != nil {
			return err
		}

		if node == nil {
			break
		}

		lines, err := nodeLines(s.cfg, node, 0, s.endKeyword)
		if err != nil {
			return err
		}

		for _, line := range lines {
			s.io.Println(line)
		}

		printed++
		s.read++
	}

	if printed == 0 {
		s.io.Println("(no more nodes)")
	}

	return nil
}

func (s *shellSession) appendAttribute(rest string) error {
	line, err := wsv.ParseLine(rest)
	if err != nil {
		return err
	}

	if len(line.Values) == 0 || line.Values[0].Null {
		return fmt.Errorf("%w: append <name> [value...]", errShellUsage)
	}

	return s.write(sml.NewAttribute(line.Values[0].Str, line.Values[1:]...))
}

func (s *shellSession) write(node sml.Node) error {
	if err := s.writer.WriteNode(node); err != nil {
		return err
	}

	s.appended++

	return nil
}

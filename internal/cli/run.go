package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/fs"

	flag "github.com/spf13/pflag"
)

var errVerboseAndQuiet = errors.New("--verbose and --quiet cannot be combined")

// Run is the main entry point. Returns exit code.
//
// The first signal on sigCh cancels the running command; commands stop
// between nodes and still close their files.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, environ map[string]string, sigCh <-chan os.Signal) int {
	globalFlags := flag.NewFlagSet("smlio", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.SetOutput(&strings.Builder{})

	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagVerbose := globalFlags.BoolP("verbose", "v", false, "Log debug events to stderr")
	flagQuiet := globalFlags.BoolP("quiet", "q", false, "Only log warnings and errors")
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")

	e := &env{fs: fs.NewReal()}
	commands := allCommands(e)

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	if err := globalFlags.Parse(rest); err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	remaining := globalFlags.Args()

	if *flagHelp || len(remaining) == 0 {
		printUsage(out, globalFlags, commands)

		return 0
	}

	if *flagVerbose && *flagQuiet {
		fprintln(errOut, "error:", errVerboseAndQuiet)

		return 1
	}

	cfg, err := config.Load(config.Input{
		WorkDirOverride: *flagCwd,
		ConfigPath:      *flagConfig,
		Env:             environ,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	e.cfg = cfg
	e.logger = newLogger(errOut, *flagVerbose, *flagQuiet)

	name := remaining[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		fprintln(errOut)
		printUsage(errOut, globalFlags, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case sig := <-sigCh:
			level.Warn(e.logger).Log("msg", "interrupted", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	level.Debug(e.logger).Log("msg", "running command", "command", name, "cwd", cfg.EffectiveCwd)

	return cmd.Run(ctx, NewIO(in, out, errOut), remaining[1:])
}

func allCommands(e *env) []*Command {
	return []*Command{
		CatCmd(e),
		AppendCmd(e),
		ConvertCmd(e),
		InfoCmd(e),
		ShellCmd(e),
		PrintConfigCmd(e),
	}
}

// newLogger returns a logfmt logger on w. Info and above is logged by
// default.
func newLogger(w io.Writer, verbose, quiet bool) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))

	allow := level.AllowInfo()

	switch {
	case verbose:
		allow = level.AllowDebug()
	case quiet:
		allow = level.AllowWarn()
	}

	logger = level.NewFilter(logger, allow)

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globalFlags *flag.FlagSet, commands []*Command) {
	fprintln(w, `smlio - stream SML text and binary documents

Usage: smlio [flags] <command> [args]

Global flags:`)

	var buf strings.Builder
	globalFlags.SetOutput(&buf)
	globalFlags.PrintDefaults()
	globalFlags.SetOutput(&strings.Builder{})
	fprintln(w, strings.TrimRight(buf.String(), "\n"))

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, `Run "smlio <command> --help" for command flags.`)
}

package cli_test

import (
	"bytes"
	"testing"

	"github.com/calvinalkan/smlio/internal/cli"
)

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	// Call Run directly without test helper (which adds --cwd)
	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"smlio"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "smlio - stream SML text and binary documents")
	cli.AssertContains(t, stdout.String(), "--cwd")
	cli.AssertContains(t, stdout.String(), "cat <file>")
	cli.AssertContains(t, stdout.String(), "convert <file>...")
}

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "cat")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--help")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--verbose")
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Verbose_And_Quiet_Together_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-v", "-q", "print-config")

	cli.AssertContains(t, stderr, "cannot be combined")
}

func Test_Command_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("convert", "--help")

	cli.AssertContains(t, stdout, "Usage: smlio convert <file>...")
	cli.AssertContains(t, stdout, "--jobs")
	cli.AssertContains(t, stdout, "--force")
}

func Test_Command_Bad_Flag_Prints_Help_To_Stderr_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("cat", "--nope", "doc.sml")

	cli.AssertContains(t, stderr, "error: unknown flag: --nope")
	cli.AssertContains(t, stderr, "Usage: smlio cat <file>")
}

func Test_Verbose_Logs_Debug_Events_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("append", "doc.sml", "A", "1")

	_, stderr, code := c.Run("-v", "cat", "doc.sml")
	if code != 0 {
		t.Fatalf("exit code=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stderr, "level=debug")
	cli.AssertContains(t, stderr, `msg="running command"`)
	cli.AssertContains(t, stderr, `msg="handle opened"`)

	_, stderr, _ = c.Run("cat", "doc.sml")
	cli.AssertNotContains(t, stderr, "level=debug")
}

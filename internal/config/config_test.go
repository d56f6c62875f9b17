package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/smlio/internal/config"
	"github.com/calvinalkan/smlio/pkg/smlio"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.Input{WorkDirOverride: dir, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := config.Default()

	if cfg.ChunkSize != want.ChunkSize || cfg.EndKeyword != "End" || cfg.Indentation != "\t" ||
		cfg.Format != config.FormatAuto || cfg.Encoding != "utf-8" || !cfg.PreserveWhitespace {
		t.Fatalf("cfg=%+v, want defaults %+v", cfg, want)
	}

	if cfg.ChunkSize < smlio.MinChunkSize {
		t.Fatalf("ChunkSize=%d below minimum", cfg.ChunkSize)
	}

	if cfg.EffectiveCwd != dir {
		t.Fatalf("EffectiveCwd=%q, want=%q", cfg.EffectiveCwd, dir)
	}

	if cfg.Sources != (config.Sources{}) {
		t.Fatalf("Sources=%+v, want none", cfg.Sources)
	}
}

func Test_Load_Applies_Files_And_Flags_In_Precedence_Order(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := t.TempDir()

	writeFile(t, filepath.Join(xdg, "smlio", "config.json"), `{
		// global
		"chunk_size": 64,
		"end_keyword": "Ende",
		"format": "binary",
	}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"end_keyword": "Fin", "indentation": "  "}`)
	writeFile(t, filepath.Join(dir, "explicit.json"), `{"indentation": "    ", "encoding": "utf-16"}`)

	format := config.FormatText

	cfg, err := config.Load(config.Input{
		WorkDirOverride: dir,
		ConfigPath:      "explicit.json",
		Overrides:       config.Overrides{Format: &format},
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := cfg.ChunkSize, 64; got != want {
		t.Errorf("ChunkSize=%d, want=%d", got, want)
	}

	if got, want := cfg.EndKeyword, "Fin"; got != want {
		t.Errorf("EndKeyword=%q, want=%q", got, want)
	}

	if got, want := cfg.Indentation, "    "; got != want {
		t.Errorf("Indentation=%q, want=%q", got, want)
	}

	if got, want := cfg.Encoding, "utf-16"; got != want {
		t.Errorf("Encoding=%q, want=%q", got, want)
	}

	if got, want := cfg.Format, config.FormatText; got != want {
		t.Errorf("Format=%q, want=%q", got, want)
	}

	if got, want := cfg.TextEncoding(), smlio.UTF16; got != want {
		t.Errorf("TextEncoding=%v, want=%v", got, want)
	}

	want := config.Sources{
		Global:   filepath.Join(xdg, "smlio", "config.json"),
		Project:  filepath.Join(dir, config.FileName),
		Explicit: filepath.Join(dir, "explicit.json"),
	}

	if cfg.Sources != want {
		t.Errorf("Sources=%+v, want=%+v", cfg.Sources, want)
	}
}

func Test_Load_Uses_Home_Config_When_Xdg_Is_Unset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	home := t.TempDir()

	writeFile(t, filepath.Join(home, ".config", "smlio", "config.json"), `{"preserve_whitespace": false}`)

	cfg, err := config.Load(config.Input{WorkDirOverride: dir, Env: map[string]string{"HOME": home}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.PreserveWhitespace {
		t.Fatal("PreserveWhitespace=true, want false from home config")
	}

	if !cfg.Options(nil).IgnoreWhitespaceAndComments {
		t.Fatal("Options().IgnoreWhitespaceAndComments=false, want true")
	}
}

func Test_Load_Returns_Error_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "bad jsonc", content: `{invalid json}`, want: config.ErrConfigInvalid},
		{name: "unknown key", content: `{"root_dir": "x"}`, want: config.ErrConfigInvalid},
		{name: "chunk too small", content: `{"chunk_size": 8}`, want: config.ErrInvalidValue},
		{name: "bad format", content: `{"format": "xml"}`, want: config.ErrInvalidValue},
		{name: "bad encoding", content: `{"encoding": "latin-1"}`, want: smlio.ErrUnsupportedEncoding},
		{name: "empty end keyword", content: `{"end_keyword": ""}`, want: config.ErrInvalidValue},
		{name: "non-whitespace indentation", content: `{"indentation": "--"}`, want: config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := config.Load(config.Input{WorkDirOverride: dir})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want=%v", err, tt.want)
			}
		})
	}
}

func Test_Load_Returns_Error_When_Explicit_Config_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(config.Input{WorkDirOverride: t.TempDir(), ConfigPath: "missing.json"})
	if !errors.Is(err, config.ErrConfigFileNotFound) {
		t.Fatalf("err=%v, want=%v", err, config.ErrConfigFileNotFound)
	}
}

func Test_Template_Maps_Null_End_Keyword(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.EndKeyword = "-"
	cfg.Indentation = "  "

	doc := cfg.Template("Root")

	if doc.EndKeyword != nil {
		t.Fatalf("EndKeyword=%q, want nil", *doc.EndKeyword)
	}

	if got, want := *doc.DefaultIndentation, "  "; got != want {
		t.Fatalf("DefaultIndentation=%q, want=%q", got, want)
	}

	if got, want := doc.Root.Name, "Root"; got != want {
		t.Fatalf("Root.Name=%q, want=%q", got, want)
	}
}

// Package config resolves smlio CLI settings from JSONC files and flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/tailscale/hujson"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/smlio/pkg/sml"
	"github.com/calvinalkan/smlio/pkg/smlio"
	"github.com/calvinalkan/smlio/pkg/wsv"
)

// Error variables for configuration.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrInvalidValue       = errors.New("invalid config value")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".smlio.json"

// Format selects the file format a command reads or writes.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

// Config holds all configuration options.
type Config struct {
	ChunkSize          int    `json:"chunk_size"`
	PreserveWhitespace bool   `json:"preserve_whitespace"`
	EndKeyword         string `json:"end_keyword"`
	Indentation        string `json:"indentation"`
	Format             Format `json:"format"`
	Encoding           string `json:"encoding"`

	// EffectiveCwd is the absolute working directory (from -C or os.Getwd).
	EffectiveCwd string `json:"-"`

	// Sources tracks which config files were loaded.
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global   string
	Project  string
	Explicit string
}

// Overrides holds values set by flags. Nil fields leave the config as is.
// Config files are decoded into the same shape, so a key that is present
// overrides even when set to its zero value.
type Overrides struct {
	ChunkSize          *int    `json:"chunk_size"`
	PreserveWhitespace *bool   `json:"preserve_whitespace"`
	EndKeyword         *string `json:"end_keyword"`
	Indentation        *string `json:"indentation"`
	Format             *Format `json:"format"`
	Encoding           *string `json:"encoding"`
}

// Default returns the default configuration. The chunk size is the system
// page size.
func Default() Config {
	return Config{
		ChunkSize:          max(unix.Getpagesize(), smlio.MinChunkSize),
		PreserveWhitespace: true,
		EndKeyword:         sml.DefaultEndKeyword,
		Indentation:        "\t",
		Format:             FormatAuto,
		Encoding:           smlio.UTF8.String(),
	}
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // flag values
	Env             map[string]string // environment variables
}

// Load resolves configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/smlio/config.json or
//     ~/.config/smlio/config.json)
//  3. Project config (.smlio.json in the working directory, if present)
//  4. Explicit config file via ConfigPath
//  5. Flag overrides
func Load(input Input) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	cfg := Default()
	cfg.EffectiveCwd = workDir

	if path := globalConfigPath(input.Env); path != "" {
		loaded, err := applyFile(&cfg, path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
		}
	}

	projectPath := filepath.Join(workDir, FileName)

	loaded, err := applyFile(&cfg, projectPath, false)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
	}

	if input.ConfigPath != "" {
		path := cfg.Resolve(input.ConfigPath)

		if _, statErr := os.Stat(path); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}

		if _, err := applyFile(&cfg, path, true); err != nil {
			return Config{}, err
		}

		cfg.Sources.Explicit = path
	}

	return cfg.Apply(input.Overrides)
}

// Apply returns cfg with the non-nil overrides set, validated.
func (c Config) Apply(o Overrides) (Config, error) {
	if o.ChunkSize != nil {
		c.ChunkSize = *o.ChunkSize
	}

	if o.PreserveWhitespace != nil {
		c.PreserveWhitespace = *o.PreserveWhitespace
	}

	if o.EndKeyword != nil {
		c.EndKeyword = *o.EndKeyword
	}

	if o.Indentation != nil {
		c.Indentation = *o.Indentation
	}

	if o.Format != nil {
		c.Format = *o.Format
	}

	if o.Encoding != nil {
		c.Encoding = *o.Encoding
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if c.ChunkSize < smlio.MinChunkSize {
		return fmt.Errorf("%w: chunk_size must be at least %d, got %d", ErrInvalidValue, smlio.MinChunkSize, c.ChunkSize)
	}

	if c.EndKeyword == "" {
		return fmt.Errorf("%w: end_keyword cannot be empty", ErrInvalidValue)
	}

	if strings.IndexFunc(c.Indentation, func(r rune) bool { return !wsv.IsWhitespace(r) }) >= 0 {
		return fmt.Errorf("%w: indentation must be whitespace, got %q", ErrInvalidValue, c.Indentation)
	}

	switch c.Format {
	case FormatAuto, FormatText, FormatBinary:
	default:
		return fmt.Errorf("%w: format must be auto, text or binary, got %q", ErrInvalidValue, c.Format)
	}

	if _, err := smlio.ParseEncoding(c.Encoding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	return nil
}

// Resolve returns path relative to the working directory.
func (c Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(c.EffectiveCwd, path)
}

// EndKeywordPtr returns the end keyword, nil for the null marker "-".
func (c Config) EndKeywordPtr() *string {
	if c.EndKeyword == "-" {
		return nil
	}

	keyword := c.EndKeyword

	return &keyword
}

// Template returns a document template for new files with root name root.
func (c Config) Template(root string) *sml.Document {
	indentation := c.Indentation

	return &sml.Document{
		Root:               sml.NewElement(root),
		EndKeyword:         c.EndKeywordPtr(),
		DefaultIndentation: &indentation,
	}
}

// Options returns library options using the configured chunk size and
// whitespace handling.
func (c Config) Options(logger log.Logger) smlio.Options {
	return smlio.Options{
		ChunkSize:                   c.ChunkSize,
		IgnoreWhitespaceAndComments: !c.PreserveWhitespace,
		Logger:                      logger,
	}
}

// TextEncoding returns the configured encoding. It is valid after Validate.
func (c Config) TextEncoding() smlio.Encoding {
	enc, _ := smlio.ParseEncoding(c.Encoding)

	return enc
}

// FormatJSON returns the configuration as indented JSON.
func FormatJSON(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}

// globalConfigPath returns $XDG_CONFIG_HOME/smlio/config.json if set,
// otherwise ~/.config/smlio/config.json, or "" without a home directory.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "smlio", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "smlio", "config.json")
	}

	return ""
}

// applyFile merges the config file at path into cfg. A missing file is
// skipped unless mustExist is set.
func applyFile(cfg *Config, path string, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return false, nil
		}

		return false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	overrides, err := parse(data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	merged, err := cfg.Apply(overrides)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	merged.Sources = cfg.Sources
	*cfg = merged

	return true, nil
}

func parse(data []byte) (Overrides, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Overrides{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	var o Overrides

	if err := dec.Decode(&o); err != nil {
		return Overrides{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return o, nil
}

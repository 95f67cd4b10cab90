package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the ndiff application configuration
type Config struct {
	// Comparison settings
	Compare struct {
		MaxDiffs   int    `toml:"max_diffs"`   // diagnostics beyond this count are counted but not printed
		Blank      bool   `toml:"blank"`       // consume runs of blanks in lockstep
		Check      bool   `toml:"check"`       // cross-validate incremental rule lookup
		BufferSize int    `toml:"buffer_size"` // initial per-side line buffer capacity in bytes
		Registers  int    `toml:"registers"`   // register-file size (overridden by the rule file)
		KeptChars  string `toml:"kept_chars"`  // punctuation bytes treated as identifier characters
	} `toml:"compare"`

	// Diagnostics settings
	Diagnostics struct {
		EnableTrace bool   `toml:"enable_trace"`
		TraceFile   string `toml:"trace_file"` // empty means stderr
		TestID      string `toml:"test_id"`    // optional label in the file-pair header
	} `toml:"diagnostics"`

	// Display settings
	Display struct {
		ColorOutput  bool `toml:"color_output"`
		EchoMatching bool `toml:"echo_matching"` // echo rows that produced no diff
	} `toml:"display"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Comparison defaults
	cfg.Compare.MaxDiffs = 10
	cfg.Compare.Blank = false
	cfg.Compare.Check = false
	cfg.Compare.BufferSize = 65536 // 64KB
	cfg.Compare.Registers = 100
	cfg.Compare.KeptChars = "_"

	// Diagnostics defaults
	cfg.Diagnostics.EnableTrace = false
	cfg.Diagnostics.TraceFile = ""
	cfg.Diagnostics.TestID = ""

	// Display defaults
	cfg.Display.ColorOutput = true
	cfg.Display.EchoMatching = false

	return cfg
}

// Validate reports the first nonsensical setting, so a bad config file
// fails at load time rather than deep inside a comparison run.
func (c *Config) Validate() error {
	if c.Compare.MaxDiffs <= 0 {
		return fmt.Errorf("compare.max_diffs must be > 0, got %d", c.Compare.MaxDiffs)
	}
	if c.Compare.BufferSize < 0 {
		return fmt.Errorf("compare.buffer_size must not be negative, got %d", c.Compare.BufferSize)
	}
	if c.Compare.Registers < 0 {
		return fmt.Errorf("compare.registers must not be negative, got %d", c.Compare.Registers)
	}
	return nil
}

// GetConfigPath returns the per-user config file path, creating its
// directory if needed. Falls back to the working directory when no user
// config directory is available (e.g. HOME unset in a CI job).
func GetConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	dir := filepath.Join(base, "ndiff")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "config.toml")
}

// GetLogPath returns the per-user directory trace output defaults to,
// with the same working-directory fallback as GetConfigPath.
func GetLogPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return "logs"
	}
	dir := filepath.Join(base, "ndiff", "logs")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "logs"
	}
	return dir
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file
// is not an error: the defaults apply. A present but invalid file is.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file, encoding to memory
// first so a failed encode never truncates an existing file.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// KeptSet expands the configured kept-character string into the byte
// lookup table the separator classifier consumes.
func (c *Config) KeptSet() [256]bool {
	var kept [256]bool
	for i := 0; i < len(c.Compare.KeptChars); i++ {
		kept[c.Compare.KeptChars[i]] = true
	}
	return kept
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the translator configuration
type Config struct {
	// Translation settings
	Translator struct {
		StrictPush     bool   `toml:"strict_push"`     // bounds-check PUSH immediates
		UnknownOpcodes string `toml:"unknown_opcodes"` // reject, ignore
		OptimizeIR     bool   `toml:"optimize_ir"`
	} `toml:"translator"`

	// Gas accounting settings
	Gas struct {
		Limit          uint64 `toml:"limit"`
		PipelineStages int    `toml:"pipeline_stages"`
	} `toml:"gas"`

	// Statistics settings
	Statistics struct {
		Enable     bool   `toml:"enable"`
		OutputFile string `toml:"output_file"`
	} `toml:"statistics"`

	// Display settings for stage inspection output
	Display struct {
		ShowInstructions bool `toml:"show_instructions"`
		ShowIR           bool `toml:"show_ir"`
		ShowRiscV        bool `toml:"show_riscv"`
		BytesPerLine     int  `toml:"bytes_per_line"`
	} `toml:"display"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Translator defaults
	cfg.Translator.StrictPush = true
	cfg.Translator.UnknownOpcodes = "reject"
	cfg.Translator.OptimizeIR = true

	// Gas defaults
	cfg.Gas.Limit = 30000000
	cfg.Gas.PipelineStages = 4

	// Statistics defaults
	cfg.Statistics.Enable = false
	cfg.Statistics.OutputFile = "stats.json"

	// Display defaults
	cfg.Display.ShowInstructions = false
	cfg.Display.ShowIR = false
	cfg.Display.ShowRiscV = true
	cfg.Display.BytesPerLine = 16

	return cfg
}

// Validate checks the unknown-opcode policy and the pipeline stage count
func (c *Config) Validate() error {
	switch c.Translator.UnknownOpcodes {
	case "reject", "ignore":
	default:
		return fmt.Errorf("invalid unknown_opcodes value %q (want reject or ignore)",
			c.Translator.UnknownOpcodes)
	}
	if c.Gas.PipelineStages < 1 {
		return fmt.Errorf("pipeline_stages must be at least 1, got %d", c.Gas.PipelineStages)
	}
	return nil
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\risc-evm\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "risc-evm")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/risc-evm/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "risc-evm")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	// Encode to TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

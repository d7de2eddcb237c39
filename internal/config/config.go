package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"projmap/internal/logging"
)

// ConfigFileName is the per-project override file in the project root
const ConfigFileName = ".projectmaprc"

// CurrentVersion is the supported config schema version
const CurrentVersion = 1

// Config represents the complete projmap configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Scanner     ScannerConfig     `json:"scanner" mapstructure:"scanner"`
	Compression CompressionConfig `json:"compression" mapstructure:"compression"`
	History     HistoryConfig     `json:"history" mapstructure:"history"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// ScannerConfig controls file discovery and filtering
type ScannerConfig struct {
	Include          []string `json:"include" mapstructure:"include"`
	Exclude          []string `json:"exclude" mapstructure:"exclude"`
	ExcludeDirs      []string `json:"excludeDirs" mapstructure:"excludeDirs"`
	RespectGitignore bool     `json:"respectGitignore" mapstructure:"respectGitignore"`
	FollowSymlinks   bool     `json:"followSymlinks" mapstructure:"followSymlinks"`
	MaxDepth         int      `json:"maxDepth" mapstructure:"maxDepth"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// CompressionConfig controls the stored map envelope.
// Level 0 selects a tier automatically from payload size.
type CompressionConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Level   int  `json:"level" mapstructure:"level"`
}

// HistoryConfig controls automatic history retention
type HistoryConfig struct {
	Keep int `json:"keep" mapstructure:"keep"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Scanner: ScannerConfig{
			Include: []string{
				"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.mjs",
				"**/*.go", "**/*.py", "**/*.rs", "**/*.java", "**/*.kt",
				"**/*.rb", "**/*.php", "**/*.c", "**/*.h", "**/*.cpp",
				"**/*.cs", "**/*.swift", "**/*.dart", "**/*.sh", "**/*.sql",
				"**/*.css", "**/*.scss", "**/*.less", "**/*.html", "**/*.vue",
				"**/*.svelte", "**/*.json", "**/*.yaml", "**/*.yml",
				"**/*.toml", "**/*.md", "**/*.txt",
				"**/Makefile", "**/Dockerfile", "**/go.mod",
				"**/pom.xml", "**/build.gradle", "**/build.gradle.kts",
			},
			Exclude: []string{
				"**/*.min.js", "**/*.map", "**/*.log", "**/*.tmp",
				"**/package-lock.json", "**/yarn.lock", "**/pnpm-lock.yaml",
			},
			ExcludeDirs: []string{
				"node_modules", ".git", "dist", "build", "out", "target",
				"vendor", "__pycache__", ".next", ".nuxt", "coverage",
				".idea", ".vscode", ".dart_tool", ".projmap",
			},
			RespectGitignore: true,
			FollowSymlinks:   false,
			MaxDepth:         20,
			MaxFileSizeBytes: 1000000,
		},
		Compression: CompressionConfig{
			Enabled: true,
			Level:   0,
		},
		History: HistoryConfig{
			Keep: 10,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads <projectRoot>/.projectmaprc and merges it over the defaults.
// A missing file yields the defaults silently; an unreadable or malformed
// file yields the defaults with a warning. Load never fails.
func Load(projectRoot string, logger *logging.Logger) *Config {
	v := viper.New()
	setDefaults(v)

	path := filepath.Join(projectRoot, ConfigFileName)
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return DefaultConfig()
		}
		logger.Warn("ignoring unreadable config file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("ignoring malformed config file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		logger.Warn("ignoring invalid config file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return DefaultConfig()
	}

	return &cfg
}

// setDefaults registers every leaf key so file values merge per key.
// Arrays and scalars replace wholesale; objects merge.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("version", d.Version)
	v.SetDefault("scanner.include", d.Scanner.Include)
	v.SetDefault("scanner.exclude", d.Scanner.Exclude)
	v.SetDefault("scanner.excludeDirs", d.Scanner.ExcludeDirs)
	v.SetDefault("scanner.respectGitignore", d.Scanner.RespectGitignore)
	v.SetDefault("scanner.followSymlinks", d.Scanner.FollowSymlinks)
	v.SetDefault("scanner.maxDepth", d.Scanner.MaxDepth)
	v.SetDefault("scanner.maxFileSizeBytes", d.Scanner.MaxFileSizeBytes)
	v.SetDefault("compression.enabled", d.Compression.Enabled)
	v.SetDefault("compression.level", d.Compression.Level)
	v.SetDefault("history.keep", d.History.Keep)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Save writes the configuration to <projectRoot>/.projectmaprc
func (c *Config) Save(projectRoot string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectRoot, ConfigFileName), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Scanner.MaxDepth < 1 {
		return &ConfigError{Field: "scanner.maxDepth", Message: "must be at least 1"}
	}
	if c.Scanner.MaxFileSizeBytes < 0 {
		return &ConfigError{Field: "scanner.maxFileSizeBytes", Message: "must not be negative"}
	}
	if c.Compression.Level < 0 || c.Compression.Level > 3 {
		return &ConfigError{Field: "compression.level", Message: "must be between 0 and 3"}
	}
	if c.History.Keep < 1 {
		return &ConfigError{Field: "history.keep", Message: "must be at least 1"}
	}
	return nil
}

// CompressionLevel returns the tier for a payload of the given size:
// the configured level when fixed, otherwise 3 above 20KB, 2 above 5KB,
// and 1 below that.
func (c *Config) CompressionLevel(size int64) int {
	if !c.Compression.Enabled {
		return 0
	}
	if c.Compression.Level != 0 {
		return c.Compression.Level
	}
	switch {
	case size > 20*1024:
		return 3
	case size > 5*1024:
		return 2
	default:
		return 1
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

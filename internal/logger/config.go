package logger

// Default configuration values.
const (
	DefaultLevel     = "info"
	DefaultFormat    = "json"
	DefaultMaxSizeMB = 50
)

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum logging level (debug, info, warn, error, fatal).
	Level string `env:"LOG_LEVEL" yaml:"level"`
	// Format is "json" or "console".
	Format string `env:"LOG_FORMAT" yaml:"format"`
	// Development disables sampling so every entry is written.
	Development bool `yaml:"development"`
	// OutputPaths lists URLs or file paths to write logging output to.
	OutputPaths []string `yaml:"output_paths"`
	// File, when set, additionally writes JSON entries to a rotated file.
	File FileConfig `yaml:"file"`
}

// FileConfig configures the rotated log file.
type FileConfig struct {
	Path       string `env:"LOG_FILE" yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
	if c.File.Path != "" && c.File.MaxSizeMB == 0 {
		c.File.MaxSizeMB = DefaultMaxSizeMB
	}
}

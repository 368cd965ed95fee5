// Package config loads the engine configuration and prepares logging.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultConfig []byte

type (
	LoggerConfig struct {
		Level       string `yaml:"level"`
		Destination string `yaml:"destination,omitempty"`
		Mode        string `yaml:"mode,omitempty"`
	}

	LoggingConfig struct {
		FileLogger    LoggerConfig `yaml:"file"`
		ConsoleLogger LoggerConfig `yaml:"console"`
	}

	// StoreConfig controls where annotations and locations persist.
	StoreConfig struct {
		// Directory for locations documents; empty means
		// <tempdir>/rishi_store.
		Directory string `yaml:"directory,omitempty"`
		// LocationsNameTemplate expands into the locations file name.
		// Available fields: BookID, Title.
		LocationsNameTemplate string `yaml:"locations_name_template,omitempty"`
	}

	TtsConfig struct {
		ProxyURL       string  `yaml:"proxy_url,omitempty"`
		Voice          string  `yaml:"voice,omitempty"`
		Rate           float64 `yaml:"rate,omitempty"`
		TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"`
		CacheDirectory string  `yaml:"cache_directory,omitempty"`
	}

	LayoutConfig struct {
		ViewportWidth    float64 `yaml:"viewport_width"`
		ViewportHeight   float64 `yaml:"viewport_height"`
		MinSpreadWidth   float64 `yaml:"min_spread_width"`
		CharsPerLocation int     `yaml:"chars_per_location"`
	}

	Config struct {
		Logging LoggingConfig `yaml:"logging"`
		Store   StoreConfig   `yaml:"store"`
		Tts     TtsConfig     `yaml:"tts"`
		Layout  LayoutConfig  `yaml:"layout"`
	}
)

// LoadConfiguration reads configuration from fname merged over the
// embedded defaults. Empty fname returns the defaults.
func LoadConfiguration(fname string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultConfig, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse default configuration: %w", err)
	}
	if len(fname) == 0 {
		return cfg, nil
	}
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration (%s): %w", fname, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration (%s): %w", fname, err)
	}
	return cfg, nil
}

// Dump serializes the active configuration to YAML.
func Dump(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("unable to serialize configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DefaultConfig returns the embedded default document.
func DefaultConfig() []byte {
	out := make([]byte, len(defaultConfig))
	copy(out, defaultConfig)
	return out
}

// StoreDir returns the configured store directory, defaulting to
// <tempdir>/rishi_store.
func (c *StoreConfig) StoreDir() string {
	if c.Directory != "" {
		return c.Directory
	}
	return filepath.Join(os.TempDir(), "rishi_store")
}

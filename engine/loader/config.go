package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LoaderConfig is the file form of the loader options. Unset fields keep the option defaults.
type LoaderConfig struct {
	Workers            *int     `yaml:"workers" toml:"workers"`
	QueueSize          int      `yaml:"queue_size" toml:"queue_size"`
	HTTPTimeout        Duration `yaml:"http_timeout" toml:"http_timeout"`
	ForceUint32Indices bool     `yaml:"force_uint32_indices" toml:"force_uint32_indices"`
	MaskAsBlend        bool     `yaml:"mask_as_blend" toml:"mask_as_blend"`
	HotReload          bool     `yaml:"hot_reload" toml:"hot_reload"`
	Profiling          bool     `yaml:"profiling" toml:"profiling"`
	LogLevel           string   `yaml:"log_level" toml:"log_level"`
}

// Duration wraps time.Duration so config files can say "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration; go-toml uses it.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) loader config.
//
// Parameters:
//   - path: the config file
//
// Returns:
//   - *LoaderConfig: the decoded config
//   - error: error if the file cannot be read, has an unknown extension or fails to decode
func LoadConfig(path string) (*LoaderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(filepath.Ext(path), data)
}

// ParseConfig decodes a loader config in the format named by ext.
//
// Parameters:
//   - ext: ".yaml", ".yml" or ".toml"
//   - data: the config contents
//
// Returns:
//   - *LoaderConfig: the decoded config
//   - error: error on an unknown format, unknown keys or bad values
func ParseConfig(ext string, data []byte) (*LoaderConfig, error) {
	var cfg LoaderConfig
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", ext)
	}

	if cfg.LogLevel != "" {
		if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("log_level: %w", err)
		}
	}
	if cfg.Workers != nil && *cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", *cfg.Workers)
	}
	return &cfg, nil
}

// Options converts the config into loader options. A log level is applied to logger,
// which may be nil when the caller keeps the default logger.
//
// Parameters:
//   - logger: the logger to configure and install, or nil
//
// Returns:
//   - []LoaderBuilderOption: the options, in the order NewLoader should apply them
func (c *LoaderConfig) Options(logger *log.Logger) []LoaderBuilderOption {
	var opts []LoaderBuilderOption
	if logger != nil {
		if lvl, err := log.ParseLevel(c.LogLevel); err == nil && c.LogLevel != "" {
			logger.SetLevel(lvl)
		}
		opts = append(opts, WithLogger(logger))
	}
	if c.Workers != nil {
		opts = append(opts, WithWorkers(*c.Workers))
	}
	if c.QueueSize > 0 {
		opts = append(opts, WithQueueSize(c.QueueSize))
	}
	if c.HTTPTimeout > 0 {
		opts = append(opts, WithHTTPTimeout(c.HTTPTimeout.Duration()))
	}
	if c.ForceUint32Indices {
		opts = append(opts, WithIndexFormat(wgpu.IndexFormatUint32))
	}
	return append(opts,
		WithMaskAsBlend(c.MaskAsBlend),
		WithHotReload(c.HotReload),
		WithProfiling(c.Profiling),
	)
}

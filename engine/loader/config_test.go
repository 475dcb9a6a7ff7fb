package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestParseConfigFormats(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"yaml", ".yaml", "workers: 2\nqueue_size: 64\nhttp_timeout: 45s\nforce_uint32_indices: true\nhot_reload: true\nlog_level: debug\n"},
		{"yml", ".YML", "workers: 2\nqueue_size: 64\nhttp_timeout: 45s\nforce_uint32_indices: true\nhot_reload: true\nlog_level: debug\n"},
		{"toml", ".toml", "workers = 2\nqueue_size = 64\nhttp_timeout = \"45s\"\nforce_uint32_indices = true\nhot_reload = true\nlog_level = \"debug\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(tt.ext, []byte(tt.data))
			if err != nil {
				t.Fatalf("ParseConfig failed: %v", err)
			}
			if cfg.Workers == nil || *cfg.Workers != 2 || cfg.QueueSize != 64 {
				t.Errorf("workers = %v, queue = %d", cfg.Workers, cfg.QueueSize)
			}
			if cfg.HTTPTimeout.Duration() != 45*time.Second {
				t.Errorf("http_timeout = %v, want 45s", cfg.HTTPTimeout.Duration())
			}
			if !cfg.ForceUint32Indices || !cfg.HotReload || cfg.MaskAsBlend {
				t.Errorf("flags = %+v", cfg)
			}
			if cfg.LogLevel != "debug" {
				t.Errorf("log_level = %q", cfg.LogLevel)
			}
		})
	}
}

func TestParseConfigEmptyYAML(t *testing.T) {
	cfg, err := ParseConfig(".yaml", nil)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Workers != nil || cfg.HTTPTimeout != 0 {
		t.Errorf("empty config = %+v, want zero values", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{"unknown yaml field", ".yaml", "threads: 4\n"},
		{"unknown toml field", ".toml", "threads = 4\n"},
		{"bad duration", ".yaml", "http_timeout: soon\n"},
		{"bad toml duration", ".toml", "http_timeout = \"10 parsecs\"\n"},
		{"bad log level", ".yaml", "log_level: loud\n"},
		{"negative workers", ".toml", "workers = -1\n"},
		{"unknown format", ".json", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig(tt.ext, []byte(tt.data)); err == nil {
				t.Error("ParseConfig succeeded, want an error")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loader.toml")
	if err := os.WriteFile(path, []byte("workers = 0\nmask_as_blend = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 0 || !cfg.MaskAsBlend {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig of a missing file succeeded")
	}
}

func TestConfigOptions(t *testing.T) {
	cfg, err := ParseConfig(".yaml", []byte("workers: 0\nqueue_size: 8\nhttp_timeout: 3s\nforce_uint32_indices: true\nmask_as_blend: true\nlog_level: error\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	logger := testLogger()
	l := &loader{}
	for _, opt := range cfg.Options(logger) {
		opt(l)
	}

	if l.logger != logger || logger.GetLevel() != log.ErrorLevel {
		t.Errorf("logger level = %v, want error", logger.GetLevel())
	}
	if l.workers != 0 || l.queueSize != 8 || l.httpTimeout != 3*time.Second {
		t.Errorf("workers %d, queue %d, timeout %v", l.workers, l.queueSize, l.httpTimeout)
	}
	if !l.importOpts.forceU32 || !l.importOpts.maskAsBlend {
		t.Errorf("import options = %+v", l.importOpts)
	}
	if l.hotReload {
		t.Error("hot reload enabled without being configured")
	}
}

// Package config loads probe settings from a YAML file with environment
// overrides. Unknown keys are rejected so typos fail loudly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML duration strings like "10s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config holds everything the CLI needs beyond its positional arguments.
type Config struct {
	LogLevel    string   `yaml:"log_level"`
	UDPAddr     string   `yaml:"udp_addr"`
	SRTAddr     string   `yaml:"srt_addr"`
	MetricsAddr string   `yaml:"metrics_addr"`
	IdleTimeout Duration `yaml:"idle_timeout"`

	// ParseRTP controls whether live datagrams are treated as RTP with a
	// TS payload (true) or as raw transport stream chunks (false).
	ParseRTP bool `yaml:"parse_rtp"`

	// Optional output paths. Empty disables the corresponding writer.
	VideoOut string `yaml:"video_out"` // video-only FLV re-mux
	AudioOut string `yaml:"audio_out"` // raw audio elementary stream
	TSDump   string `yaml:"ts_dump"`   // concatenated TS packets from RTP
}

func defaults() Config {
	return Config{
		LogLevel:    "info",
		UDPAddr:     ":8600",
		SRTAddr:     ":8890",
		MetricsAddr: ":9100",
		IdleTimeout: Duration(10 * time.Second),
		ParseRTP:    true,
	}
}

// Load reads path and applies environment overrides. A missing file is
// not an error; defaults apply. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return Config{}, fmt.Errorf("config open: %w", err)
		default:
			defer f.Close()
			dec := yaml.NewDecoder(f)
			dec.KnownFields(true)
			if err := dec.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("config parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STREAMPROBE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STREAMPROBE_UDP_ADDR"); v != "" {
		cfg.UDPAddr = v
	}
	if v := os.Getenv("STREAMPROBE_SRT_ADDR"); v != "" {
		cfg.SRTAddr = v
	}
	if v := os.Getenv("STREAMPROBE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("STREAMPROBE_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleTimeout = Duration(d)
		}
	}
}

func (c Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("config: negative idle timeout %s", c.IdleTimeout)
	}
	return nil
}

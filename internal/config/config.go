// Package config holds the scan settings shared by the command line and
// the optional YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0x6d61/sqlif/internal/transport"
)

// Config is the full set of scan settings. Zero values in a YAML file
// leave the defaults in place only for keys that are absent.
type Config struct {
	Targets []string      `yaml:"targets"`
	Scanner ScannerConfig `yaml:"scanner"`
	Search  SearchConfig  `yaml:"search"`
	Output  OutputConfig  `yaml:"output"`
	Session SessionConfig `yaml:"session"`
}

// ScannerConfig controls how requests are sent.
type ScannerConfig struct {
	Threads            int           `yaml:"threads"`
	Timeout            time.Duration `yaml:"timeout"`
	UserAgent          string        `yaml:"user_agent"`
	RandomAgent        bool          `yaml:"random_agent"`
	Proxy              string        `yaml:"proxy"`
	Rate               float64       `yaml:"rate"`
	Tamper             []string      `yaml:"tamper"`
	FollowRedirects    bool          `yaml:"follow_redirects"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	// AllDBMS enables the error signatures that are off by default.
	AllDBMS bool `yaml:"all_dbms"`
}

// SearchConfig controls search-engine target discovery.
type SearchConfig struct {
	Engine string `yaml:"engine"`
	Query  string `yaml:"query"`
	Pages  int    `yaml:"pages"`
}

// OutputConfig controls reporting and console output.
type OutputConfig struct {
	File    string `yaml:"file"`
	Format  string `yaml:"format"`
	Verbose int    `yaml:"verbose"`
	NoColor bool   `yaml:"no_color"`
}

// SessionConfig controls the run history database.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Threads:         0,
			Timeout:         15 * time.Second,
			UserAgent:       transport.DefaultUserAgent,
			FollowRedirects: true,
		},
		Search: SearchConfig{
			Pages: 1,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Scanner.Threads < 0:
		return fmt.Errorf("config: threads must be >= 0, got %d", c.Scanner.Threads)
	case c.Scanner.Timeout <= 0:
		return fmt.Errorf("config: timeout must be positive, got %s", c.Scanner.Timeout)
	case c.Scanner.Rate < 0:
		return fmt.Errorf("config: rate must be >= 0, got %g", c.Scanner.Rate)
	case c.Search.Pages < 1:
		return fmt.Errorf("config: pages must be >= 1, got %d", c.Search.Pages)
	}
	switch strings.ToLower(c.Output.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unsupported output format %q", c.Output.Format)
	}
	return nil
}

// ClientOptions maps the scanner settings onto transport options.
func (c *Config) ClientOptions() transport.ClientOptions {
	return transport.ClientOptions{
		Timeout:            c.Scanner.Timeout,
		UserAgent:          c.Scanner.UserAgent,
		RandomUserAgent:    c.Scanner.RandomAgent,
		ProxyURL:           c.Scanner.Proxy,
		FollowRedirects:    c.Scanner.FollowRedirects,
		InsecureSkipVerify: c.Scanner.InsecureSkipVerify,
		MaxRPS:             c.Scanner.Rate,
	}
}

// Marshal renders the configuration as YAML, e.g. for a starter file.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

package app

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/repscan/internal/provider"
	"github.com/raysh454/repscan/internal/ratelimit"
	"github.com/raysh454/repscan/internal/sink"
	"github.com/raysh454/repscan/internal/source"
	"github.com/raysh454/repscan/internal/webclient"
)

var ErrMissingAPIKey = errors.New("app: VIRUSTOTAL_API_KEY is not set")

// Environment variables consulted by ApplyEnv.
const (
	EnvAPIKey  = "VIRUSTOTAL_API_KEY"
	EnvBaseURL = "REPSCAN_BASE_URL"
	EnvQuota   = "REPSCAN_QUOTA"
	EnvDSN     = "REPSCAN_DB_DSN"
)

// Config is the runtime configuration of a scan run.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`

	// Quota is the provider's allowance of calls per minute.
	Quota int `yaml:"quota"`

	// MaxAttempts is the attempt budget of each of the submit and poll stages.
	MaxAttempts int `yaml:"max_attempts"`

	// CountUnresolvedAsScanned marks URLs whose report never became available
	// as Scanned rather than Not Scanned.
	CountUnresolvedAsScanned bool `yaml:"count_unresolved_as_scanned"`

	Source source.Config `yaml:"source"`
	Sink   sink.Config   `yaml:"sink"`

	// ProgressAddr enables the progress API when non-empty.
	ProgressAddr string `yaml:"progress_addr"`

	LogLevel string `yaml:"log_level"`
}

type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:   provider.DefaultBaseURL,
			Timeout:   webclient.DefaultTimeout,
			UserAgent: "repscan/" + Version,
		},
		Quota:       ratelimit.DefaultQuota,
		MaxAttempts: provider.DefaultMaxAttempts,
		Source: source.Config{
			Kind: source.KindStatic,
		},
		Sink: sink.Config{
			Kinds:      []string{sink.KindConsole, sink.KindCSV},
			CSVPath:    sink.DefaultCSVPath,
			SQLitePath: sink.DefaultSQLitePath,
			XLSXPath:   sink.DefaultXLSXPath,
		},
		LogLevel: "info",
	}
}

// LoadConfig returns the defaults overlaid with the YAML file at path, if
// any. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv sets variables from the first readable file among paths.
// Variables already present in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			line = strings.TrimPrefix(line, "export ")
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			k = strings.TrimSpace(k)
			v = strings.Trim(strings.TrimSpace(v), `"'`)
			if _, exists := os.LookupEnv(k); !exists {
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("set %s: %w", k, err)
				}
			}
		}
		return sc.Err()
	}
	return nil
}

// ApplyEnv overlays the environment read through getenv onto c.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.Provider.APIKey = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := getenv(EnvQuota); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvQuota, err)
		}
		c.Quota = q
	}
	if v := getenv(EnvDSN); v != "" {
		c.Source.DSN = v
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Quota <= 0 {
		return fmt.Errorf("app: quota must be positive, got %d", c.Quota)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("app: max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("app: provider timeout must be positive, got %s", c.Provider.Timeout)
	}
	if c.Source.Kind != "" && !source.KnownKind(c.Source.Kind) {
		return fmt.Errorf("%w: %q", source.ErrUnknownKind, c.Source.Kind)
	}
	if len(c.Sink.Kinds) == 0 {
		return sink.ErrNoSinks
	}
	for _, k := range c.Sink.Kinds {
		if !sink.KnownKind(k) {
			return fmt.Errorf("%w: %q", sink.ErrUnknownKind, k)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/masonry/internal/discovery"
	"github.com/eugenenazirov/masonry/internal/packer"
	"github.com/eugenenazirov/masonry/internal/storage"
)

const (
	defaultDir            = "."
	defaultOutputFile     = "masonry_packed.jpg"
	defaultOutputSize     = 2000
	defaultBackground     = "#ffffff"
	defaultPort           = "8080"
	defaultMaxUploadBytes = 64 << 20
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Dir        string   `yaml:"dir"`
	Patterns   []string `yaml:"patterns"`
	OutputFile string   `yaml:"output"`
	OutputSize int      `yaml:"output_size"`
	Quality    int      `yaml:"quality"`
	Background string   `yaml:"background"`
	Rounding   string   `yaml:"rounding"`

	Port                 string        `yaml:"port"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
	EnableRequestLogging bool          `yaml:"enable_request_logging"`
	RateLimitRPS         float64       `yaml:"-"`
	RateLimitBurst       int           `yaml:"-"`
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Dir                  string        `yaml:"dir"`
	Patterns             []string      `yaml:"patterns"`
	OutputFile           string        `yaml:"output"`
	OutputSize           int           `yaml:"output_size"`
	Quality              int           `yaml:"quality"`
	Background           string        `yaml:"background"`
	Rounding             string        `yaml:"rounding"`
	Port                 string        `yaml:"port"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Dir            *string
	OutputFile     *string
	OutputSize     *int
	Quality        *int
	Background     *string
	Rounding       *string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so YAML can override them
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, err
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// BackgroundColor parses the configured background as a hex colour.
func (c Config) BackgroundColor() (color.Color, error) {
	col, err := colorful.Hex(c.Background)
	if err != nil {
		return nil, fmt.Errorf("invalid background %q: %w", c.Background, err)
	}
	r, g, b := col.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// PackerOptions translates the configuration into packer options.
func (c Config) PackerOptions() ([]packer.Option, error) {
	bg, err := c.BackgroundColor()
	if err != nil {
		return nil, err
	}
	rounding, err := packer.ParseRounding(c.Rounding)
	if err != nil {
		return nil, err
	}
	return []packer.Option{
		packer.WithOutputSize(c.OutputSize),
		packer.WithBackground(bg),
		packer.WithRounding(rounding),
	}, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Dir:                  defaultDir,
		Patterns:             discovery.DefaultPatterns(),
		OutputFile:           defaultOutputFile,
		OutputSize:           defaultOutputSize,
		Quality:              storage.DefaultQuality,
		Background:           defaultBackground,
		Rounding:             packer.RoundNearest.String(),
		Port:                 defaultPort,
		MaxUploadBytes:       defaultMaxUploadBytes,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Dir != "" {
		cfg.Dir = yamlCfg.Dir
	}
	if len(yamlCfg.Patterns) > 0 {
		cfg.Patterns = yamlCfg.Patterns
	}
	if yamlCfg.OutputFile != "" {
		cfg.OutputFile = yamlCfg.OutputFile
	}
	if yamlCfg.OutputSize != 0 {
		cfg.OutputSize = yamlCfg.OutputSize
	}
	if yamlCfg.Quality != 0 {
		cfg.Quality = yamlCfg.Quality
	}
	if yamlCfg.Background != "" {
		cfg.Background = yamlCfg.Background
	}
	if yamlCfg.Rounding != "" {
		cfg.Rounding = yamlCfg.Rounding
	}
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.MaxUploadBytes != 0 {
		cfg.MaxUploadBytes = yamlCfg.MaxUploadBytes
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if dir := strings.TrimSpace(os.Getenv("MASONRY_DIR")); dir != "" {
		cfg.Dir = dir
	}

	if raw := strings.TrimSpace(os.Getenv("MASONRY_PATTERNS")); raw != "" {
		if patterns := parseList(raw); len(patterns) > 0 {
			cfg.Patterns = patterns
		}
	}

	if out := strings.TrimSpace(os.Getenv("MASONRY_OUTPUT")); out != "" {
		cfg.OutputFile = out
	}

	if size := strings.TrimSpace(os.Getenv("MASONRY_OUTPUT_SIZE")); size != "" {
		if value, err := strconv.Atoi(size); err == nil && value > 0 {
			cfg.OutputSize = value
		}
	}

	if quality := strings.TrimSpace(os.Getenv("MASONRY_QUALITY")); quality != "" {
		if value, err := strconv.Atoi(quality); err == nil {
			cfg.Quality = value
		}
	}

	if bg := strings.TrimSpace(os.Getenv("MASONRY_BACKGROUND")); bg != "" {
		cfg.Background = bg
	}

	if rounding := strings.TrimSpace(os.Getenv("MASONRY_ROUNDING")); rounding != "" {
		cfg.Rounding = rounding
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if limit := strings.TrimSpace(os.Getenv("MASONRY_MAX_UPLOAD_BYTES")); limit != "" {
		if value, err := strconv.ParseInt(limit, 10, 64); err == nil && value > 0 {
			cfg.MaxUploadBytes = value
		}
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Dir != nil && *overrides.Dir != "" {
		cfg.Dir = *overrides.Dir
	}
	if overrides.OutputFile != nil && *overrides.OutputFile != "" {
		cfg.OutputFile = *overrides.OutputFile
	}
	if overrides.OutputSize != nil && *overrides.OutputSize > 0 {
		cfg.OutputSize = *overrides.OutputSize
	}
	if overrides.Quality != nil && *overrides.Quality > 0 {
		cfg.Quality = *overrides.Quality
	}
	if overrides.Background != nil && *overrides.Background != "" {
		cfg.Background = *overrides.Background
	}
	if overrides.Rounding != nil && *overrides.Rounding != "" {
		cfg.Rounding = *overrides.Rounding
	}
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.OutputSize <= 0 {
		return fmt.Errorf("output size must be positive, got %d", cfg.OutputSize)
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", cfg.Quality)
	}
	if cfg.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if len(cfg.Patterns) == 0 {
		return fmt.Errorf("patterns cannot be empty")
	}
	if _, err := cfg.BackgroundColor(); err != nil {
		return err
	}
	if _, err := packer.ParseRounding(cfg.Rounding); err != nil {
		return err
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// parseList splits a comma-separated list, dropping blank entries.
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

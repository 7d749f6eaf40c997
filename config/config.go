package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration.
type Config struct {
	ListenAddr       string        `yaml:"listen_addr"`
	TargetPattern    string        `yaml:"target_pattern"`
	StartURL         string        `yaml:"start_url"`
	PageParam        string        `yaml:"page_param"`
	PageDelay        time.Duration `yaml:"page_delay"`
	MinBodyLength    int           `yaml:"min_body_length"`
	MaxPages         int           `yaml:"max_pages"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	StorePath        string        `yaml:"store_path"`
	ExtractCacheSize int           `yaml:"extract_cache_size"`
	OutputFile       string        `yaml:"output_file"`
	OutputFormat     string        `yaml:"output_format"` // csv, json, html, or dual
	Headless         bool          `yaml:"headless"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns the defaults for the flight search target.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       "127.0.0.1:8765",
		TargetPattern:    "FlightReturnSearchAjax.aspx",
		StartURL:         "https://m.travelboutiqueonline.com/",
		PageParam:        "pageNumber",
		PageDelay:        2 * time.Second,
		MinBodyLength:    100,
		MaxPages:         0,
		Timeout:          30 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		StorePath:        "",
		ExtractCacheSize: 64,
		OutputFile:       "output/flights.csv",
		OutputFormat:     "csv",
		Headless:         false,
		Verbose:          false,
	}
}

// Load builds a configuration from the defaults, the optional YAML file at
// path, the .env file and TBO_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	LoadDotEnv()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.TargetPattern == "" {
		return fmt.Errorf("target pattern cannot be empty")
	}
	if c.StartURL != "" {
		parsedURL, err := url.Parse(c.StartURL)
		if err != nil {
			return fmt.Errorf("invalid start URL: %w", err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("start URL must include a host")
		}
	}
	if c.PageParam == "" {
		return fmt.Errorf("page param cannot be empty")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.MinBodyLength < 0 {
		return fmt.Errorf("min body length cannot be negative")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.ExtractCacheSize < 0 {
		return fmt.Errorf("extract cache size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch strings.ToLower(c.OutputFormat) {
	case "csv", "json", "html", "dual":
	default:
		return fmt.Errorf("output format must be csv, json, html, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "TBO_"

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", slog.Any("error", err))
	}
}

// EnvString returns the trimmed value of key when set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key as a time.Duration ("2s", "500ms").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

func (c *Config) applyEnv() error {
	stringVars := map[string]*string{
		"LISTEN_ADDR":    &c.ListenAddr,
		"TARGET_PATTERN": &c.TargetPattern,
		"START_URL":      &c.StartURL,
		"PAGE_PARAM":     &c.PageParam,
		"USER_AGENT":     &c.UserAgent,
		"STORE_PATH":     &c.StorePath,
		"OUTPUT":         &c.OutputFile,
		"FORMAT":         &c.OutputFormat,
	}
	for name, dst := range stringVars {
		if value, ok := EnvString(EnvPrefix + name); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"MIN_BODY_LENGTH":    &c.MinBodyLength,
		"MAX_PAGES":          &c.MaxPages,
		"EXTRACT_CACHE_SIZE": &c.ExtractCacheSize,
	}
	for name, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"PAGE_DELAY": &c.PageDelay,
		"TIMEOUT":    &c.Timeout,
	}
	for name, dst := range durations {
		value, ok, err := EnvDuration(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	bools := map[string]*bool{
		"HEADLESS": &c.Headless,
		"VERBOSE":  &c.Verbose,
	}
	for name, dst := range bools {
		value, ok, err := EnvBool(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}
	return nil
}

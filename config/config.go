package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	ListingURL   string
	UserAgent    string
	Timeout      time.Duration // 0 keeps the collector default
	MaxBodySize  int           // 0 reads bodies in full
	OutputFormat string        // json or csv
	Verbose      bool
	MetricsAddr  string
}

// DefaultConfig returns defaults for the ripe & ready listing.
func DefaultConfig() *Config {
	return &Config{
		ListingURL:   "http://www.sainsburys.co.uk/shop/gb/groceries/fruit-veg/ripe---ready",
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Timeout:      0,
		MaxBodySize:  0,
		OutputFormat: "json",
		Verbose:      false,
		MetricsAddr:  "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListingURL == "" {
		return fmt.Errorf("listing URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.ListingURL)
	if err != nil {
		return fmt.Errorf("invalid listing URL: %w", err)
	}
	switch parsedURL.Scheme {
	case "http", "https":
		if parsedURL.Host == "" {
			return fmt.Errorf("listing URL must include a host")
		}
	case "file":
		if parsedURL.Path == "" {
			return fmt.Errorf("listing URL must include a file path")
		}
	default:
		return fmt.Errorf("listing URL scheme must be http, https, or file")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "csv" {
		return fmt.Errorf("output format must be json or csv")
	}

	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
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

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, true, nil
}

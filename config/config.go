package config

import (
	"fmt"
	"net/url"
	"time"
)

// Missing-price policies applied by the merge step.
const (
	MissingPriceFail = "fail"
	MissingPriceSkip = "skip"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL      string
	CategoryID   string
	PageSize     int
	FilterParams []string

	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string
	AppID           string
	Referer         string
	Headers         map[string]string
	Cookies         map[string]string
	SessionFile     string

	OutputDir     string
	OutputFormat  string // xlsx, csv, or dual
	MissingPrice  string // fail or skip
	DedupeMaxSize int
	BatchSize     int
	PostgresDSN   string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns defaults for the laptop category with the
// "discounted" and "in stock" filters applied.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://www.mvideo.ru",
		CategoryID: "118",
		PageSize:   24,
		FilterParams: []string{
			"WyJza2lka2EiLCIiLCJkYSJd",
			"WyJ0b2xrby12LW5hbGljaGlpIiwiIiwiZGEiXQ==",
		},
		Timeout:         30 * time.Second,
		MaxRetries:      0,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:103.0) Gecko/20100101 Firefox/103.0",
		Referer:         "https://www.mvideo.ru/noutbuki-planshety-komputery-8/noutbuki-118/f/skidka=da/tolko-v-nalichii=da",
		Headers: map[string]string{
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.5",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-origin",
		},
		Cookies:       map[string]string{},
		OutputDir:     "data",
		OutputFormat:  "xlsx",
		MissingPrice:  MissingPriceFail,
		DedupeMaxSize: 100000,
		BatchSize:     64,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.CategoryID == "" {
		return fmt.Errorf("category id cannot be empty")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "xlsx" && c.OutputFormat != "csv" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be xlsx, csv, or dual")
	}
	if c.MissingPrice != MissingPriceFail && c.MissingPrice != MissingPriceSkip {
		return fmt.Errorf("missing price policy must be %s or %s", MissingPriceFail, MissingPriceSkip)
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

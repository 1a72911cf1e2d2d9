package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed value of key and whether it was set.
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

// EnvInt parses key as an integer. ok is false when the variable is unset.
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

// EnvList splits a comma separated variable, dropping empty entries.
func EnvList(key string) ([]string, bool) {
	value, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}

// ApplyEnv overrides cfg with SCRAPER_* environment variables.
func ApplyEnv(cfg *Config) error {
	if value, ok := EnvString("SCRAPER_BASE_URL"); ok {
		cfg.BaseURL = value
	}
	if value, ok := EnvString("SCRAPER_CATEGORY"); ok {
		cfg.CategoryID = value
	}
	if value, ok, err := EnvInt("SCRAPER_PAGE_SIZE"); err != nil {
		return err
	} else if ok {
		cfg.PageSize = value
	}
	if value, ok := EnvList("SCRAPER_FILTERS"); ok {
		cfg.FilterParams = value
	}
	if value, ok := EnvString("SCRAPER_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := EnvString("SCRAPER_APP_ID"); ok {
		cfg.AppID = value
	}
	if value, ok := EnvString("SCRAPER_USER_AGENT"); ok {
		cfg.UserAgent = value
	}
	if value, ok := EnvString("SCRAPER_REFERER"); ok {
		cfg.Referer = value
	}
	if value, ok := EnvString("SCRAPER_SESSION_FILE"); ok {
		cfg.SessionFile = value
	}
	if value, ok := EnvString("SCRAPER_POSTGRES_DSN"); ok {
		cfg.PostgresDSN = value
	}
	if value, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	return nil
}

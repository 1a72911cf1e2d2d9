package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Session is the browser state replayed on every BFF request.
type Session struct {
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
}

// LoadSession reads a session file and merges it over cfg's headers and
// cookies. Values from the file win.
func LoadSession(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode session file %q: %w", path, err)
	}

	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(s.Headers))
	}
	for k, v := range s.Headers {
		cfg.Headers[k] = v
	}
	if cfg.Cookies == nil {
		cfg.Cookies = make(map[string]string, len(s.Cookies))
	}
	for k, v := range s.Cookies {
		cfg.Cookies[k] = v
	}
	return nil
}

// internal/config/client.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ClientConfig is the commitctl configuration file. Token is empty while the user is
// signed out.
type ClientConfig struct {
	APIURL   string `toml:"api_url"`
	Token    string `toml:"token,omitempty"`
	IntentDB string `toml:"intent_db"`
	Timeout  string `toml:"timeout"`
}

// DefaultClientConfig returns the configuration used when no file exists yet.
func DefaultClientConfig(dir string) ClientConfig {
	return ClientConfig{
		APIURL:   "http://localhost:8080",
		IntentDB: filepath.Join(dir, "intent.db"),
		Timeout:  "15s",
	}
}

// DefaultClientDir returns ~/.commitctl.
func DefaultClientDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".commitctl"), nil
}

// LoadClientConfig reads path, falling back to defaults for a missing file or missing keys.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig(filepath.Dir(path))
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return ClientConfig{}, fmt.Errorf("read client config %s: %w", path, err)
	}
	if _, err := cfg.RequestTimeout(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// SaveClientConfig writes cfg to path with owner-only permissions, since it holds the token.
func SaveClientConfig(path string, cfg ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open client config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("write client config: %w", err)
	}
	return f.Close()
}

// Authenticated reports whether a session token is stored.
func (c ClientConfig) Authenticated() bool {
	return c.Token != ""
}

// RequestTimeout parses Timeout.
func (c ClientConfig) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q in client config", c.Timeout)
	}
	return d, nil
}

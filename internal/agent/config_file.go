package agent

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type fileConfig struct {
	APIURL         string `toml:"api_url"`
	MaxConns       int    `toml:"max_conns"`
	SendBuf        int    `toml:"send_buf_bytes"`
	ReportInterval string `toml:"report_interval"`
	HTTPTimeout    string `toml:"http_timeout"`
	DialTimeout    string `toml:"dial_timeout"`
	StateDir       string `toml:"state_dir"`
	Once           *bool  `toml:"once"`
}

// loadFileConfig reads and parses a TOML config file.
func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// defaultConfigPath returns the default configuration file path.
// Returns ~/.pxflood/config.toml if the user home directory is accessible.
func defaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pxflood", "config.toml")
	}
	return ""
}

// applyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func applyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("api-url", fc.APIURL, &cfg.APIURL)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	s.setInt("max-conns", fc.MaxConns, &cfg.MaxConns)
	s.setInt("send-buf", fc.SendBuf, &cfg.SendBuf)

	if err := s.setDuration("interval", fc.ReportInterval, &cfg.ReportInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// fileExists checks if a file exists at the given path.
func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Exported functions for use from main package without exposing internal
// helpers.

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (fileConfig, error) {
	return loadFileConfig(path)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return defaultConfigPath()
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	return applyFileConfig(cfg, fc, changed)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	return fileExists(p)
}

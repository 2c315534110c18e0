package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API         APIConfig         `toml:"api"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
}

// APIConfig points at the first-party backend.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// The endpoint fields default to the public Spotify hosts when left empty.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	RedirectURI       string   `toml:"redirect_uri"`
	Scopes            []string `toml:"scopes"`
	AuthURL           string   `toml:"auth_url"`
	TokenURL          string   `toml:"token_url"`
	APIURL            string   `toml:"api_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SessionConfig tunes session orchestration.
type SessionConfig struct {
	// MinDelay is the minimum duration of profile update and password flows, e.g. "500ms".
	MinDelay string `toml:"min_delay"`
	// CallbackTimeout bounds the wait for the OAuth redirect, e.g. "2m".
	CallbackTimeout string `toml:"callback_timeout"`
}

// MinDelayDuration parses [SessionConfig.MinDelay], falling back to 500ms.
func (s SessionConfig) MinDelayDuration() time.Duration {
	return parseDuration(s.MinDelay, 500*time.Millisecond)
}

// CallbackTimeoutDuration parses [SessionConfig.CallbackTimeout], falling back to two minutes.
func (s SessionConfig) CallbackTimeoutDuration() time.Duration {
	return parseDuration(s.CallbackTimeout, 2*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Validate reports missing values that every command depends on.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url must be set", ErrInvalidConfig)
	}
	if uri := c.Credentials.Spotify.RedirectURI; uri != "" {
		port, err := redirectPort(uri)
		if err != nil {
			return fmt.Errorf("%w: credentials.spotify.redirect_uri: %v", ErrInvalidConfig, err)
		}
		// The callback server listens on server.port, so the provider must redirect there.
		if port != c.Server.Port {
			return fmt.Errorf("%w: credentials.spotify.redirect_uri port %d does not match server.port %d",
				ErrInvalidConfig, port, c.Server.Port)
		}
	}
	return nil
}

// redirectPort returns the port of an http(s) redirect URI, falling back to the scheme default.
func redirectPort(uri string) (int, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, err
	}
	if p := u.Port(); p != "" {
		return strconv.Atoi(p)
	}
	switch u.Scheme {
	case "http":
		return 80, nil
	case "https":
		return 443, nil
	default:
		return 0, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// HasSpotifyCredentials reports whether client id and secret are both present.
func (s SpotifyConfig) HasSpotifyCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the catalog connection settings.
const (
	EnvCatalogURL    = "IMMICH_URL"
	EnvCatalogAPIKey = "IMMICH_API_KEY"
)

// Config represents the main configuration for photosync.
type Config struct {
	DeviceID string         `toml:"device_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	LogLevel string         `toml:"log_level"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Library  LibraryConfig  `toml:"library"`
	Database DatabaseConfig `toml:"database"`
}

// CatalogConfig describes the remote photo catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type string `toml:"type"` // "immich" or "memory"

	// Immich-specific fields (only used when Type == "immich")
	URL        string `toml:"url,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	APIKeyFile string `toml:"api_key_file,omitempty"` // age-encrypted key, see `config set-key`

	RetryDelay     Duration `toml:"retry_delay"`
	MaxRetries     uint64   `toml:"max_retries"` // 0 retries transient failures forever
	RequestTimeout Duration `toml:"request_timeout"`
}

// LibraryConfig describes the local photo library.
type LibraryConfig struct {
	Root          string   `toml:"root,omitempty"`
	AlbumPattern  string   `toml:"album_pattern"`
	Ignore        []string `toml:"ignore"`
	UploadWorkers int      `toml:"upload_workers"`
}

// DatabaseConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Catalog: CatalogConfig{
			Type:           "immich",
			URL:            "http://localhost:2283",
			APIKeyFile:     filepath.Join(baseDir, "keys", "api_key.age"),
			RetryDelay:     Duration{10 * time.Second},
			MaxRetries:     60,
			RequestTimeout: Duration{10 * time.Minute},
		},
		Library: LibraryConfig{
			AlbumPattern:  `^\d{4}`,
			Ignore:        []string{"*.aae", "*.xmp", "Thumbs.db"},
			UploadWorkers: 1,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// ApplyEnv overrides the catalog URL and API key from the environment.
// getenv is normally os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvCatalogURL); v != "" {
		cfg.Catalog.URL = v
	}
	if v := getenv(EnvCatalogAPIKey); v != "" {
		cfg.Catalog.APIKey = v
	}
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Catalog.Type {
	case "immich", "":
		if c.Catalog.URL == "" {
			return fmt.Errorf("catalog url is required (set [catalog] url or %s)", EnvCatalogURL)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog type: %q", c.Catalog.Type)
	}

	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
		}
	}

	if c.Library.AlbumPattern != "" {
		if _, err := regexp.Compile(c.Library.AlbumPattern); err != nil {
			return fmt.Errorf("invalid album_pattern: %w", err)
		}
	}
	if c.Library.UploadWorkers < 0 {
		return fmt.Errorf("upload_workers must not be negative, got %d", c.Library.UploadWorkers)
	}
	if c.Catalog.RetryDelay.Duration < 0 {
		return fmt.Errorf("retry_delay must not be negative")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold an API key, so it is created owner-only.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites the config file at path.
func Save(path string, cfg *Config) error {
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

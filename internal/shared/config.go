package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const DefaultRedirectURI = "http://127.0.0.1:8888/callback"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify   SpotifyConfig   `toml:"spotify"`
	Playlist  PlaylistConfig  `toml:"playlist"`
	Download  DownloadConfig  `toml:"download"`
	Assistant AssistantConfig `toml:"assistant"`
	Database  DatabaseConfig  `toml:"database"`
	CarAudio  CarAudioConfig  `toml:"car_audio"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Auth         string `toml:"auth"`
	TokenPath    string `toml:"token_path"`
}

// PlaylistConfig names the playlist to download.
type PlaylistConfig struct {
	ID string `toml:"id"`
}

// DownloadConfig controls where and how tracks are fetched.
type DownloadConfig struct {
	Dir          string `toml:"dir"`
	Tracking     string `toml:"tracking"`
	Format       string `toml:"format"`
	YtdlpPath    string `toml:"ytdlp_path"`
	Transcode    bool   `toml:"transcode"`
	AudioFormat  string `toml:"audio_format"`
	AudioQuality string `toml:"audio_quality"`
	Tag          bool   `toml:"tag"`
}

// AssistantConfig points at the Ollama server used for text cleaning.
type AssistantConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Model   string `toml:"model"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CarAudioConfig controls the repackaging step.
type CarAudioConfig struct {
	OutputDir string `toml:"output_dir"`
	Genre     string `toml:"genre"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
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

// LoadEnvFile loads variables from a .env file into the process environment.
//
// A missing file is not an error. Variables already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides config values with the environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set(&c.Spotify.ClientID, "SPOTIPY_CLIENT_ID")
	set(&c.Spotify.ClientSecret, "SPOTIPY_CLIENT_SECRET")
	set(&c.Spotify.RedirectURI, "SPOTIPY_REDIRECT_URI")
	set(&c.Playlist.ID, "PLAYLIST_ID")
	set(&c.Assistant.URL, "OLLAMA_URL")
	set(&c.Assistant.Model, "OLLAMA_MODEL")

	if c.Spotify.RedirectURI == "" {
		c.Spotify.RedirectURI = DefaultRedirectURI
	}
}

// Validate reports the missing keys needed for a download run.
func (c *Config) Validate() error {
	var missing []string
	if c.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIPY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIPY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.Playlist.ID == "" {
		return fmt.Errorf("%w: PLAYLIST_ID", ErrMissingConfig)
	}

	switch c.Download.Tracking {
	case "", "json", "bolt":
	default:
		return fmt.Errorf("%w: download.tracking must be json or bolt, got %q", ErrInvalidConfig, c.Download.Tracking)
	}

	switch c.Spotify.Auth {
	case "", "user", "client":
	default:
		return fmt.Errorf("%w: spotify.auth must be user or client, got %q", ErrInvalidConfig, c.Spotify.Auth)
	}

	return nil
}

package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Export      ExportConfig      `toml:"export"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the tokens obtained during authorization.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
}

// ExportConfig contains settings for export runs.
type ExportConfig struct {
	OutputDir   string  `toml:"output_dir"`
	RateLimit   float64 `toml:"rate_limit"`
	HistoryPath string  `toml:"history_path"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Map returns the Spotify credentials as a map for service construction.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// Token builds an [oauth2.Token] from the stored token fields.
//
// Returns nil when no access token has been stored.
func (c SpotifyConfig) Token() *oauth2.Token {
	if c.AccessToken == "" {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}

	if c.TokenExpiry != "" {
		if expiry, err := time.Parse(time.RFC3339, c.TokenExpiry); err == nil {
			token.Expiry = expiry
		}
	}

	return token
}

// Update stores the fields of an [oauth2.Token] back into the config.
func (c *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}

	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		c.TokenExpiry = token.Expiry.Format(time.RFC3339)
	}

	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes the configuration to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadEnv reads a .env file from the working directory if one exists.
//
// Missing files are not an error; explicit environment variables always win.
func LoadEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overlays Spotify credentials from the environment onto the config.
//
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REDIRECT_URI take
// precedence; the lowercase names client_id, client_secret and redirect_uri
// are accepted as a fallback.
func ApplyEnv(config *Config) {
	if v := envOr("SPOTIFY_CLIENT_ID", "client_id"); v != "" {
		config.Credentials.Spotify.ClientID = v
	}
	if v := envOr("SPOTIFY_CLIENT_SECRET", "client_secret"); v != "" {
		config.Credentials.Spotify.ClientSecret = v
	}
	if v := envOr("SPOTIFY_REDIRECT_URI", "redirect_uri"); v != "" {
		config.Credentials.Spotify.RedirectURI = v
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return os.Getenv(fallback)
}

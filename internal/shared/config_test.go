package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if !config.Sync.ReplaceExisting {
			t.Error("expected replace_existing to default to true")
		}

		if config.Sync.Workers != 1 {
			t.Errorf("expected 1 sync worker, got %d", config.Sync.Workers)
		}

		if config.Credentials.Tidal.ListenURL != "https://listen.tidal.com/v1" {
			t.Errorf("unexpected tidal listen URL %s", config.Credentials.Tidal.ListenURL)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Spotify.Token() != nil {
			t.Error("expected no stored token in default config")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Server.Host != DefaultConfig().Server.Host {
			t.Errorf("created config server host doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
username = "me"
client_id = "test_client_id"
client_secret = "test_secret"
recommendation_id = "37i9dQZEVXcDiscover"

[credentials.tidal]
username = "tidal_user"
password = "hunter2"

[sync]
workers = 4
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Credentials.Spotify.RecommendationID != "37i9dQZEVXcDiscover" {
			t.Errorf("unexpected recommendation id %s", config.Credentials.Spotify.RecommendationID)
		}

		if config.Sync.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Sync.Workers)
		}

		if config.Credentials.Tidal.APIURL != "https://api.tidal.com/v1" {
			t.Errorf("expected default tidal api url to survive partial config, got %s", config.Credentials.Tidal.APIURL)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig Round Trip Token", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       expiry,
		}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil {
			t.Fatal("expected token after round trip")
		}
		if token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
	})
}

func TestSpotifyConfigUpdate(t *testing.T) {
	t.Run("keeps refresh token when missing", func(t *testing.T) {
		sc := SpotifyConfig{RefreshToken: "old"}
		if err := sc.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if sc.RefreshToken != "old" {
			t.Errorf("expected refresh token to be kept, got %s", sc.RefreshToken)
		}
	})

	t.Run("rejects empty token", func(t *testing.T) {
		sc := SpotifyConfig{}
		if err := sc.Update(&oauth2.Token{}); !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	if err := (SpotifyConfig{ClientID: "id"}).Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials for missing secret, got %v", err)
	}
	if err := (TidalConfig{Username: "u", Password: "p"}).Validate(); err != nil {
		t.Errorf("expected valid tidal config, got %v", err)
	}
}

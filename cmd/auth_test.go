package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

func newAuthTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var body map[string]any
		switch {
		case r.Form.Get("grant_type") == "refresh_token" && r.Form.Get("refresh_token") == "ref":
			body = map[string]any{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}
		case r.Form.Get("grant_type") == "authorization_code" && r.Form.Get("code") == "good-code":
			body = map[string]any{"access_token": "browser", "refresh_token": "browser-ref", "token_type": "Bearer", "expires_in": 3600}
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

type authFixture struct {
	runner *Runner
	auth   *configAuthorizer
	oauth  *oauth2.Config
	path   string
}

func newAuthFixture(t *testing.T, spotify shared.SpotifyConfig) *authFixture {
	t.Helper()
	ts := newAuthTokenServer(t)
	port := freePort(t)

	config := shared.DefaultConfig()
	spotify.ClientID = "id"
	spotify.ClientSecret = "secret"
	config.Credentials.Spotify = spotify
	config.Server.Host = "127.0.0.1"
	config.Server.Port = port

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := shared.SaveConfig(path, config); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: path,
		HTTPClient: ts.Client(),
		Logger:     shared.NewLogger(&bytes.Buffer{}),
		Output:     &bytes.Buffer{},
	})

	auth := runner.authorizer()
	auth.openBrowser = func(string) error {
		t.Error("browser should not be opened")
		return nil
	}

	return &authFixture{
		runner: runner,
		auth:   auth,
		path:   path,
		oauth: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  fmt.Sprintf("http://127.0.0.1:%d/callback", port),
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://accounts.example.com/authorize",
				TokenURL:  ts.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

func TestConfigAuthorizer(t *testing.T) {
	t.Run("Valid Saved Token", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{
			AccessToken:  "saved",
			RefreshToken: "ref",
			TokenExpiry:  time.Now().Add(time.Hour),
		})

		token, err := f.auth.Authorize(context.Background(), f.oauth)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "saved" {
			t.Errorf("expected saved token, got %q", token.AccessToken)
		}
	})

	t.Run("Expired Token Is Refreshed And Saved", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{
			AccessToken:  "old",
			RefreshToken: "ref",
			TokenExpiry:  time.Now().Add(-time.Hour),
		})

		token, err := f.auth.Authorize(context.Background(), f.oauth)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "fresh" {
			t.Errorf("expected refreshed token, got %q", token.AccessToken)
		}

		saved, err := shared.LoadConfig(f.path)
		if err != nil {
			t.Fatal(err)
		}
		if saved.Credentials.Spotify.AccessToken != "fresh" {
			t.Errorf("expected refreshed token on disk, got %q", saved.Credentials.Spotify.AccessToken)
		}
		if saved.Credentials.Spotify.RefreshToken != "ref" {
			t.Errorf("expected refresh token to be kept, got %q", saved.Credentials.Spotify.RefreshToken)
		}
	})

	t.Run("Reconnect Forces Refresh", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{
			AccessToken:  "saved",
			RefreshToken: "ref",
			TokenExpiry:  time.Now().Add(time.Hour),
		})

		if _, err := f.auth.Authorize(context.Background(), f.oauth); err != nil {
			t.Fatal(err)
		}
		token, err := f.auth.Authorize(context.Background(), f.oauth)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "fresh" {
			t.Errorf("expected refreshed token on reconnect, got %q", token.AccessToken)
		}
	})

	t.Run("Browser Flow", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{})

		opened := false
		f.auth.openBrowser = func(authURL string) error {
			opened = true
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			callback := f.oauth.RedirectURL + "?code=good-code&state=" + url.QueryEscape(u.Query().Get("state"))
			resp, err := http.Get(callback)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected callback status 200, got %d", resp.StatusCode)
			}
			return nil
		}

		token, err := f.auth.Authorize(context.Background(), f.oauth)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !opened {
			t.Error("expected browser to be opened")
		}
		if token.AccessToken != "browser" {
			t.Errorf("expected browser token, got %q", token.AccessToken)
		}

		saved, err := shared.LoadConfig(f.path)
		if err != nil {
			t.Fatal(err)
		}
		if saved.Credentials.Spotify.RefreshToken != "browser-ref" {
			t.Errorf("expected browser refresh token on disk, got %q", saved.Credentials.Spotify.RefreshToken)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{})
		f.auth.timeout = 50 * time.Millisecond
		f.auth.openBrowser = func(string) error { return errors.New("no browser") }

		_, err := f.auth.Authorize(context.Background(), f.oauth)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}

		out := f.runner.output.(*bytes.Buffer).String()
		if !strings.Contains(out, "Please open this URL") {
			t.Errorf("expected manual URL instructions, got %q", out)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		f := newAuthFixture(t, shared.SpotifyConfig{})
		ctx, cancel := context.WithCancel(context.Background())
		f.auth.openBrowser = func(string) error {
			cancel()
			return nil
		}

		if _, err := f.auth.Authorize(ctx, f.oauth); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

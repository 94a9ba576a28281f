package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/tidx/internal/server"
	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// configAuthorizer implements [services.Authorizer] with the tokens saved in the config file.
//
// The first connect reuses or refreshes the saved token. Later connects mean the session was rejected,
// so the saved access token is skipped. The browser flow runs when no usable token remains.
type configAuthorizer struct {
	r           *Runner
	connects    int
	openBrowser func(url string) error
	timeout     time.Duration
}

func (r *Runner) authorizer() *configAuthorizer {
	if r.auth == nil {
		r.auth = &configAuthorizer{r: r, openBrowser: shared.OpenBrowser, timeout: authTimeout}
	}
	return r.auth
}

// Authorize returns a token for config, persisting any token it had to obtain.
func (a *configAuthorizer) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	a.connects++

	if token := a.r.config.Credentials.Spotify.Token(); token != nil {
		if a.connects > 1 {
			token.AccessToken = ""
		}
		if token.Valid() {
			return token, nil
		}
		if token.RefreshToken != "" {
			refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, a.r.httpClient)
			fresh, err := config.TokenSource(refreshCtx, token).Token()
			if err == nil {
				a.r.logger.Debug("refreshed spotify token", "expiry", fresh.Expiry)
				if err := a.r.saveTokens(fresh); err != nil {
					a.r.logger.Warn("failed to save refreshed token", "error", err)
				}
				return fresh, nil
			}
			a.r.logger.Warn("token refresh failed, starting authorization", "error", err)
		}
	}

	token, err := a.browserAuth(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := a.r.saveTokens(token); err != nil {
		a.r.logger.Warn("failed to save token", "error", err)
	}
	return token, nil
}

// browserAuth executes the OAuth2 authorization flow with a local HTTP server
func (a *configAuthorizer) browserAuth(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	r := a.r

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := config.AuthCodeURL(state)
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	oauthHandler := server.NewOAuthHandler(exchangeCtx, config, state)
	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(oauthHandler)

	serverAddr := r.config.Server.Addr()
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := a.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%v timeout)...\n", a.timeout)

	timeout := time.NewTimer(a.timeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, a.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// saveTokens stores token in the Spotify credentials and writes the config file.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Package server provides HTTP routing, middleware, and OAuth handling for the CLI.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// # Current Usage
//
// When Spotify needs a fresh login, the CLI starts a temporary HTTP server on the configured host and port
// (127.0.0.1:3000 by default), opens the authorization URL in a browser, handles the callback,
// and shuts down after receiving the token.
package server

// Package services implements the two ends of a playlist migration: a read-only [Source] and a writable [Destination].
//
// # Spotify
//
// [SpotifyClient] authenticates through the OAuth2 authorization code flow. Obtaining the token is delegated to an
// [Authorizer] (the CLI opens a browser and serves the callback locally); the client only owns the resulting session.
//
// List endpoints are paginated. Every read drains all pages by following the absolute "next" URL until it is null,
// so callers always get complete lists.
//
// When a read fails with a Spotify API error or a failed token refresh, the client reconnects once and re-runs the
// whole operation. A second failure surfaces as [shared.ErrSessionExpired] wrapping the cause.
//
// # TIDAL
//
// [TidalClient] logs in with username and password and keeps the session ID, user ID and country code.
// Mutations are not retried.
//
// Track resolution searches by title only and takes the first candidate whose primary artist equals the requested
// artist, ignoring case. A track that is not found is logged and skipped; it is never an error.
//
// # Errors
//
//   - [shared.ErrAuthFailed] : login rejected or empty token
//   - [shared.ErrMissingConfig] : no recommendation playlist configured
//   - [shared.ErrSessionExpired] : Spotify retry exhausted, or TIDAL answered 401
//   - [shared.ErrAPIRequest] : any non-2xx response ([SpotifyError], [TidalError])
package services

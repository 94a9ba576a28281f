// Spotify Web API implementation of [Source]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL     = "https://accounts.spotify.com/authorize"
	spotifyTokenURL    = "https://accounts.spotify.com/api/token"
	spotifyBaseURL     = "https://api.spotify.com/v1"
	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// spotifyScopes is the fixed scope requested on every login.
// The modify scopes are requested but no operation uses them yet.
var spotifyScopes = []string{
	"user-library-read",
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// Owner is the user a playlist belongs to.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a simplified playlist object as returned by list and lookup endpoints.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      *bool             `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for local files and tracks no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyError is returned for every non-2xx Spotify API response.
//
// The client treats it as a sign the session may have expired.
type SpotifyError struct {
	StatusCode int
	Message    string
}

func (e *SpotifyError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
}

func (e *SpotifyError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Authorizer obtains a token through the authorization code flow.
//
// It is called once when the client is created and again on every reconnect.
type Authorizer interface {
	Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

// AuthorizerFunc adapts a function to [Authorizer].
type AuthorizerFunc func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	return f(ctx, config)
}

// NewSpotifyConfig builds the [oauth2.Config] for the Spotify authorization code flow with the fixed scope.
func NewSpotifyConfig(clientID, clientSecret, redirectURI string) (*oauth2.Config, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}, nil
}

// SpotifyOpts configures a [SpotifyClient].
type SpotifyOpts struct {
	Username         string
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	RecommendationID string
	Authorizer       Authorizer
	BaseURL          string       // defaults to the public Web API
	HTTPClient       *http.Client // base client for API calls and token refreshes
	Logger           *log.Logger
}

// spotifySession is one login: the token and the client that sends it.
type spotifySession struct {
	token  *oauth2.Token
	client *http.Client
}

// SpotifyClient reads playlists and tracks from Spotify.
//
// The session is replaced wholesale when a read fails and the client reconnects.
type SpotifyClient struct {
	username         string
	recommendationID string
	config           *oauth2.Config
	authorizer       Authorizer
	baseURL          string
	httpClient       *http.Client
	logger           *log.Logger
	session          *spotifySession
}

// NewSpotifyClient creates a Spotify client and logs in.
func NewSpotifyClient(ctx context.Context, opts SpotifyOpts) (*SpotifyClient, error) {
	config, err := NewSpotifyConfig(opts.ClientID, opts.ClientSecret, opts.RedirectURI)
	if err != nil {
		return nil, err
	}
	if opts.Authorizer == nil {
		return nil, fmt.Errorf("%w: no spotify authorizer configured", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &SpotifyClient{
		username:         opts.Username,
		recommendationID: opts.RecommendationID,
		config:           config,
		authorizer:       opts.Authorizer,
		baseURL:          strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient:       opts.HTTPClient,
		logger:           shared.WithLogger(opts.Logger, "service", "spotify"),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SpotifyClient) Name() string {
	return "Spotify"
}

// connect runs the authorization flow and installs a fresh session.
func (s *SpotifyClient) connect(ctx context.Context) error {
	token, err := s.authorizer.Authorize(ctx, s.config)
	if err != nil {
		return fmt.Errorf("%w: could not connect to Spotify: %w", shared.ErrAuthFailed, err)
	}
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: could not connect to Spotify: empty token", shared.ErrAuthFailed)
	}

	// The session outlives the call that created it, so token refreshes must not inherit its cancellation.
	sessionCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient)
	s.session = &spotifySession{
		token:  token,
		client: s.config.Client(sessionCtx, token),
	}
	return nil
}

// withReconnect runs op, and if it fails with a session error, reconnects once and runs op again from scratch.
//
// A second failure is reported as [shared.ErrSessionExpired] wrapping the cause.
func (s *SpotifyClient) withReconnect(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isSessionError(err) {
		return err
	}

	s.logger.Debug("refreshing token", "cause", err)
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrSessionExpired, err)
	}

	if err := op(); err != nil {
		return fmt.Errorf("%w: retry after reconnect failed: %w", shared.ErrSessionExpired, err)
	}
	return nil
}

// isSessionError reports whether err came from the Spotify API or a failed token refresh.
func isSessionError(err error) bool {
	var apiErr *SpotifyError
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &apiErr) || errors.As(err, &retrieveErr)
}

// doRequest performs an authenticated GET. endpoint is either a path below the base URL or an absolute next-page URL.
func (s *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.session == nil {
		return fmt.Errorf("%w: not connected", shared.ErrAuthFailed)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.session.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &SpotifyError{StatusCode: resp.StatusCode}
		var body spotifyErrorBody
		if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// drain fetches endpoint and every following page, concatenating items in order.
func drain[T any](ctx context.Context, s *SpotifyClient, endpoint string) ([]T, error) {
	var items []T
	next := &endpoint

	for next != nil && *next != "" {
		var p page[T]
		if err := s.doRequest(ctx, *next, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Items...)
		next = p.Next
	}

	return items, nil
}

// OwnPlaylists retrieves all playlists of the user.
//
// Curated playlists such as Discover Weekly belong to Spotify and are not included;
// see [SpotifyClient.RecommendationPlaylist].
func (s *SpotifyClient) OwnPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist

	err := s.withReconnect(ctx, func() error {
		items, err := drain[SpotifyPlaylist](ctx, s, "/me/playlists?limit=50")
		if err != nil {
			return err
		}

		playlists = make([]Playlist, 0, len(items))
		for _, sp := range items {
			if s.username != "" && sp.Owner.ID != s.username {
				continue
			}
			playlists = append(playlists, sp.toPlaylist())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return playlists, nil
}

// RecommendationPlaylist retrieves the configured recommendation playlist (e.g. Discover Weekly).
//
// Its ID has to be configured up front because the playlist is not enumerable.
func (s *SpotifyClient) RecommendationPlaylist(ctx context.Context) (*Playlist, error) {
	if s.recommendationID == "" {
		return nil, fmt.Errorf("%w: no recommendation playlist ID set", shared.ErrMissingConfig)
	}

	var sp SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,public,owner(id,display_name),tracks(total)", url.PathEscape(s.recommendationID))

	err := s.withReconnect(ctx, func() error {
		return s.doRequest(ctx, endpoint, &sp)
	})
	if err != nil {
		return nil, err
	}

	playlist := sp.toPlaylist()
	return &playlist, nil
}

// TracksFromPlaylist returns all tracks of playlist in playlist order.
func (s *SpotifyClient) TracksFromPlaylist(ctx context.Context, playlist Playlist) ([]Track, error) {
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	var tracks []Track
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100", url.PathEscape(playlist.ID))

	err := s.withReconnect(ctx, func() error {
		items, err := drain[SpotifyPlaylistTrack](ctx, s, endpoint)
		if err != nil {
			return err
		}

		tracks = make([]Track, 0, len(items))
		for _, item := range items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, item.Track.toTrack())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tracks, nil
}

func (sp SpotifyPlaylist) toPlaylist() Playlist {
	return Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		OwnerID:     sp.Owner.ID,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public != nil && *sp.Public,
	}
}

func (st SpotifyTrack) toTrack() Track {
	track := Track{
		ID:       st.ID,
		Title:    st.Name,
		Album:    st.Album.Name,
		Duration: st.DurationMS / 1000,
		ISRC:     st.ExternalIDs.ISRC,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	return track
}

// TIDAL implementation of [Destination]
//
// Reads (login, search, user playlists) go through the public v1 API at api.tidal.com.
// Mutations (create, delete, append) use the listen.tidal.com endpoints the web player calls.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/shared"
)

const (
	tidalAPIURL    = "https://api.tidal.com/v1"
	tidalListenURL = "https://listen.tidal.com/v1"
	tidalAPIToken  = "kgsOOmYk3zShYrNP"
	searchLimit    = 50
)

// TidalArtist represents a TIDAL artist.
type TidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TidalAlbum represents a TIDAL album.
type TidalAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// TidalTrack represents a track in TIDAL search results.
type TidalTrack struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	ISRC     string        `json:"isrc"`
	Artist   TidalArtist   `json:"artist"`
	Artists  []TidalArtist `json:"artists"`
	Album    TidalAlbum    `json:"album"`
}

// TidalPlaylist represents a TIDAL playlist.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
	PublicPlaylist bool   `json:"publicPlaylist"`
	Creator        struct {
		ID int64 `json:"id"`
	} `json:"creator"`
}

type tidalLoginResponse struct {
	UserID      int64  `json:"userId"`
	SessionID   string `json:"sessionId"`
	CountryCode string `json:"countryCode"`
}

type tidalSearchResponse struct {
	Tracks struct {
		Items []TidalTrack `json:"items"`
	} `json:"tracks"`
}

type tidalPlaylistsResponse struct {
	Items []TidalPlaylist `json:"items"`
	Total int             `json:"totalNumberOfItems"`
}

type tidalErrorBody struct {
	Status      int    `json:"status"`
	SubStatus   int    `json:"subStatus"`
	UserMessage string `json:"userMessage"`
}

// TidalError is returned for every non-2xx TIDAL response.
//
// A 401 also matches [shared.ErrSessionExpired].
type TidalError struct {
	StatusCode int
	Message    string
}

func (e *TidalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tidal API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("tidal API error: status %d", e.StatusCode)
}

func (e *TidalError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized {
		return []error{shared.ErrAPIRequest, shared.ErrSessionExpired}
	}
	return []error{shared.ErrAPIRequest}
}

// TidalOpts configures a [TidalClient].
type TidalOpts struct {
	Username    string
	Password    string
	APIToken    string // X-Tidal-Token sent on login
	APIURL      string
	ListenURL   string
	Description string // set on every created playlist
	HTTPClient  *http.Client
	Logger      *log.Logger
}

type tidalSession struct {
	SessionID   string
	UserID      string
	CountryCode string
}

// TidalClient creates and fills playlists on TIDAL.
type TidalClient struct {
	apiToken    string
	apiURL      string
	listenURL   string
	description string
	httpClient  *http.Client
	logger      *log.Logger
	session     *tidalSession

	mu      sync.Mutex
	cursors map[string]int // next toIndex per playlist
}

// NewTidalClient creates a TIDAL client and logs in with username and password.
func NewTidalClient(ctx context.Context, opts TidalOpts) (*TidalClient, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("%w: tidal username and password are required", shared.ErrMissingCredentials)
	}
	if opts.APIToken == "" {
		opts.APIToken = tidalAPIToken
	}
	if opts.APIURL == "" {
		opts.APIURL = tidalAPIURL
	}
	if opts.ListenURL == "" {
		opts.ListenURL = tidalListenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	t := &TidalClient{
		apiToken:    opts.APIToken,
		apiURL:      strings.TrimSuffix(opts.APIURL, "/"),
		listenURL:   strings.TrimSuffix(opts.ListenURL, "/"),
		description: opts.Description,
		httpClient:  opts.HTTPClient,
		logger:      shared.WithLogger(opts.Logger, "service", "tidal"),
		cursors:     make(map[string]int),
	}

	if err := t.connect(ctx, opts.Username, opts.Password); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TidalClient) Name() string {
	return "TIDAL"
}

func (t *TidalClient) connect(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("clientUniqueKey", strings.ReplaceAll(shared.GenerateID(), "-", "")[:16])

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/login/username", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Tidal-Token", t.apiToken)

	var login tidalLoginResponse
	if err := t.send(req, &login); err != nil {
		return fmt.Errorf("%w: tidal login rejected: %w", shared.ErrAuthFailed, err)
	}
	if login.SessionID == "" || login.UserID == 0 {
		return fmt.Errorf("%w: tidal login returned no session", shared.ErrAuthFailed)
	}

	t.session = &tidalSession{
		SessionID:   login.SessionID,
		UserID:      strconv.FormatInt(login.UserID, 10),
		CountryCode: login.CountryCode,
	}
	t.logger.Debug("logged in", "user", t.session.UserID, "country", t.session.CountryCode)
	return nil
}

// send executes req and decodes a 2xx JSON body into result when result is non-nil.
func (t *TidalClient) send(req *http.Request, result any) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &TidalError{StatusCode: resp.StatusCode}
		var body tidalErrorBody
		if data, err := io.ReadAll(resp.Body); err == nil && json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.UserMessage
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

// get performs a session-authenticated GET against the v1 API.
func (t *TidalClient) get(ctx context.Context, path string, params url.Values, result any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("sessionId", t.session.SessionID)
	params.Set("countryCode", t.session.CountryCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-tidal-sessionid", t.session.SessionID)

	return t.send(req, result)
}

// mutate sends a form-encoded request to the listen endpoints.
func (t *TidalClient) mutate(ctx context.Context, method, path string, form url.Values, headers map[string]string, result any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, t.listenURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("x-tidal-sessionid", t.session.SessionID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return t.send(req, result)
}

// OwnPlaylists returns the playlists of the logged in user.
func (t *TidalClient) OwnPlaylists(ctx context.Context) ([]Playlist, error) {
	var resp tidalPlaylistsResponse
	params := url.Values{}
	params.Set("limit", "9999")

	if err := t.get(ctx, "/users/"+t.session.UserID+"/playlists", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list tidal playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(resp.Items))
	for _, tp := range resp.Items {
		playlists = append(playlists, tp.toPlaylist())
	}
	return playlists, nil
}

// CreatePlaylist creates an empty playlist and returns its ID.
//
// With deleteExisting, every own playlist with the same name is deleted first.
func (t *TidalClient) CreatePlaylist(ctx context.Context, name string, deleteExisting bool) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}

	if deleteExisting {
		if err := t.DeleteExistingPlaylist(ctx, name); err != nil {
			return "", err
		}
	}

	form := url.Values{}
	form.Set("title", name)
	form.Set("description", t.description)

	var created TidalPlaylist
	if err := t.mutate(ctx, http.MethodPost, "/users/"+t.session.UserID+"/playlists", form, nil, &created); err != nil {
		return "", fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	if created.UUID == "" {
		return "", fmt.Errorf("%w: create playlist returned no uuid", shared.ErrAPIRequest)
	}

	t.mu.Lock()
	t.cursors[created.UUID] = 0
	t.mu.Unlock()

	t.logger.Debug("Created playlist", "name", name, "id", created.UUID)
	return created.UUID, nil
}

// DeleteExistingPlaylist deletes every own playlist whose name equals name exactly.
func (t *TidalClient) DeleteExistingPlaylist(ctx context.Context, name string) error {
	playlists, err := t.OwnPlaylists(ctx)
	if err != nil {
		return err
	}

	for _, p := range playlists {
		if p.Name != name {
			continue
		}
		if err := t.mutate(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(p.ID), nil, nil, nil); err != nil {
			return fmt.Errorf("failed to delete playlist %s: %w", p.ID, err)
		}

		t.mu.Lock()
		delete(t.cursors, p.ID)
		t.mu.Unlock()

		t.logger.Debug("Deleted playlist", "name", name, "id", p.ID)
	}
	return nil
}

// SearchTrack searches for title and returns the first result whose primary artist equals artist, ignoring case.
//
// When nothing matches, the returned [Match] has an empty TrackID and err is nil.
func (t *TidalClient) SearchTrack(ctx context.Context, title, artist string) (Match, error) {
	match := Match{Source: Track{Title: title, Artist: artist}}

	params := url.Values{}
	params.Set("query", title)
	params.Set("types", "TRACKS")
	params.Set("limit", strconv.Itoa(searchLimit))

	var resp tidalSearchResponse
	if err := t.get(ctx, "/search", params, &resp); err != nil {
		return match, fmt.Errorf("failed to search for %q: %w", title, err)
	}

	for _, candidate := range resp.Tracks.Items {
		if strings.EqualFold(candidate.primaryArtist(), artist) {
			match.TrackID = strconv.FormatInt(candidate.ID, 10)
			return match, nil
		}
	}
	return match, nil
}

// AddTrackToPlaylist searches for a track and appends it to the playlist when found.
func (t *TidalClient) AddTrackToPlaylist(ctx context.Context, playlistID, title, artist string) (Match, error) {
	match, err := t.SearchTrack(ctx, title, artist)
	if err != nil {
		return match, err
	}
	return match, t.AddMatch(ctx, playlistID, match)
}

// AddMatch appends a resolved track to the end of the playlist. A match without a track ID only logs a warning.
func (t *TidalClient) AddMatch(ctx context.Context, playlistID string, m Match) error {
	if !m.Found() {
		t.logger.Warnf("Could not find track: %s - %s", m.Source.Artist, m.Source.Title)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	index := t.cursors[playlistID]

	form := url.Values{}
	form.Set("trackIds", m.TrackID)
	form.Set("toIndex", strconv.Itoa(index))

	headers := map[string]string{"if-none-match": "*"}
	if err := t.mutate(ctx, http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/items", form, headers, nil); err != nil {
		return fmt.Errorf("failed to add %s - %s: %w", m.Source.Artist, m.Source.Title, err)
	}

	t.cursors[playlistID] = index + 1
	t.logger.Infof("Added: %s - %s", m.Source.Artist, m.Source.Title)
	return nil
}

func (tt TidalTrack) primaryArtist() string {
	if tt.Artist.Name != "" {
		return tt.Artist.Name
	}
	if len(tt.Artists) > 0 {
		return tt.Artists[0].Name
	}
	return ""
}

func (tp TidalPlaylist) toPlaylist() Playlist {
	return Playlist{
		ID:          tp.UUID,
		Name:        tp.Title,
		Description: tp.Description,
		OwnerID:     strconv.FormatInt(tp.Creator.ID, 10),
		TrackCount:  tp.NumberOfTracks,
		Public:      tp.PublicPlaylist,
	}
}

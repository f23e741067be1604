// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// playlistItemFields limits the playlist items payload to the fields the
// exporter projects, mirroring the fields parameter of the Web API.
const playlistItemFields = "items(added_by(id),added_at,track(name,artists(name),album(name),duration_ms)),total"

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Followers   followers `json:"followers"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	Followers  followers `json:"followers"`
	Popularity int       `json:"popularity"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPlayHistory represents one entry of the playback history.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt string       `json:"played_at"`
}

// TrackCount carries a playlist's total track count.
type TrackCount struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Public      bool       `json:"public"`
	Tracks      TrackCount `json:"tracks"`
}

// SpotifyAddedBy identifies the user who added a track to a playlist.
type SpotifyAddedBy struct {
	ID string `json:"id"`
}

// SpotifyPlaylistItem represents a track within a playlist context.
type SpotifyPlaylistItem struct {
	AddedAt string          `json:"added_at"`
	AddedBy *SpotifyAddedBy `json:"added_by"`
	Track   SpotifyTrack    `json:"track"`
}

// SpotifySavedAlbum represents an album saved in the user's library.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// SavedTracksPage is one page of the saved tracks endpoint.
type SavedTracksPage struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

// RecentlyPlayedPage is the response of the recently played endpoint.
type RecentlyPlayedPage struct {
	Items []SpotifyPlayHistory `json:"items"`
}

type cursors struct {
	After string `json:"after"`
}

// FollowedArtistsPage is one page of the followed artists endpoint.
type FollowedArtistsPage struct {
	Items   []SpotifyArtist `json:"items"`
	Total   int             `json:"total"`
	Cursors cursors         `json:"cursors"`
}

// The follow endpoint nests its page under an "artists" key.
type followedArtistsEnvelope struct {
	Artists FollowedArtistsPage `json:"artists"`
}

// PlaylistsPage is one page of the user playlists endpoint.
type PlaylistsPage struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// PlaylistItemsPage is one page of a playlist's tracks.
type PlaylistItemsPage struct {
	Items []SpotifyPlaylistItem `json:"items"`
	Total int                   `json:"total"`
}

// TopArtistsPage is one page of the top artists endpoint.
type TopArtistsPage struct {
	Items []SpotifyArtist `json:"items"`
	Total int             `json:"total"`
}

// SavedAlbumsPage is one page of the saved albums endpoint.
type SavedAlbumsPage struct {
	Items []SpotifySavedAlbum `json:"items"`
	Total int                 `json:"total"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-library-read",
			"user-follow-read",
			"user-top-read",
			"user-read-recently-played",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
	}, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{AccessToken: accessToken})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate authenticates with a previously obtained [oauth2.Token].
//
// The constructed client refreshes expired tokens transparently; refreshed
// tokens are reported through the registered refresh callback.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	source := &refreshableTokenSource{
		source: s.config.TokenSource(ctx, token),
		callback: func(t *oauth2.Token) {
			s.token = t
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the underlying OAuth2 configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a callback invoked when the access token changes.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes a callback
// whenever the access token it vends changes.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	mu       sync.Mutex
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	if changed {
		r.last = token.AccessToken
	}
	r.mu.Unlock()

	if changed && r.callback != nil {
		func() {
			defer func() { _ = recover() }()
			r.callback(token)
		}()
	}

	return token, nil
}

// doRequest performs an authenticated GET request against the Spotify API and decodes the JSON response.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyBaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// clampLimit applies the API's default and ceiling for page sizes.
func clampLimit(limit, max int) int {
	if limit <= 0 {
		return 20
	}
	if limit > max {
		return max
	}
	return limit
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SavedTracks retrieves the user's saved tracks with pagination.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SavedTracksPage, error) {
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", clampLimit(limit, 50), offset)

	var page SavedTracksPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecentlyPlayed retrieves the user's recently played tracks.
// The endpoint caps history at 50 entries, so a single bounded call suffices.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, limit int) (*RecentlyPlayedPage, error) {
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", clampLimit(limit, 50))

	var page RecentlyPlayedPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FollowedArtists retrieves a page of followed artists after the given artist ID cursor.
func (s *SpotifyService) FollowedArtists(ctx context.Context, limit int, after string) (*FollowedArtistsPage, error) {
	endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", clampLimit(limit, 50))
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	var envelope followedArtistsEnvelope
	if err := s.doRequest(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Artists, nil
}

// Playlists retrieves the current user's playlists with pagination.
func (s *SpotifyService) Playlists(ctx context.Context, limit, offset int) (*PlaylistsPage, error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", clampLimit(limit, 50), offset)

	var page PlaylistsPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistItems retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistItems(ctx context.Context, playlistID string, limit, offset int) (*PlaylistItemsPage, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist ID required", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&fields=%s",
		url.PathEscape(playlistID), clampLimit(limit, 100), offset, url.QueryEscape(playlistItemFields))

	var page PlaylistItemsPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// TopArtists retrieves the user's top artists with pagination.
func (s *SpotifyService) TopArtists(ctx context.Context, limit, offset int) (*TopArtistsPage, error) {
	endpoint := fmt.Sprintf("/me/top/artists?limit=%d&offset=%d", clampLimit(limit, 50), offset)

	var page TopArtistsPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SavedAlbums retrieves the user's saved albums with pagination.
func (s *SpotifyService) SavedAlbums(ctx context.Context, limit, offset int) (*SavedAlbumsPage, error) {
	endpoint := fmt.Sprintf("/me/albums?limit=%d&offset=%d", clampLimit(limit, 50), offset)

	var page SavedAlbumsPage
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

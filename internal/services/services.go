package services

import (
	"context"

	"golang.org/x/oauth2"
)

// Service defines the capability set the export fetchers depend on: the
// profile call, the offset-paginated library endpoints, the bounded
// recently-played endpoint and the cursor-paginated follow graph.
//
// Fetchers only ever see this interface, so they are testable against a fake
// without any network access.
type Service interface {
	// Authenticate performs authentication with the service.
	// Expects an "access_token" or "auth_code" entry in credentials.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// SavedTracks retrieves a page of the user's saved tracks.
	SavedTracks(ctx context.Context, limit, offset int) (*SavedTracksPage, error)

	// RecentlyPlayed retrieves up to limit recently played tracks.
	// The endpoint caps history, so no further pagination is offered.
	RecentlyPlayed(ctx context.Context, limit int) (*RecentlyPlayedPage, error)

	// FollowedArtists retrieves a page of followed artists after the given
	// artist ID cursor. An empty cursor starts from the beginning.
	FollowedArtists(ctx context.Context, limit int, after string) (*FollowedArtistsPage, error)

	// Playlists retrieves a page of the user's playlists.
	Playlists(ctx context.Context, limit, offset int) (*PlaylistsPage, error)

	// PlaylistItems retrieves a page of one playlist's tracks.
	PlaylistItems(ctx context.Context, playlistID string, limit, offset int) (*PlaylistItemsPage, error)

	// TopArtists retrieves a page of the user's top artists.
	TopArtists(ctx context.Context, limit, offset int) (*TopArtistsPage, error)

	// SavedAlbums retrieves a page of the user's saved albums.
	SavedAlbums(ctx context.Context, limit, offset int) (*SavedAlbumsPage, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends Service for providers using server-side OAuth flows.
type OAuthService interface {
	Service

	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the underlying OAuth2 configuration for the
	// callback server's code exchange.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate authenticates with a previously obtained token,
	// refreshing it automatically when it expires.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error

	// SetTokenRefreshCallback registers a callback invoked whenever the
	// access token changes, so refreshed tokens can be persisted.
	SetTokenRefreshCallback(fn func(*oauth2.Token))
}

// Package services defines the [Service] interface over the Spotify Web API
// and its production implementation [SpotifyService].
//
// # Service Interface
//
// [Service] is the injectable capability set the export fetchers depend on:
// one profile call, the offset-paginated library endpoints, the bounded
// recently-played call and the cursor-paginated follow graph. Fetchers are
// written against this interface so they can be exercised with a fake.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 (authorization code flow) with automatic
// token refresh. The [oauth2] client refreshes expired tokens using the
// refresh token; refreshed tokens are surfaced through
// [SpotifyService.SetTokenRefreshCallback] so the CLI can persist them.
//
// # Error Handling
//
// Responses map onto typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : 401 from the API, reauthorization needed
//   - [shared.ErrAPIRequest] : transport failure or any other non-2xx status
package services

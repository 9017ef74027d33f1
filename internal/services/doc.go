// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// A refreshed token is reported through the callback set with [SpotifyService.SetTokenRefreshCallback]
// so it can be persisted. Requests are paced by a shared [rate.Limiter].
//
// The server uses [SpotifyService.ForToken] to bind a stored token to a single request without
// mutating the shared service.
//
// # Normalization
//
// Provider payloads never leave this package raw. Tracks become [CatalogTrack] values whose embedded
// [models.RawTrack] feeds the playlist import reconciler; playlists, artists and profiles have their
// own normalized shapes.
//
// # Token Stores
//
// [TokenStore] keeps provider tokens keyed by user. [MemoryTokenStore] evicts on a TTL and is swept
// on a cron schedule by [ScheduleSweep], [RedisTokenStore] relies on key expiry, and [FileTokenStore]
// persists the CLI login to disk.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token bound to the service
//   - [shared.ErrTokenExpired] : the provider rejected the token, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrTokenNotFound] : no stored token for a key
package services

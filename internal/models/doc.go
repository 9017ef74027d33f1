// Package models defines the domain entities shared by the playdeck server, CLI and player.
//
// The package contains three categories of types:
//
// 1. Catalog entities persisted by the repositories
//   - [Track] : A playable song with a URL that acts as its natural identity
//   - [Playlist] : An ordered, owned list of track references
//   - [User] : An account with a bcrypt password hash
//
// 2. Import descriptors
//   - [RawTrack] : A loosely specified track from a client or provider
//   - [ImportRequest] : A named bundle of raw tracks to reconcile into a new playlist
//
// 3. Player state
//   - [RepeatMode] : off, all, one
//   - [Settings] : Per-user playback and appearance preferences with defaults
//
// [Album] and [Artist] are read-only aggregates computed from stored tracks.
package models

// Package repositories implements catalog persistence for tracks, playlists, users and settings.
//
// The SQLite repositories handle CRUD operations with atomic sequence generation for stable ordering.
// They support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [TrackRepository] : Track storage deduplicated by URL through a partial unique index
//   - [PlaylistRepository] : Playlists with ordered, duplicate-friendly track references
//   - [UserRepository] : Accounts with bcrypt password hashes and email lookups
//   - [SettingsRepository] : Per-user player settings stored as key/value rows
//   - [MongoTrackStore], [MongoPlaylistStore] : The same track and playlist contracts over MongoDB
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories

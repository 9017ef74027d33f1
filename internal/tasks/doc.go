// Package tasks runs long import jobs that feed the library with real-time progress reporting.
//
// # Core Operations
//
// [Importer] exposes four operations:
//
//  1. [Importer.ImportPlaylist] : provider playlist → local playlist
//     - Resolves the source playlist by ID, falling back to an exact name match
//     - Normalizes provider tracks into import descriptors
//     - Hands the request to the reconciler, which reuses tracks by URL
//
//  2. [Importer.BulkImport] : many provider playlists at once
//     - Fetches exports through a rate limiter
//     - Reconciles them on a bounded worker pool
//     - Optionally writes a JSON manifest of successes and failures
//
//  3. [Importer.Diff] : compare a provider playlist with a local one
//     - Matches tracks by URL, then by normalized title/artist
//     - Reports matched count, missing tracks, and extra tracks
//
//  4. [Importer.ImportLibrary] : local audio files → local playlist
//     - [ScanLibrary] reads embedded tags from a directory tree
//     - Files without tags fall back to their file name
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks

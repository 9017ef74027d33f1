// Package ui implements the terminal music player using bubbletea's Elm architecture.
//
// The player has two views:
//  1. [PlaylistListView] : Browse the user's library playlists
//  2. [TrackListView] : Browse a playlist and start playback from any track
//
// A now-playing panel under both views shows the current track, a progress bar, volume, repeat and shuffle.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Playback is driven by a [player.Controller] over a [player.Simulator]; a tick message advances the simulated
// clock and its callbacks are dispatched to the controller, so track ends advance the queue exactly as they would
// with real audio output.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) plus transport keys (space, n, p, h/l, +/-, s, r)
// with contextual help displayed via charmbracelet/bubbles/help.
package ui

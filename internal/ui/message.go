package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playdeck/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgPlaylistLoaded
	MsgTick
)

type playlistsPayload struct {
	playlists []models.Playlist
	err       error
}

type playlistPayload struct {
	playlist *models.Playlist
	err      error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsPayload{playlists, err}}
}

// playlistLoadedMsg is the constructor for [MsgPlaylistLoaded]
func playlistLoadedMsg(playlist *models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistLoaded, data: playlistPayload{playlist, err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

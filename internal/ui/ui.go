package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/player"
	"github.com/desertthunder/playdeck/internal/shared"
)

const (
	tickInterval = 250 * time.Millisecond
	seekStep     = 10.0
	volumeStep   = 0.1
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
)

// PlaylistSource reads the user's library playlists.
type PlaylistSource interface {
	ListByUser(ctx context.Context, userID string) ([]models.Playlist, error)
	Get(ctx context.Context, id string) (*models.Playlist, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	source       PlaylistSource
	userID       string
	settings     models.Settings
	controller   *player.Controller
	clock        *player.Simulator
	interval     time.Duration
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	playlist     *models.Playlist
	bar          progress.Model
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a player for userID's playlists, seeded from settings.
//
// Playback runs against a [player.Simulator] advanced on every tick, so the controller sees
// the same metadata, time-update and ended callbacks an audio backend would produce.
func NewModel(ctx context.Context, source PlaylistSource, userID string, settings models.Settings, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clock := player.NewSimulator()
	controller := player.New(clock, player.WithLogger(logger))
	controller.ApplySettings(settings)

	return &Model{
		ctx:          ctx,
		view:         PlaylistListView,
		source:       source,
		userID:       userID,
		settings:     settings,
		controller:   controller,
		clock:        clock,
		interval:     tickInterval,
		playlistList: newList(nil, "Playlists"),
		trackList:    newList(nil, "Tracks"),
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

func newList(items []list.Item, title string) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Session exposes the controller state.
func (m *Model) Session() player.Session {
	return m.controller.Session()
}

// Init fetches the playlists and starts the playback clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		payload := msg.data.(playlistsPayload)
		if payload.err != nil {
			m.err = payload.err
			return m, nil
		}
		m.playlistList.SetItems(playlistItems(payload.playlists))
		m.playlistList.Title = fmt.Sprintf("Playlists (%d)", len(payload.playlists))
		return m, nil

	case MsgPlaylistLoaded:
		payload := msg.data.(playlistPayload)
		if payload.err != nil {
			m.err = payload.err
			return m, nil
		}
		m.err = nil
		m.playlist = payload.playlist
		m.trackList.SetItems(trackItems(payload.playlist.Tracks))
		m.trackList.Title = payload.playlist.Name
		m.trackList.Select(0)
		m.view = TrackListView
		return m, nil

	case MsgTick:
		m.advance(m.interval)
		return m, m.tick()
	}
	return m, nil
}

// advance moves the simulated clock and feeds its callbacks to the controller.
//
// With autoplay off a finished track stops instead of advancing, unless it repeats itself.
func (m *Model) advance(d time.Duration) {
	for _, ev := range m.clock.Advance(d) {
		if ev.Kind == player.EventEnded && !m.settings.AutoplayNextTrack &&
			m.controller.Session().Repeat != models.RepeatOne && ev.Generation == m.controller.Generation() {
			m.controller.Pause()
			m.controller.Seek(0)
			continue
		}
		m.controller.Dispatch(ev)
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	active := m.activeList()
	if active.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	s := m.controller.Session()
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.controller.TogglePlay()
		return m, nil
	case key.Matches(msg, m.keys.next):
		m.controller.PlayNext()
		return m, nil
	case key.Matches(msg, m.keys.previous):
		m.controller.PlayPrevious()
		return m, nil
	case key.Matches(msg, m.keys.forward):
		m.controller.Seek(s.Position + seekStep)
		return m, nil
	case key.Matches(msg, m.keys.rewind):
		m.controller.Seek(s.Position - seekStep)
		return m, nil
	case key.Matches(msg, m.keys.louder):
		m.controller.SetVolume(s.Volume + volumeStep)
		return m, nil
	case key.Matches(msg, m.keys.quieter):
		m.controller.SetVolume(s.Volume - volumeStep)
		return m, nil
	case key.Matches(msg, m.keys.shuffle):
		m.controller.ToggleShuffle()
		return m, nil
	case key.Matches(msg, m.keys.repeat):
		m.controller.CycleRepeatMode()
		return m, nil
	}

	switch m.view {
	case PlaylistListView:
		if key.Matches(msg, m.keys.enter) {
			if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				return m, m.loadPlaylist(pl.playlist.ID)
			}
			return m, nil
		}
	case TrackListView:
		switch {
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			return m, nil
		case key.Matches(msg, m.keys.enter):
			if t, ok := m.trackList.SelectedItem().(trackItem); ok && m.playlist != nil {
				m.controller.Play(t.track, m.playlist.Tracks)
			}
			return m, nil
		}
	}
	return m.updateLists(msg)
}

func (m *Model) activeList() *list.Model {
	if m.view == TrackListView {
		return &m.trackList
	}
	return &m.playlistList
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize() {
	listHeight := max(m.height-8, 4)
	m.playlistList.SetSize(m.width-4, listHeight)
	m.trackList.SetSize(m.width-4, listHeight)
	m.bar.Width = max(m.width-20, 10)
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg() })
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.ListByUser(m.ctx, m.userID)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) loadPlaylist(id string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.source.Get(m.ctx, id)
		return playlistLoadedMsg(playlist, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case TrackListView:
		body = m.trackList.View()
	default:
		body = m.playlistList.View()
	}

	parts := []string{body, m.renderNowPlaying()}
	if m.err != nil {
		parts = append(parts, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	parts = append(parts, m.renderHelp())
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderNowPlaying() string {
	s := m.controller.Session()
	if s.Track == nil {
		return styles.help.Render("Nothing playing. Pick a playlist and press enter on a track.")
	}

	icon := "▶"
	switch s.State {
	case player.Paused:
		icon = "⏸"
	case player.Stopped:
		icon = "■"
	}

	title := styles.state(s.State).Render(icon) + " " + styles.title.Render(fmt.Sprintf("%s - %s", s.Track.Title, s.Track.Artist))
	clock := fmt.Sprintf("%s %s %s",
		shared.FormatDuration(int(s.Position)),
		m.bar.ViewAs(s.Progress()),
		shared.FormatDuration(int(s.Duration)),
	)

	flags := []string{fmt.Sprintf("vol %d%%", int(s.Volume*100+0.5)), "repeat " + s.Repeat.String()}
	if s.Shuffle {
		flags = append(flags, "shuffle")
	}
	if len(s.Playlist) > 0 {
		flags = append(flags, fmt.Sprintf("%d/%d", s.Index+1, len(s.Playlist)))
	}
	return fmt.Sprintf("%s\n%s\n%s", title, clock, styles.status.Render(strings.Join(flags, " • ")))
}

func (m *Model) renderHelp() string {
	keys := []key.Binding{m.keys.enter}
	if m.view == TrackListView {
		keys = append(keys, m.keys.back)
	}
	keys = append(keys, m.keys.toggle, m.keys.next, m.keys.previous, m.keys.shuffle, m.keys.repeat, m.keys.quit)
	return m.help.ShortHelpView(keys)
}

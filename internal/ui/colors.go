package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playdeck/internal/player"
)

var styles = NewPalette(Colors{
	Title:   "#7D56F4",
	Playing: "#1DB954",
	Paused:  "#FFA500",
	Error:   "#FF5F56",
	Muted:   "#626262",
})

// Colors names the hex colors a [Palette] is built from.
type Colors struct {
	Title, Playing, Paused, Error, Muted string
}

// Palette holds the player's lipgloss styles.
type Palette struct {
	title   lipgloss.Style
	playing lipgloss.Style
	paused  lipgloss.Style
	err     lipgloss.Style
	status  lipgloss.Style
	help    lipgloss.Style
}

func NewPalette(c Colors) *Palette {
	return &Palette{
		title:   NewBold(c.Title),
		playing: NewBold(c.Playing),
		paused:  NewBold(c.Paused),
		err:     NewBold(c.Error),
		status:  NewStyle(c.Muted),
		help:    NewEm(c.Muted),
	}
}

// state styles the transport icon for s.
func (p *Palette) state(s player.State) lipgloss.Style {
	if s == player.Playing {
		return p.playing
	}
	return p.paused
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

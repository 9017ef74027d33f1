package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/playdeck/internal/shared"
)

// RepeatMode controls what happens when the player runs past the current track.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// Next returns the mode that follows m in the off → all → one → off cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

func (m RepeatMode) String() string { return string(m) }

// ParseRepeatMode converts a string into a [RepeatMode].
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch RepeatMode(strings.ToLower(strings.TrimSpace(s))) {
	case RepeatOff:
		return RepeatOff, nil
	case RepeatAll:
		return RepeatAll, nil
	case RepeatOne:
		return RepeatOne, nil
	default:
		return RepeatOff, fmt.Errorf("%w: unknown repeat mode %q", shared.ErrInvalidInput, s)
	}
}

// Theme is the UI color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Settings holds per-user player preferences.
type Settings struct {
	ShuffleMode       bool       `json:"shuffleMode" toml:"shuffle"`
	RepeatMode        RepeatMode `json:"repeatMode" toml:"repeat"`
	AutoplayNextTrack bool       `json:"autoplayNextTrack" toml:"autoplay_next_track"`
	ShowAnimations    bool       `json:"showAnimations" toml:"show_animations"`
	DefaultVolume     int        `json:"defaultVolume" toml:"default_volume"` // 0-100
	Theme             Theme      `json:"theme" toml:"theme"`
}

// DefaultSettings returns the settings a user starts with.
func DefaultSettings() Settings {
	return Settings{
		ShuffleMode:       false,
		RepeatMode:        RepeatOff,
		AutoplayNextTrack: true,
		ShowAnimations:    true,
		DefaultVolume:     70,
		Theme:             ThemeDark,
	}
}

// Validate checks enumerated fields and ranges.
func (s Settings) Validate() error {
	if _, err := ParseRepeatMode(string(s.RepeatMode)); err != nil {
		return err
	}
	if s.DefaultVolume < 0 || s.DefaultVolume > 100 {
		return fmt.Errorf("%w: defaultVolume must be between 0 and 100", shared.ErrInvalidInput)
	}
	if s.Theme != ThemeDark && s.Theme != ThemeLight {
		return fmt.Errorf("%w: unknown theme %q", shared.ErrInvalidInput, s.Theme)
	}
	return nil
}

// Volume returns DefaultVolume scaled to [0,1].
func (s Settings) Volume() float64 {
	return float64(s.DefaultVolume) / 100
}

// Pairs flattens the settings into key/value rows for storage.
func (s Settings) Pairs() map[string]string {
	return map[string]string{
		"shuffleMode":       strconv.FormatBool(s.ShuffleMode),
		"repeatMode":        string(s.RepeatMode),
		"autoplayNextTrack": strconv.FormatBool(s.AutoplayNextTrack),
		"showAnimations":    strconv.FormatBool(s.ShowAnimations),
		"defaultVolume":     strconv.Itoa(s.DefaultVolume),
		"theme":             string(s.Theme),
	}
}

// SettingsFromPairs overlays stored key/value rows onto the defaults.
//
// Unknown keys are ignored and malformed values keep the default.
func SettingsFromPairs(pairs map[string]string) Settings {
	s := DefaultSettings()
	for k, v := range pairs {
		switch k {
		case "shuffleMode":
			if b, err := strconv.ParseBool(v); err == nil {
				s.ShuffleMode = b
			}
		case "repeatMode":
			if m, err := ParseRepeatMode(v); err == nil {
				s.RepeatMode = m
			}
		case "autoplayNextTrack":
			if b, err := strconv.ParseBool(v); err == nil {
				s.AutoplayNextTrack = b
			}
		case "showAnimations":
			if b, err := strconv.ParseBool(v); err == nil {
				s.ShowAnimations = b
			}
		case "defaultVolume":
			if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
				s.DefaultVolume = n
			}
		case "theme":
			if t := Theme(v); t == ThemeDark || t == ThemeLight {
				s.Theme = t
			}
		}
	}
	return s
}

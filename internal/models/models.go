package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playdeck/internal/shared"
)

// Track is a playable song in the catalog.
//
// URL is the dedup key: at most one live track exists per URL.
type Track struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	Duration   int       `json:"duration"` // seconds
	URL        string    `json:"url"`
	PreviewURL string    `json:"previewUrl"`
	Image      string    `json:"image"`
	Genre      string    `json:"genre"`
	Plays      int       `json:"plays"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks the mandatory fields of a track.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(t.Artist) == "" {
		return fmt.Errorf("%w: track artist is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("%w: track url is required", shared.ErrInvalidInput)
	}
	if t.Duration < 0 {
		return fmt.Errorf("%w: track duration must be non-negative", shared.ErrInvalidInput)
	}
	return nil
}

// SameAs reports whether two tracks refer to the same song.
//
// IDs are compared when both are set; otherwise the URLs are.
func (t Track) SameAs(o Track) bool {
	if t.ID != "" && o.ID != "" {
		return t.ID == o.ID
	}
	return t.URL != "" && t.URL == o.URL
}

// RawTrack is an import descriptor for a track that may or may not exist yet.
type RawTrack struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	URL        string  `json:"url"`
	PreviewURL string  `json:"previewUrl,omitempty"`
	Image      string  `json:"image,omitempty"`
	Genre      string  `json:"genre,omitempty"`
}

// UnmarshalJSON accepts a duration given as a number or a numeric string.
// Any other duration decodes as 0.
func (r *RawTrack) UnmarshalJSON(data []byte) error {
	type plain RawTrack
	var v struct {
		plain
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = RawTrack(v.plain)
	r.Duration = parseDuration(v.Duration)
	return nil
}

func parseDuration(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return n
		}
	}
	return 0
}

// Valid reports whether the descriptor carries a title, an artist and a URL.
func (r RawTrack) Valid() bool {
	return strings.TrimSpace(r.Title) != "" &&
		strings.TrimSpace(r.Artist) != "" &&
		strings.TrimSpace(r.URL) != ""
}

// ToTrack builds an unsaved [Track] with import defaults applied.
//
// Missing or invalid durations become 0 and the preview URL falls back to the URL.
func (r RawTrack) ToTrack() *Track {
	preview := r.PreviewURL
	if preview == "" {
		preview = r.URL
	}
	return &Track{
		Title:      r.Title,
		Artist:     r.Artist,
		Album:      r.Album,
		Duration:   NormalizeDuration(r.Duration),
		URL:        r.URL,
		PreviewURL: preview,
		Image:      r.Image,
		Genre:      r.Genre,
	}
}

// NormalizeDuration truncates seconds to a non-negative integer.
func NormalizeDuration(seconds float64) int {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	return int(seconds)
}

// Playlist is an owned, ordered list of track references.
//
// TrackIDs is the storage form; Tracks is filled in when a playlist is read back populated.
// Duplicate references are allowed and kept in insertion order.
type Playlist struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Public      bool      `json:"isPublic"`
	TrackIDs    []string  `json:"-"`
	Tracks      []Track   `json:"tracks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the mandatory fields of a playlist.
func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: playlist owner is required", shared.ErrInvalidInput)
	}
	return nil
}

// Duration sums the durations of the populated tracks.
func (p *Playlist) Duration() int {
	total := 0
	for _, t := range p.Tracks {
		total += t.Duration
	}
	return total
}

// ImportRequest asks for a new playlist assembled from raw tracks.
type ImportRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	UserID      string     `json:"userId"`
	Tracks      []RawTrack `json:"tracks,omitempty"`
	Public      bool       `json:"isPublic"`
}

// UnmarshalJSON decodes tracks one entry at a time.
//
// A missing tracks key means no tracks; null or any non-array is [shared.ErrInvalidInput].
// An entry that does not decode becomes a zero [RawTrack], which the importer skips.
func (r *ImportRequest) UnmarshalJSON(data []byte) error {
	type plain ImportRequest
	var v struct {
		plain
		Tracks json.RawMessage `json:"tracks"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = ImportRequest(v.plain)
	r.Tracks = nil

	raw := bytes.TrimSpace(v.Tracks)
	if len(raw) == 0 {
		r.Tracks = []RawTrack{}
		return nil
	}
	if raw[0] != '[' {
		return fmt.Errorf("%w: tracks must be an array", shared.ErrInvalidInput)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("%w: tracks must be an array", shared.ErrInvalidInput)
	}
	r.Tracks = make([]RawTrack, len(items))
	for i, item := range items {
		var t RawTrack
		if err := json.Unmarshal(item, &t); err == nil {
			r.Tracks[i] = t
		}
	}
	return nil
}

// Validate checks the request-level fields. Individual tracks are not validated here.
func (r ImportRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: name, userId and tracks[] required", shared.ErrInvalidInput)
	}
	return nil
}

// User is an account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the mandatory fields of a user.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidInput)
	}
	return nil
}

// Album is an aggregate of stored tracks sharing an album title and artist.
type Album struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Image    string `json:"image"`
	Tracks   int    `json:"tracks"`
	Duration int    `json:"duration"`
}

// Artist is an aggregate of stored tracks by one artist.
type Artist struct {
	Name   string   `json:"name"`
	Albums int      `json:"albums"`
	Tracks int      `json:"tracks"`
	Genres []string `json:"genres"`
}

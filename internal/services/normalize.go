package services

import (
	"strings"

	"github.com/desertthunder/playdeck/internal/models"
)

const spotifyTrackURL = "https://open.spotify.com/track/"

// normalizeTrack maps a provider track into a [CatalogTrack].
//
// URL is the stable public track link so re-imports dedup against it;
// the 30 second preview clip, when offered, becomes PreviewURL.
func normalizeTrack(t SpotifyTrack, addedAt string) CatalogTrack {
	link := t.ExternalURLs.Spotify
	switch {
	case link != "":
	case t.ID != "":
		link = spotifyTrackURL + t.ID
	default:
		link = t.URI
	}

	return CatalogTrack{
		RawTrack: models.RawTrack{
			Title:      t.Name,
			Artist:     joinArtists(t.Artists),
			Album:      t.Album.Name,
			Duration:   float64(t.DurationMS / 1000),
			URL:        link,
			PreviewURL: t.PreviewURL,
			Image:      firstImage(t.Album.Images),
		},
		ID:       t.ID,
		URI:      t.URI,
		Explicit: t.Explicit,
		AddedAt:  addedAt,
	}
}

func normalizeTracks(items []SpotifyTrack) []CatalogTrack {
	tracks := make([]CatalogTrack, 0, len(items))
	for _, t := range items {
		tracks = append(tracks, normalizeTrack(t, ""))
	}
	return tracks
}

func normalizePlaylist(p SpotifySimplePlaylist) Playlist {
	return Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: describe(p.Description),
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
		Image:       firstImage(p.Images),
		URI:         p.URI,
	}
}

func normalizeFullPlaylist(p SpotifyPlaylist) Playlist {
	return Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: describe(p.Description),
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
		Image:       firstImage(p.Images),
		URI:         p.URI,
	}
}

func normalizeArtist(a SpotifyArtist) ArtistSummary {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return ArtistSummary{
		ID:     a.ID,
		Name:   a.Name,
		Genres: genres,
		Image:  firstImage(a.Images),
		URI:    a.URI,
	}
}

func normalizeProfile(u SpotifyUser) Profile {
	return Profile{
		ID:    u.ID,
		Name:  u.DisplayName,
		Email: u.Email,
		Image: firstImage(u.Images),
	}
}

func joinArtists(artists []SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

func describe(description string) string {
	if strings.TrimSpace(description) == "" {
		return "No description"
	}
	return description
}

package services

import (
	"context"

	"github.com/desertthunder/playdeck/internal/models"
	"golang.org/x/oauth2"
)

// Service defines a music provider whose playlists can be read and imported into the local catalog.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]Playlist, error)

	// GetPlaylist retrieves a specific playlist by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)

	// ExportPlaylist reads a playlist with all its tracks as import descriptors.
	ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error)

	// SearchTrack searches for a track by title and artist.
	// Returns the best match or [shared.ErrTrackNotFound].
	SearchTrack(ctx context.Context, title, artist string) (*CatalogTrack, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers using the authorization code flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Playlist is a provider playlist summary.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TrackCount  int    `json:"tracks"`
	Public      bool   `json:"isPublic"`
	Image       string `json:"image"`
	URI         string `json:"uri"`
}

// PlaylistExport is a provider playlist with its tracks ready for import.
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []models.RawTrack
}

// ImportRequest builds a reconciler request owned by userID.
func (e *PlaylistExport) ImportRequest(userID string) models.ImportRequest {
	return models.ImportRequest{
		Name:        e.Playlist.Name,
		Description: e.Playlist.Description,
		UserID:      userID,
		Public:      e.Playlist.Public,
		Tracks:      e.Tracks,
	}
}

// CatalogTrack is a normalized provider track.
//
// The embedded [models.RawTrack] is what gets imported; the remaining fields are provider metadata.
type CatalogTrack struct {
	models.RawTrack
	ID       string `json:"id"`
	URI      string `json:"uri"`
	Explicit bool   `json:"explicit"`
	AddedAt  string `json:"addedAt,omitempty"`
}

// Profile is the normalized account of the authenticated provider user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// ArtistSummary is a normalized provider artist.
type ArtistSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Image  string   `json:"image"`
	URI    string   `json:"uri"`
}

// SearchResults groups provider search hits by type.
type SearchResults struct {
	Tracks    []CatalogTrack  `json:"tracks"`
	Playlists []Playlist      `json:"playlists"`
	Artists   []ArtistSummary `json:"artists"`
}

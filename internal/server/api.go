package server

import (
	"context"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/library"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/tasks"
)

// UserStore registers and authenticates accounts.
type UserStore interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// SettingsStore keeps per-user player settings.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (models.Settings, error)
	Save(ctx context.Context, userID string, s models.Settings) error
}

// Deps are the collaborators of the REST API.
//
// Spotify may be nil when no client credentials are configured; its routes then answer 500.
type Deps struct {
	Tracks    library.TrackStore
	Playlists library.PlaylistStore
	Users     UserStore
	Settings  SettingsStore
	Spotify   *services.SpotifyService
	Tokens    services.TokenStore
	Database  string
	Logger    *log.Logger
}

// API serves the JSON REST interface over the library and the Spotify catalog.
type API struct {
	tracks     library.TrackStore
	playlists  library.PlaylistStore
	users      UserStore
	settings   SettingsStore
	spotify    *services.SpotifyService
	tokens     services.TokenStore
	database   string
	logger     *log.Logger
	reconciler *library.Reconciler
	catalog    *library.Catalog
	importer   *tasks.Importer
	routes     []string
}

// NewAPI wires the reconciler, catalog and importer over deps.
func NewAPI(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = services.NewMemoryTokenStore(0)
	}

	reconciler := library.NewReconciler(deps.Tracks, deps.Playlists, logger.WithPrefix("reconciler"))
	return &API{
		tracks:     deps.Tracks,
		playlists:  deps.Playlists,
		users:      deps.Users,
		settings:   deps.Settings,
		spotify:    deps.Spotify,
		tokens:     tokens,
		database:   deps.Database,
		logger:     logger,
		reconciler: reconciler,
		catalog:    library.NewCatalog(deps.Tracks),
		importer:   tasks.NewImporter(reconciler, logger.WithPrefix("import")),
	}
}

// Register mounts every API route on router.
func (a *API) Register(router Router) {
	routes := []struct {
		method, path string
		fn           http.HandlerFunc
	}{
		{http.MethodGet, "/api/health", a.health},

		{http.MethodPost, "/api/auth/register", a.register},
		{http.MethodPost, "/api/auth/login", a.login},
		{http.MethodPost, "/api/auth/logout", a.logout},

		{http.MethodGet, "/api/playlists", a.listPlaylists},
		{http.MethodPost, "/api/playlists", a.createPlaylist},
		{http.MethodPost, "/api/playlists/import", a.importPlaylist},
		{http.MethodGet, "/api/playlists/{id}", a.getPlaylist},
		{http.MethodPost, "/api/playlists/{id}/tracks", a.appendTrack},
		{http.MethodGet, "/api/playlists/{id}/export", a.exportPlaylist},

		{http.MethodGet, "/api/tracks", a.listTracks},
		{http.MethodGet, "/api/tracks/{id}", a.getTrack},
		{http.MethodGet, "/api/albums", a.listAlbums},
		{http.MethodGet, "/api/artists", a.listArtists},
		{http.MethodGet, "/api/search", a.search},

		{http.MethodGet, "/api/users/{id}/settings", a.getSettings},
		{http.MethodPut, "/api/users/{id}/settings", a.saveSettings},

		{http.MethodGet, "/api/spotify/auth-url", a.spotifyAuthURL},
		{http.MethodPost, "/api/spotify/callback", a.spotifyCallback},
		{http.MethodGet, "/api/spotify/profile", a.spotifyProfile},
		{http.MethodGet, "/api/spotify/playlists", a.spotifyPlaylists},
		{http.MethodGet, "/api/spotify/playlists/{id}/tracks", a.spotifyPlaylistTracks},
		{http.MethodPost, "/api/spotify/playlists/{id}/import", a.spotifyImport},
		{http.MethodGet, "/api/spotify/albums/{id}/tracks", a.spotifyAlbumTracks},
		{http.MethodGet, "/api/spotify/search", a.spotifySearch},
		{http.MethodGet, "/api/spotify/top-tracks", a.spotifyTopTracks},
		{http.MethodGet, "/api/spotify/saved-tracks", a.spotifySavedTracks},
		{http.MethodGet, "/api/spotify/artists/{id}/top-tracks", a.spotifyArtistTopTracks},
	}

	for _, rt := range routes {
		router.Handle(rt.method, rt.path, rt.fn)
		a.routes = append(a.routes, rt.method+" "+rt.path)
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  a.database,
		"spotify":   a.spotify != nil,
		"endpoints": a.routes,
	})
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/oauth2"
)

const spotifyNotConfigured = "Spotify credentials not configured. Please set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET"

// spotifyClient binds the configured Spotify service to the caller's token.
//
// A bearer token in Authorization (or the legacy accessToken header) wins; otherwise the token stored
// for X-User-ID is used, and refreshed tokens are written back to the store.
func (a *API) spotifyClient(r *http.Request) (*services.SpotifyService, error) {
	if a.spotify == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingCredentials, spotifyNotConfigured)
	}
	ctx := r.Context()

	raw := strings.TrimSpace(r.Header.Get("accessToken"))
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if raw != "" {
		return a.spotify.ForToken(ctx, &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}), nil
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return nil, fmt.Errorf("%w: no access token provided", shared.ErrNotAuthenticated)
	}
	token, err := a.tokens.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: no Spotify token for user %s", shared.ErrNotAuthenticated, userID)
	}
	return a.spotify.ForTokenWithRefresh(ctx, token, func(t *oauth2.Token) {
		if err := a.tokens.Save(context.WithoutCancel(ctx), userID, t); err != nil {
			a.logger.Warn("failed to store refreshed token", "user", userID, "err", err)
		}
	}), nil
}

func (a *API) spotifyAuthURL(w http.ResponseWriter, r *http.Request) {
	if a.spotify == nil {
		writeError(w, http.StatusInternalServerError, spotifyNotConfigured)
		return
	}
	state, err := shared.GenerateState()
	if err != nil {
		a.fail(w, r, err, "Failed to build authorization URL")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": a.spotify.GetAuthURL(state), "state": state})
}

func (a *API) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code   string `json:"code"`
		UserID string `json:"userId"`
	}
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err, "Failed to authenticate with Spotify")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code required")
		return
	}
	if a.spotify == nil {
		writeError(w, http.StatusInternalServerError, spotifyNotConfigured)
		return
	}

	token, err := a.spotify.Exchange(r.Context(), req.Code)
	if err != nil {
		a.fail(w, r, err, "Failed to authenticate with Spotify")
		return
	}
	if req.UserID != "" {
		if err := a.tokens.Save(r.Context(), req.UserID, token); err != nil {
			a.fail(w, r, err, "Failed to store Spotify token")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"accessToken":  token.AccessToken,
		"refreshToken": token.RefreshToken,
	})
}

func (a *API) spotifyProfile(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch profile")
		return
	}
	profile, err := client.Profile(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) spotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlists")
		return
	}
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlists")
		return
	}

	playlists, err := client.GetPlaylists(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlists")
		return
	}
	if limit > 0 && len(playlists) > limit {
		playlists = playlists[:limit]
	}
	if playlists == nil {
		playlists = []services.Playlist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
}

// writeTracks answers {tracks: [...]} with an empty array rather than null.
func writeTracks(w http.ResponseWriter, tracks []services.CatalogTrack) {
	if tracks == nil {
		tracks = []services.CatalogTrack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (a *API) spotifyPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlist tracks")
		return
	}
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlist tracks")
		return
	}

	tracks, err := client.PlaylistTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlist tracks")
		return
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	writeTracks(w, tracks)
}

func (a *API) spotifyAlbumTracks(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch album tracks")
		return
	}
	tracks, err := client.AlbumTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch album tracks")
		return
	}
	writeTracks(w, tracks)
}

func (a *API) spotifySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		q = r.URL.Query().Get("q")
	}
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "Search query required")
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		a.fail(w, r, err, "Search failed")
		return
	}
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Search failed")
		return
	}

	results, err := client.Search(r.Context(), q, limit)
	if err != nil {
		a.fail(w, r, err, "Search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) spotifyTopTracks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch top tracks")
		return
	}
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch top tracks")
		return
	}

	tracks, err := client.TopTracks(r.Context(), limit, r.URL.Query().Get("timeRange"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch top tracks")
		return
	}
	writeTracks(w, tracks)
}

func (a *API) spotifySavedTracks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultTrackLimit)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch saved tracks")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch saved tracks")
		return
	}
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch saved tracks")
		return
	}

	tracks, err := client.SavedTracks(r.Context(), limit, offset)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch saved tracks")
		return
	}
	writeTracks(w, tracks)
}

func (a *API) spotifyArtistTopTracks(w http.ResponseWriter, r *http.Request) {
	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch artist top tracks")
		return
	}
	tracks, err := client.ArtistTopTracks(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch artist top tracks")
		return
	}
	writeTracks(w, tracks)
}

// spotifyImport copies a Spotify playlist into the library for the user named in the body or X-User-ID.
func (a *API) spotifyImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			a.fail(w, r, err, "Failed to import playlist")
			return
		}
	}
	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-ID")
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	client, err := a.spotifyClient(r)
	if err != nil {
		a.fail(w, r, err, "Failed to import playlist")
		return
	}

	result, err := a.importer.ImportPlaylist(r.Context(), nil, client, r.PathValue("id"), req.UserID)
	if err != nil {
		a.fail(w, r, err, "Failed to import playlist")
		return
	}
	writeJSON(w, http.StatusCreated, result.Playlist)
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/library"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

const (
	defaultTrackLimit  = 50
	defaultSearchLimit = 20
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decode(r, &c); err != nil {
		a.fail(w, r, err, "Registration failed")
		return
	}
	if c.Email == "" || c.Password == "" || c.Name == "" {
		writeError(w, http.StatusBadRequest, "Email, password, and name required")
		return
	}

	user, err := a.users.Register(r.Context(), c.Email, c.Name, c.Password)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateUser) {
			writeError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		a.fail(w, r, err, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Success: true, User: user})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decode(r, &c); err != nil {
		a.fail(w, r, err, "Login failed")
		return
	}
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := a.users.Authenticate(r.Context(), c.Email, c.Password)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.fail(w, r, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Success: true, User: user})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (a *API) listPlaylists(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	playlists, err := a.playlists.ListByUser(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlists")
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := a.playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch playlist")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
	Image       string `json:"image"`
	Public      bool   `json:"isPublic"`
}

func (a *API) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err, "Failed to create playlist")
		return
	}
	if req.Name == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "name and userId required")
		return
	}

	playlist := &models.Playlist{
		Name:        req.Name,
		Description: req.Description,
		UserID:      req.UserID,
		Image:       req.Image,
		Public:      req.Public,
		TrackIDs:    []string{},
		Tracks:      []models.Track{},
	}
	if err := a.playlists.Create(r.Context(), playlist); err != nil {
		a.fail(w, r, err, "Failed to create playlist")
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (a *API) appendTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID string `json:"trackId"`
	}
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err, "Failed to add track")
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId required")
		return
	}

	playlist, err := a.playlists.AppendTrack(r.Context(), r.PathValue("id"), req.TrackID)
	if err != nil {
		a.fail(w, r, err, "Failed to add track")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (a *API) importPlaylist(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "name, userId and tracks[] required")
		return
	}

	playlist, err := a.reconciler.Import(r.Context(), req)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			writeError(w, http.StatusBadRequest, "name, userId and tracks[] required")
			return
		}
		a.fail(w, r, err, "Failed to import playlist")
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (a *API) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	f, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, r, err, "Failed to export playlist")
		return
	}

	playlist, err := a.playlists.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to export playlist")
		return
	}

	data, err := formatter.Export(playlist, f)
	if err != nil {
		a.fail(w, r, err, "Failed to export playlist")
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", playlist.ID+f.Ext()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) listTracks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultTrackLimit)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch tracks")
		return
	}

	tracks, err := a.tracks.List(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err, "Failed to fetch tracks")
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (a *API) getTrack(w http.ResponseWriter, r *http.Request) {
	track, err := a.tracks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch track")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (a *API) listAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := a.catalog.Albums(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch albums")
		return
	}
	if albums == nil {
		albums = []models.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

func (a *API) listArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := a.catalog.Artists(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to fetch artists")
		return
	}
	if artists == nil {
		artists = []models.Artist{}
	}
	writeJSON(w, http.StatusOK, artists)
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Search query required")
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		a.fail(w, r, err, "Search failed")
		return
	}

	results, err := a.catalog.Search(r.Context(), q, limit)
	if err != nil {
		a.fail(w, r, err, "Search failed")
		return
	}
	if results == nil {
		results = []library.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.settings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err, "Failed to fetch settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// saveSettings applies a partial update: fields absent from the body keep their stored value.
func (a *API) saveSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	settings, err := a.settings.Get(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err, "Failed to save settings")
		return
	}
	if err := decode(r, &settings); err != nil {
		a.fail(w, r, err, "Failed to save settings")
		return
	}
	if err := a.settings.Save(r.Context(), userID, settings); err != nil {
		a.fail(w, r, err, "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

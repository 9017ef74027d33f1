package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/repositories"
	"github.com/desertthunder/playdeck/internal/services"
	th "github.com/desertthunder/playdeck/internal/testing"
	"golang.org/x/crypto/bcrypt"
)

const testOrigin = "http://localhost:5173"

// newTestServer mounts the API on a router backed by an in-memory database, wrapped in CORS as serve does.
func newTestServer(t *testing.T, spotify *services.SpotifyService, tokens services.TokenStore) http.Handler {
	t.Helper()
	db := th.NewTestDB(t)
	api := NewAPI(Deps{
		Tracks:    repositories.NewTrackRepository(db),
		Playlists: repositories.NewPlaylistRepository(db),
		Users:     repositories.NewUserRepository(db).WithCost(bcrypt.MinCost),
		Settings:  repositories.NewSettingsRepository(db),
		Spotify:   spotify,
		Tokens:    tokens,
		Database:  "sqlite",
		Logger:    discard(),
	})

	router := NewBasicRouter()
	router.Use(Recoverer(discard()))
	api.Register(router)
	return CORS([]string{testOrigin})(router)
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %d: %v", rec.Code, err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := decodeBody[errorBody](t, rec)
	if msg != "" && !strings.Contains(body.Error, msg) {
		t.Errorf("expected error containing %q, got %q", msg, body.Error)
	}
}

func importSample(t *testing.T, h http.Handler, userID string, n int) models.Playlist {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/playlists/import", models.ImportRequest{
		Name:   "Imported",
		UserID: userID,
		Tracks: th.RawTracks("mix", n),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import failed with %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[models.Playlist](t, rec)
}

func trackIDs(p models.Playlist) []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil, nil)
	rec := do(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody[struct {
		Status    string   `json:"status"`
		Database  string   `json:"database"`
		Spotify   bool     `json:"spotify"`
		Endpoints []string `json:"endpoints"`
	}](t, rec)

	if body.Status != "ok" || body.Database != "sqlite" || body.Spotify {
		t.Errorf("unexpected health body: %+v", body)
	}
	for _, want := range []string{"GET /api/health", "POST /api/playlists/import", "PUT /api/users/{id}/settings"} {
		if !slices.Contains(body.Endpoints, want) {
			t.Errorf("expected endpoint %q in %v", want, body.Endpoints)
		}
	}

	if rec := do(t, h, http.MethodDelete, "/api/health", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestAuthRoutes(t *testing.T) {
	h := newTestServer(t, nil, nil)
	ada := map[string]string{"email": "ada@example.com", "password": "hunter22", "name": "Ada"}

	t.Run("register", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/register", ada)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody[userResponse](t, rec)
		if !body.Success || body.User == nil || body.User.ID == "" || body.User.Email != "ada@example.com" {
			t.Errorf("unexpected response: %+v", body)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		expectError(t, do(t, h, http.MethodPost, "/api/auth/register", ada), http.StatusBadRequest, "Email already exists")
	})

	t.Run("register missing fields", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/register", map[string]string{"email": "x@example.com"})
		expectError(t, rec, http.StatusBadRequest, "Email, password, and name required")
	})

	t.Run("login", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "hunter22"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "hunter22") || strings.Contains(strings.ToLower(rec.Body.String()), "hash") {
			t.Error("response leaks password material")
		}
	})

	tests := []struct {
		name   string
		body   map[string]string
		status int
		msg    string
	}{
		{"wrong password", map[string]string{"email": "ada@example.com", "password": "nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown user", map[string]string{"email": "bob@example.com", "password": "nope"}, http.StatusUnauthorized, "Invalid credentials"},
		{"missing password", map[string]string{"email": "ada@example.com"}, http.StatusBadRequest, "Email and password required"},
	}
	for _, tt := range tests {
		t.Run("login "+tt.name, func(t *testing.T) {
			expectError(t, do(t, h, http.MethodPost, "/api/auth/login", tt.body), tt.status, tt.msg)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		expectError(t, do(t, h, http.MethodPost, "/api/auth/login", "{not json"), http.StatusBadRequest, "invalid JSON")
	})

	t.Run("logout", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/auth/logout", nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
			t.Errorf("unexpected logout response %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestPlaylistRoutes(t *testing.T) {
	h := newTestServer(t, nil, nil)

	t.Run("create and fetch", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/playlists", map[string]any{"name": "Road Trip", "userId": "u1", "isPublic": true})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		created := decodeBody[models.Playlist](t, rec)
		if created.ID == "" || !created.Public || created.Tracks == nil {
			t.Errorf("unexpected playlist: %+v", created)
		}

		rec = do(t, h, http.MethodGet, "/api/playlists/"+created.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decodeBody[models.Playlist](t, rec); got.Name != "Road Trip" {
			t.Errorf("expected Road Trip, got %q", got.Name)
		}
	})

	t.Run("create requires name and user", func(t *testing.T) {
		expectError(t, do(t, h, http.MethodPost, "/api/playlists", map[string]any{"name": "x"}), http.StatusBadRequest, "name and userId required")
	})

	t.Run("import reuses tracks", func(t *testing.T) {
		first := importSample(t, h, "u2", 3)
		second := importSample(t, h, "u2", 3)

		if len(first.Tracks) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(first.Tracks))
		}
		if first.ID == second.ID {
			t.Error("expected a new playlist per import")
		}
		if !slices.Equal(trackIDs(first), trackIDs(second)) {
			t.Errorf("expected track reuse, got %v and %v", trackIDs(first), trackIDs(second))
		}
	})

	t.Run("import validation", func(t *testing.T) {
		expectError(t, do(t, h, http.MethodPost, "/api/playlists/import", map[string]any{"userId": "u2"}), http.StatusBadRequest, "name, userId and tracks[] required")
		expectError(t, do(t, h, http.MethodPost, "/api/playlists/import", "[]"), http.StatusBadRequest, "name, userId and tracks[] required")
	})

	t.Run("list by user", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/playlists?userId=u2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decodeBody[[]models.Playlist](t, rec); len(got) != 2 {
			t.Errorf("expected 2 playlists, got %d", len(got))
		}

		rec = do(t, h, http.MethodGet, "/api/playlists?userId=nobody", nil)
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("expected empty array, got %s", rec.Body.String())
		}

		expectError(t, do(t, h, http.MethodGet, "/api/playlists", nil), http.StatusBadRequest, "userId required")
	})

	t.Run("append track", func(t *testing.T) {
		source := importSample(t, h, "u3", 1)
		rec := do(t, h, http.MethodPost, "/api/playlists", map[string]any{"name": "Empty", "userId": "u3"})
		target := decodeBody[models.Playlist](t, rec)

		rec = do(t, h, http.MethodPost, "/api/playlists/"+target.ID+"/tracks", map[string]string{"trackId": source.Tracks[0].ID})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody[models.Playlist](t, rec); !slices.Equal(trackIDs(got), trackIDs(source)) {
			t.Errorf("expected %v, got %v", trackIDs(source), trackIDs(got))
		}

		expectError(t, do(t, h, http.MethodPost, "/api/playlists/"+target.ID+"/tracks", map[string]string{"trackId": "missing"}), http.StatusNotFound, "")
		expectError(t, do(t, h, http.MethodPost, "/api/playlists/missing/tracks", map[string]string{"trackId": source.Tracks[0].ID}), http.StatusNotFound, "")
		expectError(t, do(t, h, http.MethodPost, "/api/playlists/"+target.ID+"/tracks", map[string]string{}), http.StatusBadRequest, "trackId required")
	})

	t.Run("unknown playlist", func(t *testing.T) {
		expectError(t, do(t, h, http.MethodGet, "/api/playlists/does-not-exist", nil), http.StatusNotFound, "")
	})

	t.Run("export", func(t *testing.T) {
		p := importSample(t, h, "u4", 2)

		rec := do(t, h, http.MethodGet, "/api/playlists/"+p.ID+"/export?format=m3u", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "audio/x-mpegurl" {
			t.Errorf("unexpected content type %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, p.ID+".m3u") {
			t.Errorf("unexpected disposition %q", cd)
		}
		if !strings.HasPrefix(rec.Body.String(), "#EXTM3U") || !strings.Contains(rec.Body.String(), "https://example.com/mix/2") {
			t.Errorf("unexpected playlist body: %s", rec.Body.String())
		}

		rec = do(t, h, http.MethodGet, "/api/playlists/"+p.ID+"/export", nil)
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON by default, got %q", ct)
		}

		expectError(t, do(t, h, http.MethodGet, "/api/playlists/"+p.ID+"/export?format=xls", nil), http.StatusBadRequest, "unknown export format")
		expectError(t, do(t, h, http.MethodGet, "/api/playlists/missing/export?format=csv", nil), http.StatusNotFound, "")
	})
}

func TestCatalogRoutes(t *testing.T) {
	h := newTestServer(t, nil, nil)
	p := importSample(t, h, "u1", 3)

	t.Run("tracks", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/tracks?limit=2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decodeBody[[]models.Track](t, rec); len(got) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(got))
		}

		rec = do(t, h, http.MethodGet, "/api/tracks/"+p.Tracks[0].ID, nil)
		if got := decodeBody[models.Track](t, rec); got.Title != "mix Song 1" {
			t.Errorf("unexpected track %+v", got)
		}

		expectError(t, do(t, h, http.MethodGet, "/api/tracks/missing", nil), http.StatusNotFound, "")
		expectError(t, do(t, h, http.MethodGet, "/api/tracks?limit=-3", nil), http.StatusBadRequest, "limit")
	})

	t.Run("albums and artists", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/albums", nil)
		albums := decodeBody[[]models.Album](t, rec)
		if len(albums) != 1 || albums[0].Title != "mix Album" {
			t.Errorf("unexpected albums %+v", albums)
		}

		rec = do(t, h, http.MethodGet, "/api/artists", nil)
		artists := decodeBody[[]models.Artist](t, rec)
		if len(artists) != 1 || artists[0].Name != "mix Artist" {
			t.Errorf("unexpected artists %+v", artists)
		}
	})

	t.Run("search", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/search?q=song+2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[struct {
			Query   string `json:"query"`
			Results []struct {
				Track models.Track `json:"track"`
			} `json:"results"`
		}](t, rec)
		if body.Query != "song 2" || len(body.Results) == 0 {
			t.Fatalf("unexpected search body %+v", body)
		}
		if body.Results[0].Track.Title != "mix Song 2" {
			t.Errorf("expected best hit mix Song 2, got %q", body.Results[0].Track.Title)
		}

		rec = do(t, h, http.MethodGet, "/api/search?q=zzzzqqq", nil)
		if !strings.Contains(rec.Body.String(), `"results":[]`) {
			t.Errorf("expected empty results array, got %s", rec.Body.String())
		}

		expectError(t, do(t, h, http.MethodGet, "/api/search?q=+", nil), http.StatusBadRequest, "Search query required")
	})
}

func TestSettingsRoutes(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/users/u1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	defaults := decodeBody[models.Settings](t, rec)
	if defaults != models.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", defaults)
	}

	rec = do(t, h, http.MethodPut, "/api/users/u1/settings", map[string]any{"defaultVolume": 30, "repeatMode": "one"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	saved := decodeBody[models.Settings](t, rec)
	if saved.DefaultVolume != 30 || saved.RepeatMode != models.RepeatOne || saved.Theme != defaults.Theme {
		t.Errorf("unexpected saved settings %+v", saved)
	}

	rec = do(t, h, http.MethodGet, "/api/users/u1/settings", nil)
	if got := decodeBody[models.Settings](t, rec); got != saved {
		t.Errorf("expected %+v to persist, got %+v", saved, got)
	}

	tests := []struct {
		name string
		body any
	}{
		{"volume out of range", map[string]any{"defaultVolume": 150}},
		{"unknown repeat mode", map[string]any{"repeatMode": "sometimes"}},
		{"unknown theme", map[string]any{"theme": "neon"}},
		{"not json", "volume=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, do(t, h, http.MethodPut, "/api/users/u1/settings", tt.body), http.StatusBadRequest, "")
		})
	}
}

func TestCORSPreflightOnAPI(t *testing.T) {
	h := newTestServer(t, nil, nil)
	rec := do(t, h, http.MethodOptions, "/api/playlists/import", nil,
		"Origin", testOrigin, "Access-Control-Request-Method", http.MethodPost)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Errorf("missing allow-origin header: %v", rec.Header())
	}
}

func TestImportTracksShape(t *testing.T) {
	h := newTestServer(t, nil, nil)

	countFor := func(t *testing.T, userID string) (playlists, tracks int) {
		t.Helper()
		rec := do(t, h, http.MethodGet, "/api/playlists?userId="+userID, nil)
		playlists = len(decodeBody[[]models.Playlist](t, rec))
		rec = do(t, h, http.MethodGet, "/api/tracks", nil)
		tracks = len(decodeBody[[]models.Track](t, rec))
		return playlists, tracks
	}

	t.Run("null tracks is rejected", func(t *testing.T) {
		for _, body := range []string{
			`{"name":"x","userId":"ua","tracks":null}`,
			`{"name":"x","userId":"ua","tracks":"T1"}`,
			`{"name":"x","userId":"ua","tracks":{"title":"T1"}}`,
		} {
			expectError(t, do(t, h, http.MethodPost, "/api/playlists/import", body), http.StatusBadRequest, "name, userId and tracks[] required")
		}
		if p, tr := countFor(t, "ua"); p != 0 || tr != 0 {
			t.Errorf("expected nothing written, got %d playlists and %d tracks", p, tr)
		}
	})

	t.Run("missing tracks key imports an empty playlist", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/playlists/import", `{"name":"x","userId":"ub"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody[models.Playlist](t, rec); len(got.Tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(got.Tracks))
		}
	})

	t.Run("malformed entry is skipped", func(t *testing.T) {
		body := `{"name":"x","userId":"uc","tracks":[
			{"title":"T1","artist":"A1","url":"https://example.com/shape/1"},
			{"title":["bad"],"artist":"A0","url":"https://example.com/shape/0"},
			"not a track",
			{"title":"T2","artist":"A2","url":"https://example.com/shape/2","duration":"180"}
		]}`
		rec := do(t, h, http.MethodPost, "/api/playlists/import", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		got := decodeBody[models.Playlist](t, rec)
		if len(got.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(got.Tracks))
		}
		if got.Tracks[0].Title != "T1" || got.Tracks[1].Title != "T2" {
			t.Errorf("unexpected order %q, %q", got.Tracks[0].Title, got.Tracks[1].Title)
		}
		if got.Tracks[1].Duration != 180 {
			t.Errorf("expected numeric-string duration 180, got %d", got.Tracks[1].Duration)
		}
	})
}

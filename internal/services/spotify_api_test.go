package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/oauth2"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func track(id, name, artist string, ms int) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"artists":       []map[string]any{{"name": artist}},
		"album":         map[string]any{"name": "Album " + id, "images": []map[string]any{{"url": "img-" + id}}},
		"duration_ms":   ms,
		"preview_url":   "https://p.scdn.co/" + id,
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
		"uri":           "spotify:track:" + id,
	}
}

// fakeSpotify serves a small slice of the Web API. Requests without "Bearer good" get 401.
func fakeSpotify(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token":  "good",
			"token_type":    "Bearer",
			"refresh_token": "refresh",
			"expires_in":    3600,
		})
	})

	api := http.NewServeMux()
	api.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": "u1", "display_name": "Ada", "email": "ada@example.com",
			"images": []map[string]any{{"url": "avatar"}},
		})
	})
	api.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			writeJSON(w, map[string]any{
				"items": []map[string]any{{"id": "p1", "name": "One", "tracks": map[string]any{"total": 3}}},
				"next":  "more",
			})
			return
		}
		writeJSON(w, map[string]any{
			"items": []map[string]any{{"id": "p2", "name": "Two", "description": "second", "public": true}},
			"next":  nil,
		})
	})
	api.HandleFunc("/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p1", "name": "One", "tracks": map[string]any{"total": 3}})
	})
	api.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "100" {
			t.Errorf("expected page size 100, got %s", r.URL.Query().Get("limit"))
		}
		if r.URL.Query().Get("offset") == "0" {
			writeJSON(w, map[string]any{
				"items": []map[string]any{
					{"added_at": "2024-01-01T00:00:00Z", "track": track("t1", "First", "A", 61500)},
					{"added_at": "2024-01-02T00:00:00Z", "track": nil},
				},
				"next": "more",
			})
			return
		}
		writeJSON(w, map[string]any{
			"items": []map[string]any{{"track": track("t2", "Second", "B", 120000)}},
			"next":  nil,
		})
	})
	api.HandleFunc("/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []map[string]any{{"added_at": "yesterday", "track": track("s1", "Saved", "C", 1000)}}})
	})
	api.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("time_range"); got != "medium_term" {
			t.Errorf("expected medium_term, got %s", got)
		}
		writeJSON(w, map[string]any{"items": []map[string]any{track("top", "Top", "D", 1000)}})
	})
	api.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"tracks": map[string]any{"items": []map[string]any{
				track("x1", "Heroes (Live)", "Someone Else", 1000),
				track("x2", "Heroes", "David Bowie", 1000),
			}},
			"playlists": map[string]any{"items": []any{nil, map[string]any{"id": "sp", "name": "Found"}}},
			"artists":   map[string]any{"items": []map[string]any{{"id": "ar", "name": "David Bowie"}}},
		})
	})
	api.HandleFunc("/albums/al1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": "al1", "name": "Low", "images": []map[string]any{{"url": "low.jpg"}},
			"tracks": map[string]any{"items": []map[string]any{
				{"id": "l1", "name": "Speed of Life", "artists": []map[string]any{{"name": "David Bowie"}}, "duration_ms": 166000},
			}},
		})
	})
	api.HandleFunc("/artists/ar/top-tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("market") != "US" {
			t.Errorf("expected market US")
		}
		writeJSON(w, map[string]any{"tracks": []map[string]any{track("h", "Hit", "David Bowie", 1000)}})
	})

	mux.Handle("/v1/", http.StripPrefix("/v1", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		api.ServeHTTP(w, r)
	})))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, ts *httptest.Server, accessToken string) *SpotifyService {
	t.Helper()
	srv, err := NewSpotifyService(
		map[string]string{"client_id": "id", "client_secret": "secret"},
		WithBaseURL(ts.URL+"/v1"),
		WithEndpoint(oauth2.Endpoint{AuthURL: ts.URL + "/authorize", TokenURL: ts.URL + "/token"}),
		WithRateLimit(0),
	)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if accessToken != "" {
		if err := srv.Authenticate(context.Background(), map[string]string{"access_token": accessToken}); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}
	}
	return srv
}

func TestSpotifyAPI(t *testing.T) {
	ts := fakeSpotify(t)
	ctx := context.Background()
	srv := newTestService(t, ts, "good")

	t.Run("Profile", func(t *testing.T) {
		p, err := srv.Profile(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.ID != "u1" || p.Name != "Ada" || p.Email != "ada@example.com" || p.Image != "avatar" {
			t.Errorf("unexpected profile: %+v", p)
		}
	})

	t.Run("GetPlaylists follows pages", func(t *testing.T) {
		playlists, err := srv.GetPlaylists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].Description != "No description" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
		if playlists[1].Description != "second" || !playlists[1].Public {
			t.Errorf("unexpected second playlist: %+v", playlists[1])
		}
	})

	t.Run("PlaylistTracks skips missing items", func(t *testing.T) {
		tracks, err := srv.PlaylistTracks(ctx, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		first := tracks[0]
		if first.Title != "First" || first.Artist != "A" || first.Duration != 61 {
			t.Errorf("unexpected first track: %+v", first)
		}
		if first.URL != "https://open.spotify.com/track/t1" || first.PreviewURL != "https://p.scdn.co/t1" {
			t.Errorf("unexpected urls: %s %s", first.URL, first.PreviewURL)
		}
		if first.AddedAt != "2024-01-01T00:00:00Z" || first.Image != "img-t1" {
			t.Errorf("unexpected metadata: %+v", first)
		}
	})

	t.Run("ExportPlaylist", func(t *testing.T) {
		export, err := srv.ExportPlaylist(ctx, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		req := export.ImportRequest("user-1")
		if req.Name != "One" || req.UserID != "user-1" || len(req.Tracks) != 2 {
			t.Errorf("unexpected import request: %+v", req)
		}
		for _, raw := range req.Tracks {
			if !raw.Valid() {
				t.Errorf("expected importable track, got %+v", raw)
			}
		}
	})

	t.Run("SavedTracks", func(t *testing.T) {
		tracks, err := srv.SavedTracks(ctx, 500, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].AddedAt != "yesterday" {
			t.Errorf("unexpected saved tracks: %+v", tracks)
		}
	})

	t.Run("TopTracks", func(t *testing.T) {
		tracks, err := srv.TopTracks(ctx, 10, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "top" {
			t.Errorf("unexpected top tracks: %+v", tracks)
		}

		if _, err := srv.TopTracks(ctx, 10, "forever"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for bad range, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		results, err := srv.Search(ctx, "heroes", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results.Tracks) != 2 || len(results.Playlists) != 1 || len(results.Artists) != 1 {
			t.Errorf("unexpected result counts: %+v", results)
		}

		if _, err := srv.Search(ctx, " ", 10); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty query, got %v", err)
		}
	})

	t.Run("SearchTrack picks closest match", func(t *testing.T) {
		best, err := srv.SearchTrack(ctx, "Heroes", "David Bowie")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if best.ID != "x2" {
			t.Errorf("expected x2, got %s", best.ID)
		}
	})

	t.Run("AlbumTracks carry album", func(t *testing.T) {
		tracks, err := srv.AlbumTracks(ctx, "al1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].Album != "Low" || tracks[0].Image != "low.jpg" {
			t.Errorf("unexpected album tracks: %+v", tracks)
		}
		if tracks[0].URL != "https://open.spotify.com/track/l1" {
			t.Errorf("expected fallback url, got %s", tracks[0].URL)
		}
	})

	t.Run("ArtistTopTracks", func(t *testing.T) {
		tracks, err := srv.ArtistTopTracks(ctx, "ar")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title != "Hit" {
			t.Errorf("unexpected artist tracks: %+v", tracks)
		}
	})

	t.Run("rejected token", func(t *testing.T) {
		bad := srv.ForToken(ctx, &oauth2.Token{AccessToken: "stale", TokenType: "Bearer"})
		if _, err := bad.Profile(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if _, err := srv.Profile(ctx); err != nil {
			t.Errorf("ForToken must not affect the original service: %v", err)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		anon := newTestService(t, ts, "")
		if _, err := anon.Profile(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("upstream error", func(t *testing.T) {
		if _, err := srv.Playlist(ctx, "missing"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestSpotifyExchange(t *testing.T) {
	ts := fakeSpotify(t)
	srv := newTestService(t, ts, "")

	t.Run("exchanges code", func(t *testing.T) {
		token, err := srv.Exchange(context.Background(), "code")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token.AccessToken != "good" || token.RefreshToken != "refresh" {
			t.Errorf("unexpected token: %+v", token)
		}
	})

	t.Run("empty code", func(t *testing.T) {
		if _, err := srv.Exchange(context.Background(), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("authenticate with code binds token", func(t *testing.T) {
		if err := srv.Authenticate(context.Background(), map[string]string{"auth_code": "code"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := srv.Profile(context.Background()); err != nil {
			t.Errorf("expected authenticated request to succeed, got %v", err)
		}
	})
}

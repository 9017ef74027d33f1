package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	th "github.com/desertthunder/playdeck/internal/testing"
)

func TestBulkImport(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		playlists   int
		failing     []string
		workers     int
		wantSuccess int
		wantFailed  int
	}{
		{name: "single playlist", playlists: 1, wantSuccess: 1},
		{name: "several playlists", playlists: 4, workers: 2, wantSuccess: 4},
		{name: "worker count is capped", playlists: 3, workers: 50, wantSuccess: 3},
		{name: "partial failure", playlists: 3, failing: []string{"p2"}, wantSuccess: 2, wantFailed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer, s := newImporter(t)

			exports := make([]*services.PlaylistExport, 0, tt.playlists)
			ids := make([]string, 0, tt.playlists)
			for i := 1; i <= tt.playlists; i++ {
				id := fmt.Sprintf("p%d", i)
				exports = append(exports, export(id, "Playlist "+id, th.RawTracks(id, 2)))
				ids = append(ids, id)
			}
			srv := th.NewMockService(exports...)
			for _, id := range tt.failing {
				srv.Errors[id] = shared.ErrAPIRequest
			}

			progress := make(chan ProgressUpdate, 100)
			result, err := importer.BulkImport(ctx, progress, srv, ids, BulkImportOpts{
				UserID:     "user-1",
				NumWorkers: tt.workers,
				RateLimit:  1000,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result.Total != tt.playlists {
				t.Errorf("expected total %d, got %d", tt.playlists, result.Total)
			}
			if result.Succeeded != tt.wantSuccess || result.Failed != tt.wantFailed {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantSuccess, tt.wantFailed, result.Succeeded, result.Failed)
			}
			if len(result.Results) != tt.playlists {
				t.Errorf("expected %d results, got %d", tt.playlists, len(result.Results))
			}
			if result.ManifestPath != "" {
				t.Errorf("expected no manifest, got %s", result.ManifestPath)
			}

			for _, res := range result.Results {
				if res.Error != nil {
					if !errors.Is(res.Error, shared.ErrAPIRequest) {
						t.Errorf("expected wrapped ErrAPIRequest, got %v", res.Error)
					}
					continue
				}
				if res.Result.Playlist.UserID != "user-1" || len(res.Result.Playlist.TrackIDs) != 2 {
					t.Errorf("unexpected playlist for %s: %+v", res.SourceID, res.Result.Playlist)
				}
			}

			stored, err := s.playlists.ListByUser(ctx, "user-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(stored) != tt.wantSuccess {
				t.Errorf("expected %d stored playlists, got %d", tt.wantSuccess, len(stored))
			}

			if len(drain(progress)) == 0 {
				t.Error("expected progress updates")
			}
		})
	}
}

func TestBulkImportManifest(t *testing.T) {
	importer, _ := newImporter(t)
	srv := th.NewMockService(export("p1", "One", th.RawTracks("one", 3)))
	srv.Errors["p2"] = shared.ErrNotAuthenticated

	path := filepath.Join(t.TempDir(), "out", "manifest.json")
	result, err := importer.BulkImport(context.Background(), nil, srv, []string{"p1", "p2"}, BulkImportOpts{
		UserID:       "u",
		RateLimit:    1000,
		ManifestPath: path,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.ManifestPath != path {
		t.Errorf("expected manifest at %s, got %s", path, result.ManifestPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}

	var m formatter.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}
	if m.Source != "mock" || m.Total != 2 || m.Succeeded != 1 || m.Failed != 1 {
		t.Errorf("unexpected manifest summary: %+v", m)
	}

	byID := map[string]formatter.ManifestEntry{}
	for _, e := range m.Entries {
		byID[e.SourceID] = e
	}
	if e := byID["p1"]; e.Status != "success" || e.Tracks != 3 || e.PlaylistID == "" {
		t.Errorf("unexpected success entry: %+v", e)
	}
	if e := byID["p2"]; e.Status != "failed" || e.Error == "" {
		t.Errorf("unexpected failed entry: %+v", e)
	}
}

func TestBulkImportErrors(t *testing.T) {
	importer, _ := newImporter(t)

	t.Run("nil service", func(t *testing.T) {
		_, err := importer.BulkImport(context.Background(), nil, nil, []string{"p"}, BulkImportOpts{UserID: "u"})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := importer.BulkImport(context.Background(), nil, th.NewMockService(), []string{"p"}, BulkImportOpts{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		srv := th.NewMockService(export("p1", "One", th.RawTracks("one", 1)))
		result, err := importer.BulkImport(ctx, nil, srv, []string{"p1"}, BulkImportOpts{UserID: "u"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if result == nil || result.Succeeded != 0 {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("empty id list", func(t *testing.T) {
		result, err := importer.BulkImport(context.Background(), nil, th.NewMockService(), nil, BulkImportOpts{UserID: "u"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Total != 0 || len(result.Results) != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

func TestPlaylistDoc(t *testing.T) {
	a := models.Track{ID: "a", Title: "A"}
	b := models.Track{ID: "b", Title: "B"}

	doc := toPlaylistDoc(&models.Playlist{Name: "Mix", UserID: "u1", TrackIDs: []string{"b", "gone", "a", "b"}})
	p := doc.playlist(map[string]models.Track{"a": a, "b": b})

	want := []string{"b", "a", "b"}
	if len(p.Tracks) != len(want) {
		t.Fatalf("expected %d tracks, got %d", len(want), len(p.Tracks))
	}
	for i, id := range want {
		if p.Tracks[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, p.Tracks[i].ID)
		}
	}
	if len(p.TrackIDs) != 4 {
		t.Errorf("expected all references kept, got %v", p.TrackIDs)
	}

	empty := toPlaylistDoc(&models.Playlist{Name: "Empty", UserID: "u1"})
	if empty.TrackIDs == nil {
		t.Error("trackIds should be stored as an empty array")
	}
}

func TestTrackDoc(t *testing.T) {
	now := time.Now().UTC()
	track := models.Track{
		ID: "t1", Title: "T", Artist: "A", Album: "Al", Duration: 200,
		URL: "u", PreviewURL: "p", Image: "i", Genre: "g", Plays: 3,
		CreatedAt: now, UpdatedAt: now,
	}
	if got := toTrackDoc(&track).track(); got != track {
		t.Errorf("expected %+v, got %+v", track, got)
	}
}

// TestMongoStores runs against a live server when PLAYDECK_MONGO_URI is set.
func TestMongoStores(t *testing.T) {
	uri := os.Getenv("PLAYDECK_MONGO_URI")
	if uri == "" {
		t.Skip("PLAYDECK_MONGO_URI not set")
	}

	ctx := context.Background()
	db, disconnect, err := OpenMongo(ctx, uri, fmt.Sprintf("playdeck_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = disconnect(context.Background())
	})

	tracks, err := NewMongoTrackStore(db)
	if err != nil {
		t.Fatalf("failed to create track store: %v", err)
	}
	playlists, err := NewMongoPlaylistStore(db, tracks)
	if err != nil {
		t.Fatalf("failed to create playlist store: %v", err)
	}

	a := newTrack(1)
	if err := tracks.Create(ctx, a); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	if err := tracks.Create(ctx, newTrack(1)); !errors.Is(err, shared.ErrDuplicateTrack) {
		t.Errorf("expected ErrDuplicateTrack, got %v", err)
	}

	got, err := tracks.GetByURL(ctx, a.URL)
	if err != nil || got.ID != a.ID {
		t.Fatalf("expected %s by url, got %v (%v)", a.ID, got, err)
	}
	if _, err := tracks.GetByURL(ctx, "missing"); !errors.Is(err, shared.ErrTrackNotFound) {
		t.Errorf("expected ErrTrackNotFound, got %v", err)
	}

	p := &models.Playlist{Name: "Mix", UserID: "u1", TrackIDs: []string{a.ID, a.ID}}
	if err := playlists.Create(ctx, p); err != nil {
		t.Fatalf("failed to create playlist: %v", err)
	}

	b := newTrack(2)
	if err := tracks.Create(ctx, b); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	appended, err := playlists.AppendTrack(ctx, p.ID, b.ID)
	if err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if len(appended.Tracks) != 3 || appended.Tracks[2].ID != b.ID {
		t.Errorf("unexpected tracks after append: %v", appended.TrackIDs)
	}

	list, err := playlists.ListByUser(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one playlist, got %d (%v)", len(list), err)
	}
	if _, err := playlists.Get(ctx, "missing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
		t.Errorf("expected ErrPlaylistNotFound, got %v", err)
	}
}

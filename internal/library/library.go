// Package library assembles playlists from external track descriptors and derives
// read-only views over the stored catalog.
//
// The [Reconciler] turns an [models.ImportRequest] into a stored playlist, reusing
// tracks that already exist by URL. The [Catalog] aggregates albums and artists
// and ranks local search results.
//
// Both work against the [TrackStore] and [PlaylistStore] contracts, which the
// SQLite and Mongo repositories implement.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// TrackStore persists tracks keyed by URL.
//
// Create returns [shared.ErrDuplicateTrack] when another live track owns the URL.
// Get and GetByURL return [shared.ErrTrackNotFound] when nothing matches.
type TrackStore interface {
	Create(ctx context.Context, track *models.Track) error
	Get(ctx context.Context, id string) (*models.Track, error)
	GetByURL(ctx context.Context, url string) (*models.Track, error)
	List(ctx context.Context, limit int) ([]models.Track, error)
}

// PlaylistStore persists playlists. Reads return playlists populated with their tracks.
type PlaylistStore interface {
	Create(ctx context.Context, playlist *models.Playlist) error
	Get(ctx context.Context, id string) (*models.Playlist, error)
	ListByUser(ctx context.Context, userID string) ([]models.Playlist, error)
	AppendTrack(ctx context.Context, playlistID, trackID string) (*models.Playlist, error)
}

// Reconciler imports playlists, deduplicating tracks by URL.
type Reconciler struct {
	tracks    TrackStore
	playlists PlaylistStore
	logger    *log.Logger
}

// NewReconciler creates a Reconciler over the given stores. A nil logger discards output.
func NewReconciler(tracks TrackStore, playlists PlaylistStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{tracks: tracks, playlists: playlists, logger: logger}
}

// Import stores a new playlist built from req and returns it populated.
//
// Descriptors missing a title, artist or url are skipped. Every other descriptor
// resolves to exactly one stored track: an existing track with the same URL is
// reused, otherwise one is created. Repeated URLs in a request reference the same
// track more than once.
//
// A store failure aborts the import before the playlist is written. Tracks created
// up to that point are kept. Calling Import twice creates two playlists.
func (r *Reconciler) Import(ctx context.Context, req models.ImportRequest) (*models.Playlist, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.Tracks))
	skipped, created := 0, 0
	for i, raw := range req.Tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !raw.Valid() {
			skipped++
			r.logger.Debug("skipping incomplete track", "index", i, "title", raw.Title, "url", raw.URL)
			continue
		}

		track, isNew, err := r.resolve(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to import track %d (%s): %w", i, raw.URL, err)
		}
		if isNew {
			created++
		}
		ids = append(ids, track.ID)
	}

	playlist := &models.Playlist{
		Name:        req.Name,
		Description: req.Description,
		UserID:      req.UserID,
		Public:      req.Public,
		TrackIDs:    ids,
	}
	if err := r.playlists.Create(ctx, playlist); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	r.logger.Info("playlist imported",
		"id", playlist.ID, "name", playlist.Name,
		"tracks", len(ids), "created", created, "skipped", skipped)

	populated, err := r.playlists.Get(ctx, playlist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load imported playlist: %w", err)
	}
	return populated, nil
}

// resolve returns the stored track for raw's URL, creating it when absent.
//
// A create that loses a race on the URL reads back the winner.
func (r *Reconciler) resolve(ctx context.Context, raw models.RawTrack) (*models.Track, bool, error) {
	existing, err := r.tracks.GetByURL(ctx, raw.URL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrTrackNotFound) {
		return nil, false, err
	}

	track := raw.ToTrack()
	err = r.tracks.Create(ctx, track)
	if err == nil {
		return track, true, nil
	}
	if !errors.Is(err, shared.ErrDuplicateTrack) {
		return nil, false, err
	}

	winner, err := r.tracks.GetByURL(ctx, raw.URL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-read duplicate track: %w", err)
	}
	return winner, false, nil
}

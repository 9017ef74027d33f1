package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

const playlistColumns = `id, user_id, name, description, image, public, created_at, updated_at`

// PlaylistRepository persists [models.Playlist] rows and their ordered track references.
//
// Membership lives in playlist_tracks keyed by (playlist_id, position), so duplicates are allowed
// and order is preserved. Reads return playlists populated with live tracks.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a playlist and its track references in one transaction.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	id := shared.GenerateID()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO playlists (id, sequence, user_id, name, description, image, public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		id, sequence, playlist.UserID, playlist.Name, playlist.Description, playlist.Image, playlist.Public, now, now,
	); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	for pos, trackID := range playlist.TrackIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_tracks (playlist_id, position, track_id, added_at) VALUES (?, ?, ?, ?)`,
			id, pos, trackID, now,
		); err != nil {
			return fmt.Errorf("failed to insert playlist track %s: %w", trackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}

	playlist.ID = id
	playlist.CreatedAt = now
	playlist.UpdatedAt = now
	return nil
}

// Get retrieves a playlist by ID populated with its tracks in order.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`

	playlist, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.populate(ctx, playlist); err != nil {
		return nil, err
	}
	return playlist, nil
}

// ListByUser returns the user's playlists, each populated, in creation order.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? AND deleted_at IS NULL ORDER BY sequence ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := []models.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		playlists = append(playlists, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for i := range playlists {
		if err := r.populate(ctx, &playlists[i]); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// AppendTrack adds a reference to trackID at the end of the playlist and returns it populated.
func (r *PlaylistRepository) AppendTrack(ctx context.Context, playlistID, trackID string) (*models.Playlist, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM playlists WHERE id = ? AND deleted_at IS NULL)`, playlistID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check playlist: %w", err)
	}
	if !exists {
		return nil, shared.ErrPlaylistNotFound
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tracks WHERE id = ? AND deleted_at IS NULL)`, trackID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check track: %w", err)
	}
	if !exists {
		return nil, shared.ErrTrackNotFound
	}

	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, position, track_id, added_at)
		SELECT ?, COALESCE(MAX(position), -1) + 1, ?, ? FROM playlist_tracks WHERE playlist_id = ?
	`, playlistID, trackID, now, playlistID); err != nil {
		return nil, fmt.Errorf("failed to append track: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, now, playlistID); err != nil {
		return nil, fmt.Errorf("failed to touch playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return r.Get(ctx, playlistID)
}

// Update modifies playlist metadata. Track membership is not touched.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE playlists
		SET name = ?, description = ?, image = ?, public = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, playlist.Name, playlist.Description, playlist.Image, playlist.Public, now, playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	if err := expectAffected(result, shared.ErrPlaylistNotFound, playlist.ID); err != nil {
		return err
	}
	playlist.UpdatedAt = now
	return nil
}

// Delete soft-deletes a playlist by ID
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectAffected(result, shared.ErrPlaylistNotFound, id)
}

// populate fills TrackIDs and Tracks from playlist_tracks in position order.
//
// References to soft-deleted tracks stay in TrackIDs but are left out of Tracks.
func (r *PlaylistRepository) populate(ctx context.Context, p *models.Playlist) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pt.track_id, t.deleted_at IS NULL,
			t.id, t.title, t.artist, t.album, t.duration, t.url, t.preview_url, t.image, t.genre, t.plays, t.created_at, t.updated_at
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	p.TrackIDs = []string{}
	p.Tracks = []models.Track{}
	for rows.Next() {
		var (
			ref  string
			live bool
			t    models.Track
		)
		if err := rows.Scan(&ref, &live,
			&t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration,
			&t.URL, &t.PreviewURL, &t.Image, &t.Genre, &t.Plays,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan playlist track: %w", err)
		}
		p.TrackIDs = append(p.TrackIDs, ref)
		if live {
			p.Tracks = append(p.Tracks, t)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func scanPlaylist(s scanner) (*models.Playlist, error) {
	var p models.Playlist
	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Image, &p.Public, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return &p, nil
}

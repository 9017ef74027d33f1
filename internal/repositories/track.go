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

const trackColumns = `id, title, artist, album, duration, url, preview_url, image, genre, plays, created_at, updated_at`

// TrackRepository persists [models.Track] rows in SQLite.
//
// A partial unique index on url (live rows only) backs the one-track-per-URL rule;
// a conflicting insert returns [shared.ErrDuplicateTrack].
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new track with a generated ID and sequence.
func (r *TrackRepository) Create(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	id := shared.GenerateID()

	query := `
		INSERT INTO tracks (id, sequence, title, artist, album, duration, url, preview_url, image, genre, plays, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		id, sequence,
		track.Title, track.Artist, track.Album, track.Duration,
		track.URL, track.PreviewURL, track.Image, track.Genre, track.Plays,
		now, now,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, track.URL)
		}
		return fmt.Errorf("failed to insert track: %w", err)
	}

	track.ID = id
	track.CreatedAt = now
	track.UpdatedAt = now
	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(ctx context.Context, id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByURL retrieves the live track with the given URL.
func (r *TrackRepository) GetByURL(ctx context.Context, url string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE url = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, url))
}

// List returns up to limit tracks in insertion order. A non-positive limit returns all.
func (r *TrackRepository) List(ctx context.Context, limit int) ([]models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL ORDER BY sequence ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// ListByArtist returns all live tracks by artist in insertion order.
func (r *TrackRepository) ListByArtist(ctx context.Context, artist string) ([]models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE artist = ? AND deleted_at IS NULL ORDER BY sequence ASC`
	return r.query(ctx, query, artist)
}

// Update modifies the mutable fields of an existing track.
func (r *TrackRepository) Update(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, url = ?, preview_url = ?, image = ?, genre = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		track.Title, track.Artist, track.Album, track.Duration,
		track.URL, track.PreviewURL, track.Image, track.Genre,
		now, track.ID,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, track.URL)
		}
		return fmt.Errorf("failed to update track: %w", err)
	}

	if err := expectAffected(result, shared.ErrTrackNotFound, track.ID); err != nil {
		return err
	}

	track.UpdatedAt = now
	return nil
}

// IncrementPlays bumps the play counter of a track.
func (r *TrackRepository) IncrementPlays(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tracks SET plays = plays + 1 WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to increment plays: %w", err)
	}
	return expectAffected(result, shared.ErrTrackNotFound, id)
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectAffected(result, shared.ErrTrackNotFound, id)
}

func (r *TrackRepository) query(ctx context.Context, query string, args ...any) ([]models.Track, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.Track]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return track, err
}

func scanTrack(s scanner) (*models.Track, error) {
	var t models.Track
	err := s.Scan(
		&t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration,
		&t.URL, &t.PreviewURL, &t.Image, &t.Genre, &t.Plays,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}
	return &t, nil
}

// expectAffected maps a zero-row update to notFound.
func expectAffected(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

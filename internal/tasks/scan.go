package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/dhowden/tag"
)

const unknownArtist = "Unknown Artist"

// AudioExtensions lists the file extensions [ScanLibrary] reads.
var AudioExtensions = []string{".mp3", ".flac", ".m4a", ".ogg"}

func isAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ScanLibrary walks dir and builds an import descriptor for every audio file it can read.
//
// Tracks are keyed by a file:// URL of the absolute path so rescanning reuses them.
// Files without tags fall back to the base name as title. Unreadable files are skipped
// and returned in the second value.
func ScanLibrary(ctx context.Context, dir string) ([]models.RawTrack, []string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, dir)
	}

	var tracks []models.RawTrack
	var skipped []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			skipped = append(skipped, path)
			return nil
		}
		if d.IsDir() || !isAudio(path) {
			return nil
		}

		track, err := readTrack(path)
		if err != nil {
			skipped = append(skipped, path)
			return nil
		}
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return tracks, skipped, nil
}

func readTrack(path string) (models.RawTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.RawTrack{}, err
	}
	defer f.Close()

	track := models.RawTrack{
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Artist: unknownArtist,
		URL:    "file://" + filepath.ToSlash(path),
	}

	meta, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return track, nil
	}
	if err != nil {
		return models.RawTrack{}, err
	}

	if t := strings.TrimSpace(meta.Title()); t != "" {
		track.Title = t
	}
	if a := strings.TrimSpace(meta.Artist()); a != "" {
		track.Artist = a
	} else if a := strings.TrimSpace(meta.AlbumArtist()); a != "" {
		track.Artist = a
	}
	track.Album = strings.TrimSpace(meta.Album())
	track.Genre = strings.TrimSpace(meta.Genre())
	return track, nil
}

// ImportLibrary scans dir and imports every readable file as one playlist named name.
func (e *Importer) ImportLibrary(ctx context.Context, progress chan<- ProgressUpdate, dir, name, userID string) (*ImportResult, error) {
	e.sendProgress(progress, scanUpdate(1, 2, dir))
	tracks, skipped, err := ScanLibrary(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, path := range skipped {
		e.logger.Warn("skipping unreadable file", "path", path)
	}
	e.sendProgress(progress, scannedUpdate(2, 2, len(tracks)))

	if name == "" {
		name = filepath.Base(dir)
	}
	req := models.ImportRequest{
		Name:        name,
		Description: fmt.Sprintf("Imported from %s", dir),
		UserID:      userID,
		Tracks:      tracks,
	}

	result, err := e.reconcile(ctx, progress, dir, req)
	if err != nil {
		return nil, err
	}
	result.Skipped += len(skipped)
	return result, nil
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

// Reconciler turns an import request into a stored, populated playlist.
//
// Satisfied by [library.Reconciler].
type Reconciler interface {
	Import(ctx context.Context, req models.ImportRequest) (*models.Playlist, error)
}

// ImportResult describes one completed import.
type ImportResult struct {
	Source   string           // Provider playlist ID or scanned directory
	Playlist *models.Playlist // Stored playlist, populated
	Received int              // Descriptors handed to the reconciler
	Skipped  int              // Descriptors dropped as incomplete
}

// DiffResult contains track comparison details between a provider playlist and a local one.
type DiffResult struct {
	Source       *services.PlaylistExport // Provider playlist
	Local        *models.Playlist         // Local playlist
	MatchedCount int                      // Tracks found in both
	Missing      []models.RawTrack        // Tracks in source but not local
	Extra        []models.Track           // Tracks local but not in source
}

// Importer runs imports against a [Reconciler].
type Importer struct {
	reconciler Reconciler
	logger     *log.Logger
}

// NewImporter creates an Importer. A nil logger discards output.
func NewImporter(r Reconciler, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Importer{reconciler: r, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Importer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// resolve exports the playlist with the given ID, or the first playlist whose name matches.
func (e *Importer) resolve(ctx context.Context, srv services.Service, idOrName string) (*services.PlaylistExport, error) {
	export, err := srv.ExportPlaylist(ctx, idOrName)
	if err == nil {
		return export, nil
	}
	if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTokenExpired) {
		return nil, err
	}

	playlists, listErr := srv.GetPlaylists(ctx)
	if listErr != nil {
		return nil, fmt.Errorf("%w: failed to get playlists: %v", shared.ErrAPIRequest, listErr)
	}

	var matchedID string
	for _, pl := range playlists {
		if pl.Name == idOrName {
			matchedID = pl.ID
			break
		}
	}
	if matchedID == "" {
		return nil, fmt.Errorf("%w: no playlist found with ID or name '%s'", shared.ErrPlaylistNotFound, idOrName)
	}

	export, err = srv.ExportPlaylist(ctx, matchedID)
	if err != nil {
		return nil, fmt.Errorf("failed to export playlist: %w", err)
	}
	return export, nil
}

// ImportPlaylist copies a provider playlist into the library for userID.
func (e *Importer) ImportPlaylist(ctx context.Context, progress chan<- ProgressUpdate, srv services.Service, idOrName, userID string) (*ImportResult, error) {
	if srv == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 2, srv.Name()))
	export, err := e.resolve(ctx, srv, idOrName)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, foundPlaylistUpdate(2, 2, export))

	return e.reconcile(ctx, progress, export.Playlist.ID, export.ImportRequest(userID))
}

func (e *Importer) reconcile(ctx context.Context, progress chan<- ProgressUpdate, source string, req models.ImportRequest) (*ImportResult, error) {
	e.sendProgress(progress, reconcileUpdate(1, 2, req.Name, len(req.Tracks)))

	playlist, err := e.reconciler.Import(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to import playlist: %w", err)
	}

	result := &ImportResult{
		Source:   source,
		Playlist: playlist,
		Received: len(req.Tracks),
		Skipped:  len(req.Tracks) - len(playlist.TrackIDs),
	}
	e.logger.Info("imported playlist", "source", source, "playlist", playlist.ID, "tracks", len(playlist.TrackIDs), "skipped", result.Skipped)
	e.sendProgress(progress, createPlaylistUpdate(2, 2, playlist))
	return result, nil
}

// Diff compares a provider playlist with a local playlist.
func (e *Importer) Diff(ctx context.Context, progress chan<- ProgressUpdate, srv services.Service, sourceID string, local *models.Playlist) (*DiffResult, error) {
	if srv == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if local == nil {
		return nil, fmt.Errorf("%w: local playlist is required", shared.ErrInvalidInput)
	}

	e.sendProgress(progress, fetchSourceUpdate(1, 2, srv.Name()))
	export, err := e.resolve(ctx, srv, sourceID)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{Source: export, Local: local}

	e.sendProgress(progress, buildMapsUpdate(1, 2))
	localURLs := make(map[string]bool, len(local.Tracks))
	localKeys := make(map[string]bool, len(local.Tracks))
	for _, t := range local.Tracks {
		localURLs[t.URL] = true
		localKeys[trackKey(t.Title, t.Artist)] = true
	}
	sourceURLs := make(map[string]bool, len(export.Tracks))
	sourceKeys := make(map[string]bool, len(export.Tracks))
	for _, t := range export.Tracks {
		sourceURLs[t.URL] = true
		sourceKeys[trackKey(t.Title, t.Artist)] = true
	}

	e.sendProgress(progress, compareUpdate(2, 2))
	for _, t := range export.Tracks {
		if (t.URL != "" && localURLs[t.URL]) || localKeys[trackKey(t.Title, t.Artist)] {
			result.MatchedCount++
		} else {
			result.Missing = append(result.Missing, t)
		}
	}
	for _, t := range local.Tracks {
		if !(t.URL != "" && sourceURLs[t.URL]) && !sourceKeys[trackKey(t.Title, t.Artist)] {
			result.Extra = append(result.Extra, t)
		}
	}
	return result, nil
}

// trackKey lowercases title and artist and drops punctuation so near-identical spellings compare equal.
func trackKey(title, artist string) string {
	clean := func(s string) string {
		s = strings.Map(func(r rune) rune {
			switch {
			case unicode.IsLetter(r), unicode.IsDigit(r):
				return unicode.ToLower(r)
			case unicode.IsSpace(r):
				return ' '
			default:
				return -1
			}
		}, s)
		return strings.Join(strings.Fields(s), " ")
	}
	return clean(title) + "|" + clean(artist)
}

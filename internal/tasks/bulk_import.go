package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/time/rate"
)

// BulkImportOpts contains configuration for bulk playlist imports.
type BulkImportOpts struct {
	UserID       string  // Owner of the created playlists
	NumWorkers   int     // Concurrent reconcilers (default: 5, max: 10)
	RateLimit    float64 // Provider fetches per second (default: 5)
	ManifestPath string  // Manifest destination; empty skips the manifest
}

// PlaylistImportResult is the outcome for one source playlist.
type PlaylistImportResult struct {
	SourceID string
	Name     string
	Result   *ImportResult
	Error    error
}

// BulkImportResult summarizes a bulk import.
type BulkImportResult struct {
	Total        int
	Succeeded    int
	Failed       int
	Results      []PlaylistImportResult
	ManifestPath string
}

type importJob struct {
	sourceID string
	export   *services.PlaylistExport
}

// BulkImport imports many provider playlists concurrently.
//
// Provider fetches are paced by a rate limiter on a single producer; reconciliation runs on a
// bounded worker pool. A failing playlist is recorded and the rest continue. Results arrive in
// completion order.
func (e *Importer) BulkImport(ctx context.Context, prog chan<- ProgressUpdate, srv services.Service, ids []string, opts BulkImportOpts) (*BulkImportResult, error) {
	if srv == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: user ID is required", shared.ErrInvalidInput)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	result := &BulkImportResult{
		Total:   len(ids),
		Results: make([]PlaylistImportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan importJob, len(ids))
	results := make(chan PlaylistImportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.importWorker(ctx, &wg, jobs, results, opts.UserID)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			export, err := srv.ExportPlaylist(ctx, id)
			if err != nil {
				results <- PlaylistImportResult{
					SourceID: id,
					Name:     fmt.Sprintf("Unknown (%s)", id),
					Error:    fmt.Errorf("failed to fetch playlist: %w", err),
				}
				continue
			}

			e.sendProgress(prog, importingUpdate(i+1, len(ids), export.Playlist.Name))
			jobs <- importJob{sourceID: id, export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Error == nil {
			result.Succeeded++
			e.sendProgress(prog, importCompletedUpdate(completed, len(ids), res.Name, len(res.Result.Playlist.TrackIDs)))
		} else {
			result.Failed++
			e.logger.Warn("playlist import failed", "source", res.SourceID, "err", res.Error)
			e.sendProgress(prog, importFailedUpdate(completed, len(ids), res.Name, res.Error))
		}
	}

	if opts.ManifestPath != "" {
		if err := formatter.WriteManifest(e.manifest(srv.Name(), result), opts.ManifestPath); err != nil {
			return result, fmt.Errorf("import completed but failed to write manifest: %w", err)
		}
		result.ManifestPath = opts.ManifestPath
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Importer) importWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan importJob, results chan<- PlaylistImportResult, userID string) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := PlaylistImportResult{SourceID: job.sourceID, Name: job.export.Playlist.Name}
		res.Result, res.Error = e.reconcile(ctx, nil, job.sourceID, job.export.ImportRequest(userID))
		results <- res
	}
}

func (e *Importer) manifest(source string, r *BulkImportResult) formatter.Manifest {
	m := formatter.Manifest{
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Entries:   make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{SourceID: res.SourceID, Name: res.Name, Status: "success"}
		if res.Error != nil {
			entry.Status = "failed"
			entry.Error = res.Error.Error()
		} else {
			entry.PlaylistID = res.Result.Playlist.ID
			entry.Tracks = len(res.Result.Playlist.TrackIDs)
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

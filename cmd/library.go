package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// LibraryScan reads the tags of every audio file under dir and imports them as one playlist.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.StringArg("dir")
	if dir == "" {
		return fmt.Errorf("%w: directory is required", shared.ErrMissingArgument)
	}

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	progress := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go r.printProgress(progress, done)

	result, err := st.importer(r.logger).ImportLibrary(ctx, progress, dir, cmd.String("name"), cmd.String("user"))
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("✓ Imported %s\n", result.Playlist.Name)
	r.writePlain("  ID: %s\n", result.Playlist.ID)
	r.writePlain("  Tracks: %d of %d files (%d skipped)\n", len(result.Playlist.Tracks), result.Received, result.Skipped)
	return nil
}

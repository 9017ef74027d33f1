package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/playdeck/internal/formatter"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistImport reads an import request ({name, description, userId, tracks[]}) from a JSON
// file and reconciles it into the library. --user overrides the file's userId.
func (r *Runner) PlaylistImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: import file is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	var req models.ImportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("%w: %s is not an import request: %v", shared.ErrInvalidInput, path, err)
	}
	if user := cmd.String("user"); user != "" {
		req.UserID = user
	}

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	r.logger.Info("importing playlist", "file", path, "tracks", len(req.Tracks))
	playlist, err := st.reconciler(r.logger).Import(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to import playlist: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlain("✓ Imported %s\n", playlist.Name)
	r.writePlain("  ID: %s\n", playlist.ID)
	r.writePlain("  Tracks: %d of %d\n", len(playlist.Tracks), len(req.Tracks))
	return nil
}

// PlaylistList prints every playlist owned by --user.
func (r *Runner) PlaylistList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	playlists, err := st.playlists.ListByUser(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d (%s)\n", len(p.Tracks), shared.FormatDuration(p.Duration()))
		r.writePlain("   Visibility: %s\n\n", shared.VisibilityString(p.Public))
	}
	return nil
}

// PlaylistExport writes a playlist in the chosen format.
//
// Markdown exports go to a directory with the cover image next to the README.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	playlist, err := st.playlists.Get(ctx, id)
	if err != nil {
		return err
	}

	if format == formatter.Markdown {
		dir := cmd.String("output")
		if dir == "" {
			dir = playlist.ID
		}
		result, err := formatter.WriteMarkdownExport(ctx, playlist, dir)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			r.logger.Warn(w)
		}
		for _, f := range result.Files {
			r.writePlain("✓ Wrote %s\n", f)
		}
		return nil
	}

	path, err := formatter.WriteExport(playlist, format, cmd.String("output"))
	if err != nil {
		return err
	}
	r.logger.Info("playlist exported", "id", playlist.ID, "format", format, "path", path)
	return r.writePlain("✓ Exported %s (%d tracks) to %s\n", playlist.Name, len(playlist.Tracks), path)
}

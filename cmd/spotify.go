package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/playdeck/internal/server"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const (
	defaultTokenFile = "./tmp/spotify_tokens.json"
	defaultTokenKey  = "cli"
	authTimeout      = 2 * time.Minute
)

var errSpotifyNotConfigured = fmt.Errorf("%w: set SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET or credentials.spotify in the config",
	shared.ErrMissingCredentials)

// tokenStore is where the CLI keeps Spotify tokens between runs.
func (r *Runner) tokenStore() *services.FileTokenStore {
	path := r.config.Tokens.File
	if path == "" {
		path = defaultTokenFile
	}
	return services.NewFileTokenStore(path)
}

// spotifyClient binds the stored token for user (or the default CLI key) to the Spotify client.
// Refreshed tokens are written back to the token file.
func (r *Runner) spotifyClient(ctx context.Context, user string) (*services.SpotifyService, error) {
	if r.spotify == nil {
		return nil, errSpotifyNotConfigured
	}

	store := r.tokenStore()
	var (
		key string
		tok *oauth2.Token
	)
	for _, k := range []string{user, defaultTokenKey} {
		if k == "" {
			continue
		}
		t, err := store.Load(ctx, k)
		if err == nil {
			key, tok = k, t
			break
		}
		if !errors.Is(err, shared.ErrTokenNotFound) {
			return nil, err
		}
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: run `playdeck spotify auth` first", shared.ErrNotAuthenticated)
	}

	return r.spotify.ForTokenWithRefresh(ctx, tok, func(t *oauth2.Token) {
		if err := store.Save(context.WithoutCancel(ctx), key, t); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
		} else {
			r.logger.Debug("refreshed spotify token saved", "key", key)
		}
	}), nil
}

// SpotifyAuth runs the authorization code flow through a loopback callback server and
// stores the resulting token under --user (default "cli").
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil {
		return errSpotifyNotConfigured
	}

	token, err := r.authorize(ctx, r.spotify)
	if err != nil {
		return err
	}

	key := cmd.String("user")
	if key == "" {
		key = defaultTokenKey
	}
	store := r.tokenStore()
	if err := store.Save(ctx, key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlain("✓ Authorization successful\n")
	r.writePlain("✓ Token saved to %s\n\n", store.Path())
	return r.writePlain("You can now use: playdeck spotify playlists\n")
}

// authorize serves the OAuth callback on server.host:server.callback_port and waits for one result.
func (r *Runner) authorize(ctx context.Context, srv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(srv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.CallbackPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() {
		httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
		served <- server.Serve(serveCtx, httpServer, ln, 5*time.Second, r.logger.WithPrefix("oauth"))
	}()
	defer func() {
		stop()
		if err := <-served; err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := srv.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.browser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("⚠ Could not open browser automatically.\n")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-served:
		served <- err
		return nil, fmt.Errorf("callback server stopped: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// SpotifyPlaylists lists Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.spotifyClient(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	r.logger.Infof("listing spotify playlists with limit %v", limit)

	playlists, err := client.GetPlaylists(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
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
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		r.writePlain("   Visibility: %s\n\n", shared.VisibilityString(p.Public))
	}
	return nil
}

// SpotifyImport imports the named playlists into --user's library.
//
// A single playlist runs in the foreground with progress; several (or --all) run as a bulk
// import over a rate-limited worker pool.
func (r *Runner) SpotifyImport(ctx context.Context, cmd *cli.Command) error {
	user := cmd.String("user")
	ids := cmd.Args().Slice()

	client, err := r.spotifyClient(ctx, user)
	if err != nil {
		return err
	}

	if cmd.Bool("all") {
		playlists, err := client.GetPlaylists(ctx)
		if err != nil {
			return err
		}
		ids = nil
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: pass playlist IDs or names, or --all", shared.ErrMissingArgument)
	}

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	importer := st.importer(r.logger)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go r.printProgress(progress, done)

	if len(ids) == 1 && cmd.String("manifest") == "" {
		result, err := importer.ImportPlaylist(ctx, progress, client, ids[0], user)
		close(progress)
		<-done
		if err != nil {
			return err
		}
		r.writePlain("✓ Imported %s\n", result.Playlist.Name)
		r.writePlain("  ID: %s\n", result.Playlist.ID)
		r.writePlain("  Tracks: %d of %d (%d skipped)\n", len(result.Playlist.Tracks), result.Received, result.Skipped)
		return nil
	}

	result, err := importer.BulkImport(ctx, progress, client, ids, tasks.BulkImportOpts{
		UserID:       user,
		NumWorkers:   cmd.Int("workers"),
		RateLimit:    cmd.Float("rate"),
		ManifestPath: cmd.String("manifest"),
	})
	close(progress)
	<-done
	if result == nil {
		return err
	}

	r.writePlainHeader("Bulk import")
	for _, res := range result.Results {
		if res.Error != nil {
			r.writePlain("✗ %s: %v\n", res.Name, res.Error)
			continue
		}
		r.writePlain("✓ %s → %s (%d tracks)\n", res.Name, res.Result.Playlist.ID, len(res.Result.Playlist.Tracks))
	}
	r.writePlain("\n%d succeeded, %d failed of %d\n", result.Succeeded, result.Failed, result.Total)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	return err
}

// SpotifyDiff compares a Spotify playlist with a local playlist by URL, then by title and artist.
func (r *Runner) SpotifyDiff(ctx context.Context, cmd *cli.Command) error {
	client, err := r.spotifyClient(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	local, err := st.playlists.Get(ctx, cmd.String("local"))
	if err != nil {
		return err
	}

	diff, err := st.importer(r.logger).Diff(ctx, nil, client, cmd.String("source"), local)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("%s ↔ %s", diff.Source.Playlist.Name, diff.Local.Name))
	r.writePlain("Matched: %d\n", diff.MatchedCount)
	r.writePlain("Missing locally: %d\n", len(diff.Missing))
	for _, t := range diff.Missing {
		r.writePlain("  - %s - %s\n", t.Artist, t.Title)
	}
	r.writePlain("Only local: %d\n", len(diff.Extra))
	for _, t := range diff.Extra {
		r.writePlain("  + %s - %s\n", t.Artist, t.Title)
	}
	return nil
}

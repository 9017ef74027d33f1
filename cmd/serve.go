package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/playdeck/internal/server"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/urfave/cli/v3"
)

// Serve runs the REST API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := r.apiHandler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ln, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.Server.Addr(), err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.Serve(ctx, srv, ln, r.config.Server.ShutdownAfter(), r.logger.WithPrefix("http"))
}

// apiHandler assembles stores, the token store and the routed, CORS-wrapped API.
func (r *Runner) apiHandler(ctx context.Context) (http.Handler, func(), error) {
	st, err := r.openStores(ctx)
	if err != nil {
		return nil, nil, err
	}

	tokens, closeTokens, err := services.NewTokenStore(ctx, r.config.Tokens, r.logger.WithPrefix("tokens"))
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to create token store: %w", err)
	}

	cleanup := func() {
		if err := closeTokens(); err != nil {
			r.logger.Warn("failed to close token store", "error", err)
		}
		if err := st.Close(); err != nil {
			r.logger.Warn("failed to close stores", "error", err)
		}
	}

	if r.spotify == nil {
		r.logger.Warn("spotify credentials not configured, /api/spotify routes will answer 500")
	}

	api := server.NewAPI(server.Deps{
		Tracks:    st.tracks,
		Playlists: st.playlists,
		Users:     st.users,
		Settings:  st.settings,
		Spotify:   r.spotify,
		Tokens:    tokens,
		Database:  st.driver,
		Logger:    r.logger.WithPrefix("api"),
	})

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger.WithPrefix("http")), server.Recoverer(r.logger))
	api.Register(router)

	r.logger.Info("api ready", "routes", len(router.Routes()), "tokens", r.config.Tokens.Backend, "catalog", st.driver)
	return server.CORS(r.config.Server.AllowedOrigins)(router), cleanup, nil
}

package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/ui"
	"github.com/urfave/cli/v3"
)

// Player launches the terminal player over --user's playlists.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.logger = fileLogger

	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	user := cmd.String("user")
	settings := r.playerSettings(ctx, st, user)
	fileLogger.Info("starting player", "user", user, "repeat", settings.RepeatMode, "volume", settings.DefaultVolume)

	model := ui.NewModel(ctx, st.playlists, user, settings, fileLogger.WithPrefix("player"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// playerSettings returns the user's stored settings. A user who never saved any gets the
// [player] section of the config instead.
func (r *Runner) playerSettings(ctx context.Context, st *stores, user string) models.Settings {
	settings, err := st.settings.Get(ctx, user)
	if err != nil {
		r.logger.Warn("failed to load settings, using config defaults", "user", user, "error", err)
		return configSettings(r.config.Player, r.logger)
	}
	if settings == models.DefaultSettings() {
		return configSettings(r.config.Player, r.logger)
	}
	return settings
}

func configSettings(cfg shared.PlayerConfig, logger *log.Logger) models.Settings {
	s := models.DefaultSettings()
	s.ShuffleMode = cfg.Shuffle
	s.AutoplayNextTrack = cfg.Autoplay
	if repeat, err := models.ParseRepeatMode(cfg.Repeat); err == nil {
		s.RepeatMode = repeat
	} else if cfg.Repeat != "" {
		logger.Warn("ignoring player.repeat", "error", err)
	}
	if cfg.DefaultVolume >= 0 && cfg.DefaultVolume <= 100 {
		s.DefaultVolume = cfg.DefaultVolume
	}
	return s
}

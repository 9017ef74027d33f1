package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return r.writePlain("Config already exists at %s\n", path)
		}
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Config written to %s\n", path)
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, fs.ErrNotExist) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	applied, err := shared.MigrationStatus(st.db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (%d migrations applied, catalog on %s)\n",
		r.config.Database.Path, len(applied), st.driver)
	return nil
}

// SetupSeed creates the demo accounts and imports their playlists through the reconciler.
//
// Existing accounts are reused and playlists the account already owns by name are skipped,
// so running it twice adds nothing.
func (r *Runner) SetupSeed(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	reconciler := st.reconciler(r.logger)
	users, playlists := 0, 0

	for _, su := range seedUsers(cmd.String("email"), cmd.String("password")) {
		user, err := st.users.Register(ctx, su.email, su.name, su.password)
		switch {
		case errors.Is(err, shared.ErrDuplicateUser):
			if user, err = st.users.GetByEmail(ctx, su.email); err != nil {
				return fmt.Errorf("failed to load seed user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to create seed user: %w", err)
		default:
			users++
		}

		existing, err := st.playlists.ListByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to list seed playlists: %w", err)
		}
		owned := make(map[string]bool, len(existing))
		for _, p := range existing {
			owned[p.Name] = true
		}

		for _, sp := range su.playlists {
			if owned[sp.name] {
				continue
			}
			if _, err := reconciler.Import(ctx, sp.request(user.ID)); err != nil {
				return fmt.Errorf("failed to seed playlist %q: %w", sp.name, err)
			}
			playlists++
		}
		r.writePlain("  %s (%s) id=%s\n", user.Name, user.Email, user.ID)
	}

	r.logger.Info("seed complete", "users", users, "playlists", playlists)
	return r.writePlain("✓ Seeded %d users and %d playlists\n", users, playlists)
}

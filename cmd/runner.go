package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/library"
	"github.com/desertthunder/playdeck/internal/repositories"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
	"github.com/desertthunder/playdeck/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	logger     *log.Logger
	output     io.Writer
	browser    func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    *services.SpotifyService
	Logger     *log.Logger
	Output     io.Writer
	Browser    func(url string) error // Opens the authorization URL; defaults to [shared.OpenBrowser]
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Browser == nil {
		opts.Browser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		logger:     opts.Logger,
		output:     opts.Output,
		browser:    opts.Browser,
	}
}

// load reads the file named by the root --config flag, applies environment overrides
// and builds the Spotify client when credentials are present.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	config, err := shared.LoadConfigOrDefault(path)
	if err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	r.logger.SetLevel(shared.ParseLevel(config.Logging.Level))

	if r.spotify == nil && config.Credentials.Spotify.Configured() {
		svc, err := services.NewSpotifyService(
			config.Credentials.Spotify.Map(),
			services.WithRateLimit(config.Credentials.Spotify.RateLimit),
		)
		if err != nil {
			r.logger.Warn("spotify client disabled", "error", err)
		} else {
			r.spotify = svc
		}
	}
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, playlistCommand, spotifyCommand, libraryCommand, playerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stores bundles the repositories opened for one command.
//
// Users and settings always live in SQLite; tracks and playlists follow database.driver.
type stores struct {
	db        *sql.DB
	driver    string
	tracks    library.TrackStore
	playlists library.PlaylistStore
	users     *repositories.UserRepository
	settings  *repositories.SettingsRepository
	closers   []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *stores) reconciler(logger *log.Logger) *library.Reconciler {
	return library.NewReconciler(s.tracks, s.playlists, logger.WithPrefix("reconciler"))
}

func (s *stores) importer(logger *log.Logger) *tasks.Importer {
	return tasks.NewImporter(s.reconciler(logger), logger.WithPrefix("import"))
}

// openStores opens the SQLite database, applies pending migrations and selects the catalog backend.
func (r *Runner) openStores(ctx context.Context) (*stores, error) {
	cfg := r.config.Database

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &stores{
		db:       db,
		users:    repositories.NewUserRepository(db),
		settings: repositories.NewSettingsRepository(db),
		closers:  []func() error{db.Close},
	}

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "", "sqlite":
		s.driver = "sqlite"
		s.tracks = repositories.NewTrackRepository(db)
		s.playlists = repositories.NewPlaylistRepository(db)
	case "mongo":
		mdb, disconnect, err := repositories.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error { return disconnect(context.Background()) })

		tracks, err := repositories.NewMongoTrackStore(mdb)
		if err != nil {
			s.Close()
			return nil, err
		}
		playlists, err := repositories.NewMongoPlaylistStore(mdb, tracks)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.driver = "mongo"
		s.tracks = tracks
		s.playlists = playlists
	default:
		db.Close()
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}

	r.logger.Debug("stores ready", "driver", s.driver, "path", cfg.Path)
	return s, nil
}

// printProgress drains updates to the output until the channel closes.
func (r *Runner) printProgress(updates <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for u := range updates {
		r.writePlain("  [%d/%d] %s\n", u.Step, u.Total, u.Message)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

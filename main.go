package main

import (
	"fmt"
	"io"
	"os"

	"github.com/CrowderSoup/kanban/config"
	"github.com/CrowderSoup/kanban/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// App carries the state shared by every command.
type App struct {
	configPath string
	envFile    string
	memory     bool
	flags      *config.Flags
}

func main() {
	if err := newRootCmd(&App{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	serve := newServeCmd(app)

	root := &cobra.Command{
		Use:          "kanban",
		Short:        "Kanban board server",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to kanban.toml")
	root.PersistentFlags().StringVar(&app.envFile, "env-file", config.DefaultEnvFile, "Path to the .env file")
	root.PersistentFlags().BoolVar(&app.memory, "memory", false, "Keep boards in memory instead of SQLite")
	app.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(serve, newResetCmd(app), newExportCmd(app), newUsersCmd(app))

	return root
}

// loadConfig resolves the configuration and sets up the global logger.
func loadConfig(app *App, errOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(app.configPath, app.envFile)
	if err != nil {
		return nil, err
	}
	app.flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", config.ErrInvalidConfig, err)
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(errOut).With().Timestamp().Logger()
	} else {
		log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
			Out: errOut, TimeFormat: "2006-01-02_15:04:05",
		})
	}

	return cfg, nil
}

// openBackend opens the document store. The returned DataService is nil for the
// in-memory backend.
func openBackend(app *App, cfg *config.Config) (database.Backend, *database.DataService, func(), error) {
	if app.memory {
		log.Info().Msg("using in-memory board storage")
		return database.NewMemoryBackend(), nil, func() {}, nil
	}

	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}

	dataService := database.NewDataService(db)
	return dataService, dataService, closeDB, nil
}

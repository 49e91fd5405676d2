package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/kanban/board"
	"github.com/CrowderSoup/kanban/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	errUserRequired   = errors.New("--user is required")
	errSQLiteRequired = errors.New("this command needs the SQLite backend; drop --memory")
)

// openUserStore loads the board store of one user outside the server.
func openUserStore(app *App, cmd *cobra.Command, email string) (*board.Store, func(), error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, nil, errUserRequired
	}

	cfg, err := loadConfig(app, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	backend, dataService, closeBackend, err := openBackend(app, cfg)
	if err != nil {
		return nil, nil, err
	}

	key := database.UserKey(cfg.StorageKey, email)
	if dataService != nil {
		updated, found, err := dataService.UpdatedAt(cmd.Context(), key)
		if err != nil {
			closeBackend()
			return nil, nil, err
		}
		if found {
			log.Info().Str("email", email).Time("updated", updated).Msg("stored boards found")
		}
	}

	gateway := database.NewGateway(backend, key, log.Logger)
	return board.NewStore(gateway, board.WithLogger(log.Logger)), closeBackend, nil
}

func newResetCmd(app *App) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard a user's boards and restore the default board",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeBackend, err := openUserStore(app, cmd, user)
			if err != nil {
				return err
			}
			defer closeBackend()

			store.ResetToDefault()
			log.Info().Str("email", user).Int("boards", len(store.Boards())).Msg("boards reset to default")

			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Email of the user whose boards are reset")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var (
		user string
		seed bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a user's boards as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The bundled default board needs no storage
			if seed {
				_, err := cmd.OutOrStdout().Write(board.SeedJSON())
				return err
			}

			store, closeBackend, err := openUserStore(app, cmd, user)
			if err != nil {
				return err
			}
			defer closeBackend()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(store.Document())
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Email of the user whose boards are exported")
	cmd.Flags().BoolVar(&seed, "seed", false, "Print the bundled default board instead")

	return cmd
}

func newUsersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the users who have signed in and when their boards last changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.memory {
				return errSQLiteRequired
			}

			cfg, err := loadConfig(app, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			_, dataService, closeBackend, err := openBackend(app, cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			users, err := dataService.Users(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range users {
				updated, found, err := dataService.UpdatedAt(cmd.Context(), database.UserKey(cfg.StorageKey, u.Email))
				if err != nil {
					return err
				}

				lastChange := "-"
				if found {
					lastChange = updated.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", u.Email, u.CreatedAt.UTC().Format(time.RFC3339), lastChange)
			}

			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/CrowderSoup/kanban/handlers"
	"github.com/CrowderSoup/kanban/services"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	evictInterval   = time.Minute
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the board API and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			backend, dataService, closeBackend, err := openBackend(app, cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hub := services.NewHub()
			go hub.Run(ctx)

			authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenTTL, services.SMTPConfig(cfg.SMTP))
			sessions := services.NewSessions(backend, cfg.StorageKey, hub,
				services.WithDragConfig(cfg.Drag.Timings()),
				services.WithIdleTimeout(cfg.SessionIdle),
				services.WithSessionLogger(log.Logger),
			)
			go sessions.Run(ctx, evictInterval)

			if cfg.ExposeMagicLink() {
				log.Warn().Msg("login responses include the magic link; keep dev_magic_link off in production")
			}

			router := handlers.NewRouter(
				handlers.NewAuthHandler(authService, dataService, cfg.ExposeMagicLink()),
				handlers.NewBoardHandler(sessions),
				handlers.NewWebSocketHandler(hub, sessions, cfg.AllowedOrigins),
				handlers.NewAuthMiddleware(authService),
				cfg.StaticDir,
			)

			c := cors.New(cors.Options{
				AllowedOrigins:   cfg.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Content-Type", "Authorization"},
				AllowCredentials: true,
			})

			server := &http.Server{
				Addr:         cfg.ListenAddr(),
				Handler:      c.Handler(router),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", server.Addr).Msg("server starting")
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	}
}

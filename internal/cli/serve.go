package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nurjigit18/shipledger/internal/shipbot/app"
	"github.com/nurjigit18/shipledger/internal/shipbot/transport/discord"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot and, when enabled, the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireDiscord(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog := log.With().Str("state", "init").Logger()
			slog.Info().Str("backend", cfg.Ledger.Backend).Msg("opening ledger")
			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Error().Err(err).Msg("closing ledger")
				}
			}()

			if err := a.Run(ctx, discord.New(cfg.Discord.Token, a.Dispatcher)); err != nil {
				return err
			}
			slog.Info().Msg("shipledger stopped")
			return nil
		},
	}
}

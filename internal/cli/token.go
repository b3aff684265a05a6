package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nurjigit18/shipledger/internal/shipbot/config"
	"github.com/nurjigit18/shipledger/internal/shipbot/server"
)

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin API tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(opts))
	return cmd
}

func newTokenIssueCmd(opts *options) *cobra.Command {
	var subject, ttl string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an admin API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			validity := cfg.TokenExpiry()
			if ttl != "" {
				if validity, err = config.ParseDuration(ttl); err != nil {
					return fmt.Errorf("invalid --ttl: %w", err)
				}
			}
			token, expiry, err := server.IssueToken([]byte(cfg.Server.JWTSecret), subject, validity, time.Now())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{
					"token":      token,
					"expires_at": expiry.UTC().Format(time.RFC3339),
				})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			okLabel.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiry.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is issued to")
	cmd.Flags().StringVar(&ttl, "ttl", "", "Validity, for example 12h or 7d (default server.token_expiry)")
	return cmd
}

// Package cli implements the shipledger command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/config"
	"github.com/nurjigit18/shipledger/internal/shipbot/server"
)

// DefaultConfigFile is read when --config is not given and the file exists.
const DefaultConfigFile = "shipledger.conf"

var ErrAlreadyHandled = errors.New("already handled")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	okLabel    = color.New(color.FgGreen)
	errorLabel = color.New(color.FgRed)
	titleLabel = color.New(color.FgHiWhite, color.Bold)
)

// options are the persistent flags.
type options struct {
	configFile string
	jsonOutput bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "shipledger [command] [flags]",
		Short: "Shipment entry bot writing to a shared ledger",
		Long: `shipledger runs the shipment entry chat bot and maintains its ledger.

Examples:
  # Run the bot and the admin API
  shipledger serve --config shipledger.conf

  # Create the ledger worksheets
  shipledger ledger init --sheet factory_a

  # Issue an admin API token
  shipledger token issue --subject ops`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "", "", "Path to the configuration file")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output in JSON format")

	root.AddCommand(newVersionCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLedgerCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonFlag(root) {
			printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func jsonFlag(root *cobra.Command) bool {
	v, err := root.PersistentFlags().GetBool("json")
	return err == nil && v
}

// loadConfig reads the configuration once and initializes logging.
func (o *options) loadConfig() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	path := o.configFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logtrace.InitLogger(cfg.Log.Level, cfg.Log.Pretty)
	o.cfg = cfg
	return cfg, nil
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the shipledger version",
		Run: func(cmd *cobra.Command, args []string) {
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{
					"version":        server.Version,
					"api_version":    server.APIVersion,
					"config_version": config.ConfigFormatVersion,
				})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shipledger %s (api %s, config format %s)\n",
				server.Version, server.APIVersion, config.ConfigFormatVersion)
		},
	}
}

func printJSON(w io.Writer, data any) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}

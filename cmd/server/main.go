/*
main.go - Application entry point

PURPOSE:
  Starts the rate engine server, or runs one-off calculations from the
  command line. Handles configuration, dependency injection, and graceful
  shutdown.

COMMANDS:
  serve    Run the HTTP API (default when no command is given)
  quote    Price one date from a profile file, forward or inverse

CONFIGURATION:
  Defaults, then ./config.yaml (or --config), then RATE_ENGINE_* env vars,
  then command-line flags.

EXAMPLES:
  # Run against the sandbox PMS with an in-memory database
  ./server serve --sandbox --db=":memory:"

  # Run on a different port against a real PMS
  RATE_ENGINE_PMS_BASE_URL=https://pms.example.com ./server serve --port=3000

  # What base rate sells at 120 on 2026-11-28?
  ./server quote --profile=profile.json --date=2026-11-28 --sell=120

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/rate-engine/config"
	"github.com/warp/rate-engine/obs"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rate-engine",
	Short: "Rate engine - pricing stack, overrides and PMS reconciliation",
	Long: `Computes sell rates from PMS base rates through a property's pricing stack,
inverts sell targets back to base rates, and pushes base-rate overrides to the PMS.`,
	PersistentPreRunE: persistentPreRun,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, quoteCmd)
}

// persistentPreRun loads configuration and the logger before each command.
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}
	if cmd.Name() == "quote" {
		logger = obs.NewLogger("dev", "warn")
		return nil
	}

	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger = obs.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	slog.SetDefault(logger)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

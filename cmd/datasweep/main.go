// datasweep is the privacy-ops toolbelt: batch email erasure through
// SendGrid, batch age verification through VerifyMyAge, and the local
// webhook receiver the verification flow reports back to.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"datasweep/internal/infra/config"
	"datasweep/internal/infra/logger"
	"datasweep/internal/ux"
)

var (
	configPath string

	cfg       *config.Config
	log       *slog.Logger
	logCloser func() error
	console   *ux.Console
)

var rootCmd = &cobra.Command{
	Use:   "datasweep",
	Short: "Batch email erasure and age verification tooling",
	Long: `datasweep drives two provider workflows from the command line:

  erase    submit a batch email-erasure job to SendGrid
  verify   submit a batch age-verification job to VerifyMyAge
  serve    run the local webhook receiver verification results land on

Configuration is read from a YAML file plus environment variables
(SENDGRID_API_KEY_1, VERIFYMYAGE_API_KEY, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, logCloser, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		console = ux.New(os.Stdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "datasweep.yaml", "path to config file")
	rootCmd.AddCommand(eraseCmd, verifyCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

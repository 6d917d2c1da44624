// Command sitectl holds the operator tasks for the foundation site.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"foundation_site/internal/bootstrap"
	"foundation_site/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sitectl",
		Short:         "Operator tools for the foundation site",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(scheduleTaskCmd())
	rootCmd.AddCommand(sendWhatsappCmd())
	rootCmd.AddCommand(verifyPaymentCmd())

	return rootCmd
}

// env loads .env and the config, and builds a logger.
func env() (config.Config, *zap.Logger, error) {
	config.LoadDotenv()
	cfg := config.Load()
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

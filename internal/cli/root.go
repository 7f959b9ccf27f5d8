// Package cli implements the ortholabel command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ortholabel/internal/app"
	"ortholabel/internal/config"
	"ortholabel/internal/version"
)

var (
	// cfg is the configuration shared by subcommands.
	cfg *config.Config
	// svc is the labeling service shared by subcommands.
	svc *app.Service

	cfgFile string
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:           "ortholabel",
	Short:         "Superpixel labeling of orthophotos",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Storage.DataDir = dataDir
		}

		svc, err = app.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to open workspace: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Close()
		}
	},
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides storage.data_dir)")
}

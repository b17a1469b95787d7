package main

import (
	"fmt"
	"os"

	"pettrace/internal/platform/config"
	"pettrace/internal/platform/logger"

	"github.com/spf13/cobra"
)

const programName = "pettrace"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string

	// cfg lo carga PersistentPreRunE antes de cualquier subcomando.
	cfg *config.Config
)

func newLogger() logger.Logger {
	level := logger.ParseLevel(cfg.Log.Level)
	if globalFlags.debug {
		level = logger.Debug
	}
	return logger.New(logger.Options{
		Level:  level,
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Registro de mascotas perdidas con recompensa en escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(authTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		// cobra ya imprimió el error
		os.Exit(1)
	}
}

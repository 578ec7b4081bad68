package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	u "carbone2pdf/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "carbone2pdf",
		Short: "Render templates through the Carbone API",
		Long: "carbone2pdf sends a template and a data record to the Carbone render API " +
			"and stores the returned document.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			u.LoadDotEnv()

			if configPath == "" {
				configPath = u.ConfigPath()
			}
			cfg, err := u.LoadConfigFrom(configPath)
			if err != nil {
				return err
			}

			if err := ensureLogDir(cfg.Logger.File); err != nil {
				return err
			}
			u.InitLogger(
				cfg.Logger.File,
				cfg.Logger.MaxSizeMB,
				cfg.Logger.MaxBackups,
				cfg.Logger.MaxAgeDays,
				cfg.Logger.Compress,
				cfg.Logger.Level,
			)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $CONFIG_PATH or config.yaml)")

	root.AddCommand(newRenderCmd())
	root.AddCommand(newServeCmd())
	return root
}

func ensureLogDir(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

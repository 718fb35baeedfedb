package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/exportflow/internal/config"
	"github.com/fastygo/exportflow/pkg/logger"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "exportflow",
		Short:         "Export compliance orchestration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newSweepCommand(), newMigrateCommand())
	return root
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Fields: map[string]string{
			"app": cfg.AppName,
			"env": cfg.Environment,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, zapLogger, nil
}

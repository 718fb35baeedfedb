package main

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/fastygo/exportflow/internal/app"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newSweepCommand() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one certification expiry sweep and print its report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, zapLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer zapLogger.Sync()

			application, err := app.New(cmd.Context(), cfg, zapLogger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}
			defer application.Shutdown(context.Background())

			report, err := application.Compliance.RunSweep(cmd.Context(), runID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "sweep run id (defaults to today's UTC date)")
	return cmd
}

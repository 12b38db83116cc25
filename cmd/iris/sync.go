package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/iris/config"
)

func newSyncCommand(envFile *string) *cobra.Command {
	var correlationID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and print its result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				logger.WithError(err).Error("failed to start")
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			result := a.orchestrator.RunSync(ctx, correlationID)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("sync failed (%s): %s", result.ErrorKind, result.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id recorded on the run and its audit event")
	return cmd
}
